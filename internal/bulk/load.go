package bulk

import (
	"context"

	"smtp-forensics/internal/logging"
)

// LoadStats aggregates the outcome of loading one prepared set
type LoadStats struct {
	Index          string        `json:"index"`
	Batches        int           `json:"batches"`
	Indexed        int           `json:"indexed"`
	Failed         int           `json:"failed"`
	FailedBatches  int           `json:"failed_batches"`
	SampleFailures []ItemFailure `json:"sample_failures,omitempty"`
}

// Loader is the part of Client used by Load
type Loader interface {
	Bulk(ctx context.Context, payload []byte) (BulkResult, error)
}

// Load sends prepared in batches. A failed batch counts all its items as
// failed and loading continues; only cancellation stops it.
func Load(ctx context.Context, client Loader, prepared Prepared, maxDocs, maxBytes int) (LoadStats, error) {
	stats := LoadStats{Index: prepared.Index}
	locallog := logging.Log.WithField("index", prepared.Index)

	for i, batch := range Batches(prepared.Items, maxDocs, maxBytes) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Batches++

		result, err := client.Bulk(ctx, Payload(batch))
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.FailedBatches++
			stats.Failed += len(batch)
			locallog.Errorf("Bulk batch %d failed: %v", i+1, err)
			continue
		}

		stats.Indexed += result.Indexed
		stats.Failed += result.Failed
		for _, f := range result.Failures {
			if len(stats.SampleFailures) < maxSampleFailures {
				stats.SampleFailures = append(stats.SampleFailures, f)
			}
		}
		locallog.Debugf("Bulk batch %d: %d indexed, %d failed", i+1, result.Indexed, result.Failed)
	}

	locallog.Infof("Loaded %d documents (%d failed) in %d batches", stats.Indexed, stats.Failed, stats.Batches)
	return stats, nil
}
