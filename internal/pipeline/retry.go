package pipeline

import (
	"context"
	"time"

	"smtp-forensics/internal/emailprocessor"
	"smtp-forensics/internal/models"
)

const (
	maxSourceAttempts = 3
	sourceRetryBase   = 5 * time.Second
	sourceRetryCap    = 2 * time.Minute
)

// fetchObjects reads the source, retrying remote ones with exponential
// backoff. A missing directory is not worth retrying.
func (p *Pipeline) fetchObjects(ctx context.Context, src emailprocessor.Source) ([]models.RawObject, error) {
	if _, local := src.(*emailprocessor.DirSource); local {
		return src.Objects(ctx)
	}

	var lastErr error
	for failures := 0; failures < maxSourceAttempts; failures++ {
		if failures > 0 {
			wait := sourceBackoff(failures)
			p.log.Warnf("Message source failed %d times, waiting %s before next attempt", failures, wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		objects, err := src.Objects(ctx)
		if err == nil {
			return objects, nil
		}
		lastErr = err
		p.log.Errorf("Message source error: %v", err)
	}
	return nil, lastErr
}

func sourceBackoff(failures int) time.Duration {
	backoff := sourceRetryBase * time.Duration(1<<(failures-1))
	if backoff > sourceRetryCap {
		backoff = sourceRetryCap
	}
	return backoff
}
