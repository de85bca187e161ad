package emailprocessor

import (
	"context"
	"strings"

	"smtp-forensics/internal/logging"
	"smtp-forensics/internal/mailparse"
	"smtp-forensics/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultMinObjectSize is the size below which an exported object is
// almost certainly not a message.
const DefaultMinObjectSize = 50

// Source yields raw message objects in a stable order
type Source interface {
	Objects(ctx context.Context) ([]models.RawObject, error)
}

type Processor struct {
	parser        *mailparse.Parser
	minObjectSize int
	workers       int
}

// NewProcessor creates a Processor parsing with up to workers goroutines
func NewProcessor(parser *mailparse.Parser, minObjectSize, workers int) *Processor {
	if minObjectSize < 0 {
		minObjectSize = DefaultMinObjectSize
	}
	if workers < 1 {
		workers = 1
	}
	return &Processor{
		parser:        parser,
		minObjectSize: minObjectSize,
		workers:       workers,
	}
}

// ProcessSource reads every object of src and parses it.
func (p *Processor) ProcessSource(ctx context.Context, src Source) ([]models.EmailRecord, models.ParseStats, error) {
	objects, err := src.Objects(ctx)
	if err != nil {
		return nil, models.NewParseStats(), err
	}
	return p.Process(ctx, objects)
}

// Process parses objects, keeping their order in the output. Objects that
// fail are counted, never returned as errors; the error is only set when
// ctx is cancelled.
func (p *Processor) Process(ctx context.Context, objects []models.RawObject) ([]models.EmailRecord, models.ParseStats, error) {
	type outcome struct {
		record *models.EmailRecord
		stats  models.ParseStats
	}
	outcomes := make([]outcome, len(objects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range objects {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, stats := p.ProcessObject(objects[i])
			outcomes[i] = outcome{record: rec, stats: stats}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, models.NewParseStats(), err
	}
	if err := ctx.Err(); err != nil {
		return nil, models.NewParseStats(), err
	}

	records := make([]models.EmailRecord, 0, len(objects))
	total := models.NewParseStats()
	for _, o := range outcomes {
		total.Merge(o.stats)
		if o.record != nil {
			records = append(records, *o.record)
		}
	}

	logging.Log.WithFields(map[string]interface{}{
		"attempted":   total.Attempted,
		"parsed":      total.Parsed,
		"failed":      total.Failed,
		"skipped":     total.SkippedSmall,
		"attachments": total.TotalAttachments,
	}).Info("Message objects processed")

	return records, total, nil
}

// ProcessObject parses a single object and returns its own statistics.
func (p *Processor) ProcessObject(obj models.RawObject) (*models.EmailRecord, models.ParseStats) {
	stats := models.NewParseStats()
	locallog := logging.Log.WithField("trace_id", uuid.New().String()).WithField("object", obj.Name)

	if obj.Err != nil {
		stats.Attempted++
		stats.Failed++
		locallog.Warnf("Could not read message object: %v", obj.Err)
		return nil, stats
	}

	if len(obj.Data) < p.minObjectSize {
		stats.SkippedSmall++
		locallog.Debugf("Skipping object of %d bytes", len(obj.Data))
		return nil, stats
	}

	stats.Attempted++
	rec, err := p.parser.Parse(obj.Data)
	if err != nil {
		stats.Failed++
		locallog.Warnf("Error parsing message object: %v", err)
		return nil, stats
	}
	rec.Source = obj.Name

	stats.Parsed++
	if rec.ParseMode == mailparse.ModeLenient {
		stats.Lenient++
		locallog.Info("Message object parsed leniently")
	}
	if n := len(rec.Attachments); n > 0 {
		stats.WithAttachments++
		stats.TotalAttachments += n
	}
	for _, addr := range rec.From {
		stats.UniqueSenders[strings.ToLower(addr)] = struct{}{}
	}
	for _, list := range [][]string{rec.To, rec.Cc, rec.Bcc} {
		for _, addr := range list {
			stats.UniqueRecipients[strings.ToLower(addr)] = struct{}{}
		}
	}

	locallog.Debugf("Parsed message with %d attachments", len(rec.Attachments))
	return rec, stats
}
