package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"smtp-forensics/internal/bulk"
	"smtp-forensics/internal/correlate"
	"smtp-forensics/internal/emailprocessor"
	"smtp-forensics/internal/flows"
	imapclient "smtp-forensics/internal/imap"
	"smtp-forensics/internal/logging"
	"smtp-forensics/internal/mailparse"
	"smtp-forensics/internal/metrics"
	"smtp-forensics/internal/models"
	"smtp-forensics/internal/output"
	"smtp-forensics/internal/reporting"
	"smtp-forensics/internal/tshark"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNoSource is returned when neither an objects directory, a capture nor
// a mailbox is configured.
var ErrNoSource = errors.New("no message source configured")

const (
	objectsSubdir   = "objects"
	fieldsTableFile = "smtp_fields.txt"
)

// Pipeline runs one decode, normalize, parse, unify and load pass.
type Pipeline struct {
	cfg     *models.Config
	runID   string
	log     *logrus.Entry
	metrics *metrics.Metrics
	summary *reporting.Summary

	// newMailbox builds the client used when messages come from IMAP
	newMailbox func(timeout time.Duration) imapclient.Client
}

func New(cfg *models.Config) *Pipeline {
	runID := uuid.New().String()
	return &Pipeline{
		cfg:     cfg,
		runID:   runID,
		log:     logging.Log.WithField("run_id", runID),
		metrics: metrics.New(),
		summary: reporting.NewSummary(runID, time.Now()),
		newMailbox: func(timeout time.Duration) imapclient.Client {
			return imapclient.NewStandardClient(timeout)
		},
	}
}

// Metrics returns the run's metrics
func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.metrics
}

// Run executes every stage. Per-record problems are counted in the summary;
// an error means an input could not be read or an output could not be
// written.
func (p *Pipeline) Run(ctx context.Context) (*reporting.Summary, error) {
	err := p.run(ctx)
	p.metrics.SetSuccess(err == nil)
	p.summary.Finish(time.Now())

	if path := p.cfg.Metrics.Textfile; path != "" {
		if werr := p.metrics.WriteTextfile(path); werr != nil {
			p.log.Errorf("Error writing metrics: %v", werr)
		}
	}
	return p.summary, err
}

func (p *Pipeline) run(ctx context.Context) error {
	if err := p.decode(ctx); err != nil {
		return err
	}

	flowRecords, err := p.normalizeFlows()
	if err != nil {
		return err
	}

	emails, err := p.parseMessages(ctx)
	if err != nil {
		return err
	}

	docs, err := p.unify(emails, flowRecords)
	if err != nil {
		return err
	}

	flowDocs := make([]models.FlowDocument, len(flowRecords))
	for i, rec := range flowRecords {
		flowDocs[i] = flows.ToDocument(rec)
	}
	if err := p.load(ctx, docs, flowDocs); err != nil {
		return err
	}

	return p.summary.Write(p.outPath(p.cfg.Output.SummaryFile))
}

// decode runs tshark when a capture is given, filling in the objects
// directory and field table the later stages read.
func (p *Pipeline) decode(ctx context.Context) error {
	in := &p.cfg.Input
	if in.Pcap == "" {
		return nil
	}
	if _, err := os.Stat(in.Pcap); err != nil {
		return fmt.Errorf("capture file: %w", err)
	}
	defer p.timeStage("decode")()

	opts := tshark.OptionsFromConfig(p.cfg.Decoder)
	if in.ObjectsDir == "" {
		in.ObjectsDir = p.outPath(objectsSubdir)
	}
	if err := tshark.ExportObjects(ctx, opts, in.Pcap, in.ObjectsDir); err != nil {
		return err
	}

	lines, err := tshark.FieldTable(ctx, opts, in.Pcap)
	if err != nil {
		return err
	}
	if in.FieldsFile == "" {
		in.FieldsFile = p.outPath(fieldsTableFile)
	}
	if err := ensureParent(in.FieldsFile); err != nil {
		return err
	}
	return tshark.WriteFieldTable(in.FieldsFile, lines)
}

func (p *Pipeline) normalizeFlows() ([]models.FlowRecord, error) {
	path := p.cfg.Input.FieldsFile
	if path == "" {
		p.log.Warn("No field table configured, documents will carry no network data")
		return []models.FlowRecord{}, nil
	}
	defer p.timeStage("normalize")()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("field table: %w", err)
	}
	defer f.Close()

	records, stats, err := flows.NewNormalizer(p.cfg.Decoder.Protocol).Normalize(f)
	if err != nil {
		return nil, err
	}
	p.summary.Flows = stats
	p.metrics.ObserveFlows(stats)
	p.log.WithFields(logrus.Fields{
		"accepted": stats.Accepted,
		"rejected": stats.Rejected,
		"starttls": stats.StartTLS,
	}).Info("Field table normalized")

	if err := output.WriteJSON(p.outPath(p.cfg.Output.FlowsFile), records); err != nil {
		return nil, err
	}
	return records, nil
}

func (p *Pipeline) parseMessages(ctx context.Context) ([]models.EmailRecord, error) {
	src, err := p.source()
	if err != nil {
		return nil, err
	}
	defer p.timeStage("parse")()

	parser := mailparse.NewParser(mailparse.Options{MaxPartDepth: p.cfg.Input.MaxPartDepth})
	processor := emailprocessor.NewProcessor(parser, p.cfg.Input.MinObjectSize, p.cfg.Input.Workers)

	objects, err := p.fetchObjects(ctx, src)
	if err != nil {
		return nil, err
	}
	emails, stats, err := processor.Process(ctx, objects)
	if err != nil {
		return nil, err
	}
	p.summary.SetParse(stats)
	p.metrics.ObserveParse(stats)

	if err := output.WriteJSON(p.outPath(p.cfg.Output.EmailsFile), emails); err != nil {
		return nil, err
	}
	return emails, nil
}

func (p *Pipeline) source() (emailprocessor.Source, error) {
	if dir := p.cfg.Input.ObjectsDir; dir != "" {
		if info, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("objects directory: %w", err)
		} else if !info.IsDir() {
			return nil, fmt.Errorf("objects directory: %s is not a directory", dir)
		}
		return emailprocessor.NewDirSource(dir), nil
	}
	if p.cfg.IMAP.Server != "" {
		return imapclient.NewSource(p.newMailbox(p.cfg.IMAP.Timeout), p.cfg.IMAP), nil
	}
	return nil, ErrNoSource
}

func (p *Pipeline) unify(emails []models.EmailRecord, flowRecords []models.FlowRecord) ([]models.UnifiedDocument, error) {
	defer p.timeStage("unify")()

	strategy, err := correlate.StrategyByName(p.cfg.Correlation.Strategy)
	if err != nil {
		return nil, err
	}
	docs := correlate.Unify(emails, flowRecords, strategy)
	p.summary.Documents = len(docs)
	if len(emails) > len(flowRecords) {
		p.log.Warnf("%d emails have no flow to pair with", len(emails)-len(flowRecords))
	}

	if err := output.WriteJSON(p.outPath(p.cfg.Output.FinalFile), docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// load prepares both bulk streams, writes them next to the JSON outputs and,
// when an index URL is configured, sends them.
func (p *Pipeline) load(ctx context.Context, docs []models.UnifiedDocument, flowDocs []models.FlowDocument) error {
	defer p.timeStage("load")()
	idx := p.cfg.Index

	sets := []struct {
		index   string
		schema  bulk.Schema
		records []any
	}{
		{idx.EmailIndex, bulk.UnifiedSchema, bulk.Records(docs)},
		{idx.FlowIndex, bulk.FlowSchema, bulk.Records(flowDocs)},
	}

	var client *bulk.Client
	if idx.URL != "" {
		client = bulk.NewClient(bulk.ClientConfig{URL: idx.URL, Timeout: idx.Timeout, MaxRetries: idx.MaxRetries})
	}

	for _, set := range sets {
		prepared, stats := bulk.NewPreparer(set.index, idx.IDMode, set.schema).Prepare(set.records)
		p.summary.Prepared[set.index] = stats
		p.metrics.ObservePrepare(set.index, stats)

		if err := output.WriteNDJSON(p.outPath(set.index+".ndjson"), prepared); err != nil {
			return err
		}
		if client == nil {
			continue
		}

		if idx.CreateIndex {
			if err := client.EnsureIndex(ctx, set.index, set.schema, idx.Recreate); err != nil {
				p.log.Errorf("Error preparing index %s: %v", set.index, err)
				continue
			}
		}
		loaded, err := bulk.Load(ctx, client, prepared, idx.BatchSize, idx.MaxBatchBytes)
		if err != nil {
			return err
		}
		p.summary.Loaded = append(p.summary.Loaded, loaded)
		p.metrics.ObserveLoad(loaded)
	}
	return nil
}

func (p *Pipeline) outPath(name string) string {
	return filepath.Join(p.cfg.Output.Dir, name)
}

func (p *Pipeline) timeStage(stage string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		p.metrics.ObserveStage(stage, d)
		p.log.WithField("stage", stage).Debugf("Stage finished in %s", d)
	}
}

func ensureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
