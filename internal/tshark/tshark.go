package tshark

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"smtp-forensics/internal/flows"
	"smtp-forensics/internal/logging"
	"smtp-forensics/internal/models"
)

// Options configures a tshark invocation
type Options struct {
	Binary        string
	DisplayFilter string
	Timeout       time.Duration
	Fields        []string
}

// OptionsFromConfig fills unset values with the defaults used for SMTP captures
func OptionsFromConfig(cfg models.DecoderConfig) Options {
	opts := Options{
		Binary:        cfg.Binary,
		DisplayFilter: cfg.DisplayFilter,
		Timeout:       cfg.Timeout,
		Fields:        flows.Fields,
	}
	if opts.Binary == "" {
		opts.Binary = "tshark"
	}
	if opts.DisplayFilter == "" {
		opts.DisplayFilter = "smtp && ip"
	}
	return opts
}

// ExportObjectsArgs builds the arguments that dump every IMF object of pcap into outDir.
func ExportObjectsArgs(pcap, outDir string) []string {
	return []string{"-r", pcap, "--export-objects", "imf," + outDir}
}

// FieldTableArgs builds the arguments of the pipe-delimited field table.
// The first occurrence of each field is kept and values are not quoted.
func (o Options) FieldTableArgs(pcap string) []string {
	args := []string{"-r", pcap}
	if o.DisplayFilter != "" {
		args = append(args, "-Y", o.DisplayFilter)
	}
	args = append(args,
		"-T", "fields",
		"-E", "separator="+flows.Separator,
		"-E", "occurrence=f",
		"-E", "quote=n",
	)
	for _, f := range o.Fields {
		args = append(args, "-e", f)
	}
	return args
}

// ExportObjects writes the message objects carried in pcap to outDir.
func ExportObjects(ctx context.Context, opts Options, pcap, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create objects directory: %w", err)
	}

	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, opts.Binary, ExportObjectsArgs(pcap, outDir)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logging.Log.WithField("pcap", pcap).Infof("Exporting message objects to %s", outDir)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tshark export failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// FieldTable runs the decoder over pcap and returns the field table lines.
func FieldTable(ctx context.Context, opts Options, pcap string) ([]string, error) {
	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, opts.Binary, opts.FieldTableArgs(pcap)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start tshark: %w", err)
	}

	lines, scanErr := readLines(stdout)

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("tshark field extraction failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if scanErr != nil {
		return nil, fmt.Errorf("failed to read tshark output: %w", scanErr)
	}

	logging.Log.WithField("pcap", pcap).Infof("Decoded %d field table rows", len(lines))
	return lines, nil
}

// maxLineSize bounds one field table row.
const maxLineSize = 1024 * 1024

// readLines scans r line by line. r is always read to EOF, so a writer on
// the other end of a pipe never blocks once scanning stops early.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	err := scanner.Err()
	_, _ = io.Copy(io.Discard, r)
	return lines, err
}

// WriteFieldTable stores lines as a field table file.
func WriteFieldTable(path string, lines []string) error {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
