package tshark

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"smtp-forensics/internal/flows"
	"smtp-forensics/internal/models"
)

func TestFieldTableArgs(t *testing.T) {
	opts := OptionsFromConfig(models.DecoderConfig{})
	args := opts.FieldTableArgs("capture.pcap")

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-r capture.pcap",
		"-Y smtp && ip",
		"-T fields",
		"-E separator=|",
		"-E occurrence=f",
		"-E quote=n",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}

	var fields []string
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-e" {
			fields = append(fields, args[i+1])
		}
	}
	if len(fields) != len(flows.Fields) {
		t.Fatalf("got %d fields, want %d", len(fields), len(flows.Fields))
	}
	if fields[0] != "frame.time_epoch" || fields[len(fields)-1] != "tls.record.content_type" {
		t.Errorf("unexpected field order: %v", fields)
	}
}

func TestFieldTableArgsWithoutFilter(t *testing.T) {
	opts := Options{Binary: "tshark", Fields: []string{"ip.src"}}
	args := opts.FieldTableArgs("x.pcap")
	for _, a := range args {
		if a == "-Y" {
			t.Fatal("empty display filter must not emit -Y")
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(models.DecoderConfig{Binary: "/usr/bin/tshark", DisplayFilter: "smtp"})
	if opts.Binary != "/usr/bin/tshark" || opts.DisplayFilter != "smtp" {
		t.Errorf("config values not kept: %+v", opts)
	}
}

func TestExportObjectsArgs(t *testing.T) {
	got := strings.Join(ExportObjectsArgs("in.pcap", "out/objects"), " ")
	want := "-r in.pcap --export-objects imf,out/objects"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWriteFieldTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smtp_fields.txt")
	if err := WriteFieldTable(path, []string{"1|a|1|b|2", "2|a|1|b|2"}); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, stats, err := flows.NewNormalizer("").Normalize(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || stats.Accepted != 2 {
		t.Errorf("got %d records, stats %+v", len(records), stats)
	}
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestReadLines(t *testing.T) {
	input := "a|b\nc|d\n"
	lines, err := readLines(strings.NewReader(input))
	if err != nil {
		t.Fatalf("readLines() error: %v", err)
	}
	if len(lines) != 2 || lines[0] != "a|b" || lines[1] != "c|d" {
		t.Errorf("lines = %q", lines)
	}
}

func TestReadLines_DrainsAfterOversizedRow(t *testing.T) {
	input := "first\n" + strings.Repeat("x", maxLineSize+10) + "\n" + strings.Repeat("tail\n", 10000)
	cr := &countingReader{r: strings.NewReader(input)}

	lines, err := readLines(cr)
	if !errors.Is(err, bufio.ErrTooLong) {
		t.Fatalf("Expected bufio.ErrTooLong, got %v", err)
	}
	if len(lines) != 1 || lines[0] != "first" {
		t.Errorf("lines = %q", lines)
	}
	if cr.n != len(input) {
		t.Errorf("Read %d of %d bytes, reader was not drained", cr.n, len(input))
	}
}
