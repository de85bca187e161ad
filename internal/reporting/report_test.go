package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"smtp-forensics/internal/bulk"
	"smtp-forensics/internal/models"
)

func sampleSummary() *Summary {
	started := time.Date(2023, 7, 28, 10, 0, 0, 0, time.UTC)
	s := NewSummary("run-1", started)
	s.Flows = models.FlowStats{Accepted: 12, Rejected: 2, StartTLS: 1, RejectReasons: map[string]int{"too_few_fields": 2}}

	parse := models.NewParseStats()
	parse.Attempted = 5
	parse.Parsed = 4
	parse.Failed = 1
	parse.TotalAttachments = 2
	parse.UniqueSenders["alice@example.com"] = struct{}{}
	s.SetParse(parse)

	s.Documents = 4
	s.Prepared["email-data"] = bulk.PrepareStats{Input: 4, Prepared: 4}
	s.Loaded = append(s.Loaded, bulk.LoadStats{Index: "email-data", Batches: 1, Indexed: 4})
	s.Finish(started.Add(2 * time.Second))
	return s
}

func TestRender(t *testing.T) {
	out := sampleSummary().Render()

	for _, want := range []string{
		"SMTP forensics run run-1 (2s)",
		"Flow rows accepted",
		"12",
		"Unique senders",
		"Prepared email-data",
		"4 (0 skipped)",
		"Indexed email-data",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	if err := sampleSummary().Write(path); err != nil {
		t.Fatalf("Failed to write summary: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read summary: %v", err)
	}

	var back map[string]any
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("summary is not JSON: %v", err)
	}
	if back["run_id"] != "run-1" {
		t.Errorf("run_id = %v", back["run_id"])
	}
	if back["unique_senders"] != float64(1) {
		t.Errorf("unique_senders = %v", back["unique_senders"])
	}
	flows := back["flows"].(map[string]any)
	if flows["accepted"] != float64(12) {
		t.Errorf("flows.accepted = %v", flows["accepted"])
	}
}

func TestIsFailure(t *testing.T) {
	tests := []struct {
		row  []string
		want bool
	}{
		{[]string{"Objects failed", "0"}, false},
		{[]string{"Objects failed", "3"}, true},
		{[]string{"Flow rows rejected", "1"}, true},
		{[]string{"Objects parsed", "3"}, false},
	}
	for _, tt := range tests {
		if got := isFailure(tt.row); got != tt.want {
			t.Errorf("isFailure(%v) = %v, want %v", tt.row, got, tt.want)
		}
	}
}
