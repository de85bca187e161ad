package reporting

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"smtp-forensics/internal/bulk"
	"smtp-forensics/internal/models"
	"smtp-forensics/internal/output"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	failStyle   = cellStyle.Foreground(lipgloss.Color("#D9534F"))
)

// Summary is the end of run report written to summary.json
type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Flows            models.FlowStats  `json:"flows"`
	Parse            models.ParseStats `json:"parse"`
	UniqueSenders    int               `json:"unique_senders"`
	UniqueRecipients int               `json:"unique_recipients"`
	Documents        int               `json:"unified_documents"`

	Prepared map[string]bulk.PrepareStats `json:"prepared,omitempty"`
	Loaded   []bulk.LoadStats             `json:"loaded,omitempty"`
}

func NewSummary(runID string, started time.Time) *Summary {
	return &Summary{
		RunID:     runID,
		StartedAt: started,
		Prepared:  map[string]bulk.PrepareStats{},
	}
}

// SetParse stores parse statistics and the distinct address counts
func (s *Summary) SetParse(stats models.ParseStats) {
	s.Parse = stats
	s.UniqueSenders = len(stats.UniqueSenders)
	s.UniqueRecipients = len(stats.UniqueRecipients)
}

func (s *Summary) Finish(at time.Time) {
	s.FinishedAt = at
}

// Write stores the summary as indented JSON
func (s *Summary) Write(path string) error {
	return output.WriteJSON(path, s)
}

// Render draws the summary as a terminal table.
func (s *Summary) Render() string {
	rows := [][]string{
		{"Flow rows accepted", strconv.Itoa(s.Flows.Accepted)},
		{"Flow rows rejected", strconv.Itoa(s.Flows.Rejected)},
		{"STARTTLS flows", strconv.Itoa(s.Flows.StartTLS)},
		{"Objects attempted", strconv.Itoa(s.Parse.Attempted)},
		{"Objects parsed", strconv.Itoa(s.Parse.Parsed)},
		{"Objects failed", strconv.Itoa(s.Parse.Failed)},
		{"Objects skipped (small)", strconv.Itoa(s.Parse.SkippedSmall)},
		{"Parsed leniently", strconv.Itoa(s.Parse.Lenient)},
		{"Emails with attachments", strconv.Itoa(s.Parse.WithAttachments)},
		{"Attachments", strconv.Itoa(s.Parse.TotalAttachments)},
		{"Unique senders", strconv.Itoa(s.UniqueSenders)},
		{"Unique recipients", strconv.Itoa(s.UniqueRecipients)},
		{"Unified documents", strconv.Itoa(s.Documents)},
	}

	indices := make([]string, 0, len(s.Prepared))
	for index := range s.Prepared {
		indices = append(indices, index)
	}
	sort.Strings(indices)
	for _, index := range indices {
		p := s.Prepared[index]
		rows = append(rows, []string{"Prepared " + index, fmt.Sprintf("%d (%d skipped)", p.Prepared, p.Skipped)})
	}
	for _, l := range s.Loaded {
		rows = append(rows, []string{"Indexed " + l.Index, fmt.Sprintf("%d (%d failed)", l.Indexed, l.Failed)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Stage", "Count").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(rows) && isFailure(rows[row]) {
				return failStyle
			}
			return cellStyle
		})

	title := titleStyle.Render(fmt.Sprintf("SMTP forensics run %s (%s)", s.RunID, s.duration()))
	return lipgloss.JoinVertical(lipgloss.Left, title, t.Render())
}

func (s *Summary) duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)
}

func isFailure(row []string) bool {
	if row[1] == "0" {
		return false
	}
	return strings.Contains(row[0], "failed") || strings.Contains(row[0], "rejected")
}
