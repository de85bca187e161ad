package correlate

import (
	"fmt"
	"strings"

	"smtp-forensics/internal/models"
)

// Strategy decides which flow, if any, belongs to each email.
type Strategy interface {
	Name() string
	// Pair returns one entry per email; nil means no flow.
	Pair(emails []models.EmailRecord, flows []models.FlowRecord) []*models.FlowRecord
}

// Positional pairs the Nth email with the Nth flow. Flows and emails come
// from independent passes and share no key, so a capture where the two
// sequences drift apart will be mispaired.
type Positional struct{}

func (Positional) Name() string { return "positional" }

func (Positional) Pair(emails []models.EmailRecord, flows []models.FlowRecord) []*models.FlowRecord {
	pairs := make([]*models.FlowRecord, len(emails))
	for i := range emails {
		if i < len(flows) {
			pairs[i] = &flows[i]
		}
	}
	return pairs
}

// StrategyByName resolves the correlation.strategy setting.
func StrategyByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "positional":
		return Positional{}, nil
	default:
		return nil, fmt.Errorf("unknown correlation strategy %q", name)
	}
}
