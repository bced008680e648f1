// Package planner drafts a debt-counselling action plan for a client
// record by asking a text completion model.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/template"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/intake/internal/rows"
	"github.com/mesh-intelligence/intake/internal/sanitize"
	"github.com/mesh-intelligence/intake/pkg/types"
)

// Planner errors.
var (
	ErrEmptyRecord     = errors.New("record has no data to plan from")
	ErrAPIKeyMissing   = errors.New("AI API key is not configured")
	ErrEmptyCompletion = errors.New("completion returned no text")
)

var userPrompt = template.Must(template.New("user").Parse(userPromptTemplate))

type planInput struct {
	Income     float64
	Debt       float64
	Repayments float64
	Record     string
}

// Planner builds prompts from records and hands them to a Completer.
type Planner struct {
	completer Completer
	logger    *zap.Logger
}

// New returns a Planner. A nil logger discards output.
func New(c Completer, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{completer: c, logger: logger}
}

// Plan asks the completer for an action plan for record. The completer is
// called once; its errors are returned unchanged.
func (p *Planner) Plan(ctx context.Context, record types.FormRecord) (string, error) {
	if len(record) == 0 {
		return "", ErrEmptyRecord
	}
	prompt, err := BuildPrompt(record)
	if err != nil {
		return "", err
	}

	p.logger.Debug("requesting action plan", zap.Int("prompt_bytes", len(prompt)))
	plan, err := p.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		p.logger.Warn("action plan request failed", zap.Error(err))
		return "", err
	}
	return plan, nil
}

// BuildPrompt renders the user prompt for record: section totals followed
// by the sanitized record as indented JSON.
func BuildPrompt(record types.FormRecord) (string, error) {
	clean := sanitize.Record(record)

	s := rows.NewSession()
	s.Apply(clean)
	in := planInput{Income: rows.Total(s.Table(rows.Income), rows.Income)}
	for _, sec := range []rows.Section{rows.Loans, rows.Executions, rows.Arrears} {
		in.Debt += debt(s.Table(sec), sec)
		in.Repayments += repayments(s.Table(sec), sec)
	}

	var js bytes.Buffer
	enc := json.NewEncoder(&js)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(clean); err != nil {
		return "", fmt.Errorf("encoding record: %w", err)
	}
	in.Record = js.String()

	var out bytes.Buffer
	if err := userPrompt.Execute(&out, in); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return out.String(), nil
}

// debtFields and repaymentFields pick the outstanding amount and the
// monthly payment of each debt section.
var (
	debtFields = map[string]string{
		rows.Loans.Key:      "Koľko ešte dlžím?",
		rows.Executions.Key: "Aktuálna výška exekúcie?",
		rows.Arrears.Key:    "V akej výške mám nedoplatok?",
	}
	repaymentFields = map[string]string{
		rows.Loans.Key:      "Akú mám mesačnú splátku?",
		rows.Executions.Key: "Akou sumou ju mesačne splácam?",
		rows.Arrears.Key:    "Akou sumou ho mesačne splácam?",
	}
)

func debt(t rows.Table, sec rows.Section) float64 {
	return column(t, sec, debtFields[sec.Key])
}

func repayments(t rows.Table, sec rows.Section) float64 {
	return column(t, sec, repaymentFields[sec.Key])
}

func column(t rows.Table, sec rows.Section, field string) float64 {
	only := rows.Section{Key: sec.Key, NumberFields: []string{field}}
	return rows.Total(t, only)
}
