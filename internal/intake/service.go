// Package intake saves, loads, and repairs client questionnaire records.
//
// Save sanitizes the record, serializes it, and upserts it by CID through
// a bounded retry loop that reconnects after transient store failures.
// Load parses the stored text, falling back to escaping raw whitespace
// when the text is not valid JSON. Repair rewrites a stored record in its
// sanitized form, recovering it through the same fallback when needed.
package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/intake/internal/metrics"
	"github.com/mesh-intelligence/intake/internal/retry"
	"github.com/mesh-intelligence/intake/internal/sanitize"
	"github.com/mesh-intelligence/intake/pkg/types"
)

// Store is the record store the service writes through.
type Store interface {
	Exists(ctx context.Context, cid string) (bool, error)
	Fetch(ctx context.Context, cid string) (*types.Envelope, error)
	Insert(ctx context.Context, cid, data string, phase *int64) error
	Update(ctx context.Context, cid, data string, phase *int64) error

	// Reset discards the cached connection so the next call reconnects.
	Reset()
}

// Service owns the write path to stored envelopes.
type Service struct {
	store   Store
	policy  retry.Policy
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithPolicy replaces the default retry policy.
func WithPolicy(p retry.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

// New returns a Service writing through store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: retry.Default(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveOption configures a single Save call.
type SaveOption func(*saveOptions)

type saveOptions struct {
	phase *int64
}

// WithPhase writes the phase column along with the record.
func WithPhase(phase int64) SaveOption {
	return func(o *saveOptions) { o.phase = &phase }
}

// Save upserts record under cid. The outcome comes from the existence
// check made just before the write.
func (s *Service) Save(ctx context.Context, cid string, record types.FormRecord, opts ...SaveOption) (types.SaveOutcome, error) {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		s.metrics.Save(metrics.OutcomeInvalidKey)
		return "", types.ErrInvalidKey
	}
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}

	log := s.logger.With(zap.String("cid", cid), zap.String("op", newOpID()))

	data, err := Encode(record)
	if err != nil {
		s.metrics.Save(metrics.OutcomeError)
		return "", err
	}

	var outcome types.SaveOutcome
	err = s.policy.Do(ctx, func(ctx context.Context) error {
		exists, err := s.store.Exists(ctx, cid)
		if err != nil {
			return err
		}
		if exists {
			outcome = types.OutcomeUpdated
			return s.store.Update(ctx, cid, data, o.phase)
		}
		outcome = types.OutcomeCreated
		return s.store.Insert(ctx, cid, data, o.phase)
	}, s.onRetry(log, "save"))
	if err != nil {
		log.Error("save failed", zap.Error(err))
		s.metrics.Save(metrics.OutcomeError)
		return "", fmt.Errorf("save %s: %w", cid, err)
	}

	log.Info("record saved", zap.String("outcome", string(outcome)), zap.Int("bytes", len(data)))
	s.metrics.Save(string(outcome))
	return outcome, nil
}

// Loaded is a record read back from the store.
type Loaded struct {
	CID         string
	Record      types.FormRecord
	LastUpdated time.Time
	CreatedAt   time.Time
	Phase       *int64

	// Recovered is set when the stored text only parsed after escaping
	// raw whitespace. The stored text stays corrupt until Repair runs.
	Recovered bool
}

// Load reads the record for cid. It returns an error wrapping
// types.ErrNotFound when nothing is stored and types.ErrDecode when the
// stored text cannot be parsed even after the whitespace fallback.
func (s *Service) Load(ctx context.Context, cid string) (*Loaded, error) {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return nil, types.ErrInvalidKey
	}
	log := s.logger.With(zap.String("cid", cid))

	env, err := s.fetch(ctx, log, cid)
	if errors.Is(err, types.ErrNotFound) {
		s.metrics.Load(metrics.OutcomeNotFound)
		return nil, fmt.Errorf("load %s: %w", cid, types.ErrNotFound)
	}
	if err != nil {
		s.metrics.Load(metrics.OutcomeError)
		return nil, fmt.Errorf("load %s: %w", cid, err)
	}

	record, recovered, err := Decode(env.Data)
	if err != nil {
		log.Warn("stored record is unreadable", zap.Error(err))
		s.metrics.Load(metrics.OutcomeError)
		return nil, fmt.Errorf("load %s: %w", cid, err)
	}
	if recovered {
		log.Warn("stored record parsed only after escaping whitespace; run repair")
		s.metrics.Load(metrics.OutcomeRecovered)
	} else {
		s.metrics.Load(metrics.OutcomeOK)
	}

	return &Loaded{
		CID:         env.CID,
		Record:      record,
		LastUpdated: env.LastUpdated,
		CreatedAt:   env.CreatedAt,
		Phase:       env.Phase,
		Recovered:   recovered,
	}, nil
}

// Repair rewrites the stored record for cid in sanitized form. It reports
// true when the record is now valid (or already was) and false when
// nothing is stored or the text cannot be recovered; an unrecoverable
// record is left untouched. Store failures are returned as errors.
func (s *Service) Repair(ctx context.Context, cid string) (bool, error) {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return false, types.ErrInvalidKey
	}
	log := s.logger.With(zap.String("cid", cid), zap.String("op", newOpID()))

	env, err := s.fetch(ctx, log, cid)
	if errors.Is(err, types.ErrNotFound) {
		s.metrics.Repair(metrics.OutcomeNotFound)
		return false, nil
	}
	if err != nil {
		s.metrics.Repair(metrics.OutcomeError)
		return false, fmt.Errorf("repair %s: %w", cid, err)
	}

	record, recovered, err := Decode(env.Data)
	if err != nil {
		log.Error("record is unrecoverable", zap.Error(err))
		s.metrics.Repair(metrics.OutcomeUnrecoverable)
		return false, nil
	}

	data, err := Encode(record)
	if err != nil {
		s.metrics.Repair(metrics.OutcomeError)
		return false, fmt.Errorf("repair %s: %w", cid, err)
	}

	err = s.policy.Do(ctx, func(ctx context.Context) error {
		return s.store.Update(ctx, cid, data, nil)
	}, s.onRetry(log, "repair"))
	if err != nil {
		log.Error("repair write failed", zap.Error(err))
		s.metrics.Repair(metrics.OutcomeError)
		return false, fmt.Errorf("repair %s: %w", cid, err)
	}

	log.Info("record repaired", zap.Bool("recovered", recovered))
	s.metrics.Repair(metrics.OutcomeRepaired)
	return true, nil
}

func (s *Service) fetch(ctx context.Context, log *zap.Logger, cid string) (*types.Envelope, error) {
	var env *types.Envelope
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		env, err = s.store.Fetch(ctx, cid)
		return err
	}, s.onRetry(log, "fetch"))
	return env, err
}

// onRetry logs the transient failure and drops the store connection.
func (s *Service) onRetry(log *zap.Logger, operation string) func(int, error) {
	return func(attempt int, err error) {
		log.Warn("store operation failed, reconnecting",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err))
		s.metrics.Retry(operation)
		s.store.Reset()
	}
}

// Encode sanitizes record and serializes it to JSON. Non-ASCII text is
// written as-is so stored records stay readable.
func Encode(record types.FormRecord) (string, error) {
	clean := sanitize.Record(record)
	if clean == nil {
		clean = types.FormRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(clean); err != nil {
		return "", fmt.Errorf("encoding record: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Decode parses stored text into a FormRecord. Numbers are kept as
// json.Number so large integers survive a decode and re-encode unchanged.
// When the direct parse fails it retries after escaping raw newline, tab,
// and carriage-return bytes, and reports recovered=true on success. Empty
// text decodes to an empty record.
func Decode(raw string) (record types.FormRecord, recovered bool, err error) {
	if strings.TrimSpace(raw) == "" {
		return types.FormRecord{}, false, nil
	}
	if record, err := decodeObject(raw); err == nil {
		return record, false, nil
	}

	record, err = decodeObject(sanitize.EscapeWhitespace(raw))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", types.ErrDecode, err)
	}
	return record, true, nil
}

// decodeObject parses exactly one JSON object from raw. A JSON null
// yields an empty record.
func decodeObject(raw string) (types.FormRecord, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var record types.FormRecord
	if err := dec.Decode(&record); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON object")
	}
	if record == nil {
		record = types.FormRecord{}
	}
	return record, nil
}

// newOpID returns a UUID v7 used to correlate the log lines of one call.
func newOpID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
