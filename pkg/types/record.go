// Record types persisted by the intake store.
package types

import "time"

// Reserved keys inside a RowRecord.
const (
	// IDKey holds the RowID. It is assigned once when the row is added.
	IDKey = "ID"

	// SelectKey holds the transient selection flag used by edit and delete.
	// It is reset to false whenever rows are loaded.
	SelectKey = "Vybrať"
)

// FormRecord is the full questionnaire state for one CID. Values are
// scalars (string, json.Number or float64, bool, nil) or []any of RowRecord-shaped maps.
type FormRecord map[string]any

// RowRecord is one entry in an editable section.
type RowRecord map[string]any

// ID returns the RowID, or "" if the row has none.
func (r RowRecord) ID() string {
	id, _ := r[IDKey].(string)
	return id
}

// Selected reports whether the selection flag is set.
func (r RowRecord) Selected() bool {
	sel, _ := r[SelectKey].(bool)
	return sel
}

// Clone returns a shallow copy of the row. Row fields are scalars, so a
// shallow copy is enough to keep transitions free of aliasing.
func (r RowRecord) Clone() RowRecord {
	out := make(RowRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Envelope is the stored unit: one per CID.
type Envelope struct {
	// CID is the client identifier and the primary key.
	CID string

	// Data is the serialized FormRecord. It is valid JSON after every
	// successful write but may be corrupt if written by an older client.
	Data string

	// LastUpdated is refreshed on every write.
	LastUpdated time.Time

	// CreatedAt is set once on insert.
	CreatedAt time.Time

	// Phase is an optional caller-supplied status tag; nil when unset.
	Phase *int64
}

// SaveOutcome reports whether a save created or updated the envelope.
type SaveOutcome string

// Save outcomes.
const (
	OutcomeCreated SaveOutcome = "created"
	OutcomeUpdated SaveOutcome = "updated"
)
