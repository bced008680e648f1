package rows

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/intake/pkg/types"
)

// Table is the ordered row list of one section.
type Table []types.RowRecord

// Result is the outcome of a selection-driven transition. Only Applied
// changes the table; the others are warnings for the user.
type Result int

// Selection outcomes.
const (
	Applied Result = iota
	NoSelection
	AmbiguousSelection
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case NoSelection:
		return "no row selected"
	case AmbiguousSelection:
		return "more than one row selected"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Bulk replacement errors.
var (
	ErrIdentityMissing = errors.New("edited row has no ID")
	ErrUnknownRow      = errors.New("edited row ID is not in the table")
	ErrDuplicateRow    = errors.New("edited rows repeat an ID")
	ErrRowSetMismatch  = errors.New("edited rows do not cover the table")
)

// clone copies t and every row in it.
func (t Table) clone() Table {
	out := make(Table, len(t))
	for i, r := range t {
		out[i] = r.Clone()
	}
	return out
}

// selected returns the index of the single selected row.
func (t Table) selected() (int, Result) {
	idx := -1
	for i, r := range t {
		if !r.Selected() {
			continue
		}
		if idx >= 0 {
			return -1, AmbiguousSelection
		}
		idx = i
	}
	if idx < 0 {
		return -1, NoSelection
	}
	return idx, Applied
}

// Add appends a blank row for section with an ID from gen.
func Add(t Table, section Section, gen *IDGenerator) Table {
	out := t.clone()
	row := section.Defaults()
	row[types.IDKey] = gen.Next()
	return append(out, row)
}

// Select marks the row with id as selected and clears every other row.
// No row is selected when id is not in the table.
func Select(t Table, id string) Table {
	out := t.clone()
	for _, r := range out {
		r[types.SelectKey] = r.ID() == id
	}
	return out
}

// Edit overwrites the non-ID fields of the single selected row with
// fields. The row keeps its ID and its selection is cleared.
func Edit(t Table, fields types.RowRecord) (Table, Result) {
	idx, res := t.selected()
	if res != Applied {
		return t, res
	}
	out := t.clone()
	row := out[idx]
	for k, v := range fields {
		if k == types.IDKey || k == types.SelectKey {
			continue
		}
		row[k] = v
	}
	row[types.SelectKey] = false
	return out, Applied
}

// Delete removes the single selected row. The remaining rows keep their
// order and IDs.
func Delete(t Table) (Table, Result) {
	idx, res := t.selected()
	if res != Applied {
		return t, res
	}
	out := make(Table, 0, len(t)-1)
	for i, r := range t {
		if i != idx {
			out = append(out, r.Clone())
		}
	}
	return out, Applied
}

// Replace accepts a full edited copy of t, as returned by a grid editor.
// Each edited row must carry the ID of a row in t, and together they must
// cover every row exactly once. The edited order is kept.
func Replace(t Table, edited Table) (Table, error) {
	known := make(map[string]bool, len(t))
	for _, r := range t {
		known[r.ID()] = true
	}

	seen := make(map[string]bool, len(edited))
	out := make(Table, 0, len(edited))
	for i, r := range edited {
		id := r.ID()
		switch {
		case id == "":
			return t, fmt.Errorf("row %d: %w", i, ErrIdentityMissing)
		case !known[id]:
			return t, fmt.Errorf("row %d (%s): %w", i, id, ErrUnknownRow)
		case seen[id]:
			return t, fmt.Errorf("row %d (%s): %w", i, id, ErrDuplicateRow)
		}
		seen[id] = true
		row := r.Clone()
		row[types.SelectKey] = false
		out = append(out, row)
	}
	if len(seen) != len(known) {
		return t, fmt.Errorf("%d of %d rows: %w", len(seen), len(known), ErrRowSetMismatch)
	}
	return out, nil
}

// Total sums the number fields of every row. Values that are not numbers
// count as zero.
func Total(t Table, section Section) float64 {
	var sum float64
	for _, r := range t {
		for _, f := range section.NumberFields {
			sum += number(r[f])
		}
	}
	return sum
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Normalize turns a stored section value into a Table: rows gain any
// missing section fields with their defaults, selection is cleared, and
// legacy rows without an ID get one from gen after gen has observed every
// existing ID. Values that are not row lists yield an empty table.
func Normalize(section Section, raw any, gen *IDGenerator) Table {
	var in []map[string]any
	switch v := raw.(type) {
	case []any:
		for _, e := range v {
			if m, ok := asMap(e); ok {
				in = append(in, m)
			}
		}
	case []map[string]any:
		in = v
	case []types.RowRecord:
		for _, r := range v {
			in = append(in, r)
		}
	case Table:
		for _, r := range v {
			in = append(in, r)
		}
	}

	for _, m := range in {
		if id, ok := m[types.IDKey].(string); ok {
			gen.Observe(id)
		}
	}

	out := make(Table, 0, len(in))
	for _, m := range in {
		row := section.Defaults()
		for k, v := range m {
			row[k] = v
		}
		row[types.SelectKey] = false
		if row.ID() == "" {
			row[types.IDKey] = gen.Next()
		}
		out = append(out, row)
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case types.RowRecord:
		return m, true
	default:
		return nil, false
	}
}
