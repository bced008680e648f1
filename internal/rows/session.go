package rows

import "github.com/mesh-intelligence/intake/pkg/types"

// Session holds the row tables of one editing session with an ID
// generator per section, so IDs stay unique across every add in the
// session.
type Session struct {
	tables map[string]Table
	gens   map[string]*IDGenerator
}

// NewSession returns an empty session using the wall clock for IDs.
func NewSession() *Session {
	s := &Session{
		tables: make(map[string]Table, len(All)),
		gens:   make(map[string]*IDGenerator, len(All)),
	}
	for _, sec := range All {
		s.gens[sec.Key] = NewIDGenerator(sec.Prefix)
	}
	return s
}

// Generator returns the ID generator of section.
func (s *Session) Generator(section Section) *IDGenerator {
	return s.gens[section.Key]
}

// Table returns the current rows of section.
func (s *Session) Table(section Section) Table {
	return s.tables[section.Key]
}

// Set replaces the rows of section.
func (s *Session) Set(section Section, t Table) {
	s.tables[section.Key] = t
}

// Apply loads every section from record, normalizing rows on the way.
func (s *Session) Apply(record types.FormRecord) {
	for _, sec := range All {
		s.tables[sec.Key] = Normalize(sec, record[sec.Key], s.gens[sec.Key])
	}
}

// Export writes every section back into a copy of record. Empty sections
// are written as empty lists.
func (s *Session) Export(record types.FormRecord) types.FormRecord {
	out := make(types.FormRecord, len(record)+len(All))
	for k, v := range record {
		out[k] = v
	}
	for _, sec := range All {
		t := s.tables[sec.Key]
		rows := make([]types.RowRecord, 0, len(t))
		for _, r := range t {
			rows = append(rows, r.Clone())
		}
		out[sec.Key] = rows
	}
	return out
}
