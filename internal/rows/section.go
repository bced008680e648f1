// Package rows implements the editable-table convention shared by the
// income, loans, executions, and arrears sections of a FormRecord.
//
// A section is an ordered []types.RowRecord. Every row carries a RowID
// assigned once when the row is added and a selection flag that marks the
// target of an edit or delete. Transitions are pure: they return a new
// Table and never modify their input.
package rows

import "github.com/mesh-intelligence/intake/pkg/types"

// Section describes one editable table.
type Section struct {
	// Name is the short name used on the command line.
	Name string

	// Key is the FormRecord key holding the rows.
	Key string

	// Prefix starts every RowID in this section.
	Prefix string

	// TextFields default to "".
	TextFields []string

	// NumberFields default to 0 and are summed by Total.
	NumberFields []string
}

// Sections of the intake form.
var (
	Income = Section{
		Name:       "income",
		Key:        "prijmy_domacnosti",
		Prefix:     "PR",
		TextFields: []string{"Kto:"},
		NumberFields: []string{
			"Čistý mesačný príjem (TPP, brigáda)",
			"Čistý mesačný príjem z podnikania",
			"Sociálne dávky (PN, dôchodok, rodičovský príspevok)",
			"Iné (výživné, podpora od rodiny)",
		},
	}

	Loans = Section{
		Name:       "loans",
		Key:        "uvery_df",
		Prefix:     "UV",
		TextFields: []string{"Kde som si požičal?", "Na aký účel?", "Kedy som si požičal?"},
		NumberFields: []string{
			"Úroková sadzba?",
			"Koľko som si požičal?",
			"Koľko ešte dlžím?",
			"Akú mám mesačnú splátku?",
		},
	}

	Executions = Section{
		Name:         "executions",
		Key:          "exekucie_df",
		Prefix:       "EX",
		TextFields:   []string{"Meno exekútora", "Pre koho exekútor vymáha dlh?", "Od kedy mám exekúciu?"},
		NumberFields: []string{"Aktuálna výška exekúcie?", "Akou sumou ju mesačne splácam?"},
	}

	Arrears = Section{
		Name:         "arrears",
		Key:          "nedoplatky_data",
		Prefix:       "ND",
		TextFields:   []string{"Kde mám nedoplatok?", "Od kedy mám nedoplatok?"},
		NumberFields: []string{"V akej výške mám nedoplatok?", "Akou sumou ho mesačne splácam?"},
	}
)

// All lists the sections in form order.
var All = []Section{Income, Loans, Executions, Arrears}

// Lookup finds a section by Name or Key.
func Lookup(name string) (Section, bool) {
	for _, s := range All {
		if s.Name == name || s.Key == name {
			return s, true
		}
	}
	return Section{}, false
}

// Defaults returns a blank row without an ID.
func (s Section) Defaults() types.RowRecord {
	row := make(types.RowRecord, len(s.TextFields)+len(s.NumberFields)+1)
	row[types.SelectKey] = false
	for _, f := range s.TextFields {
		row[f] = ""
	}
	for _, f := range s.NumberFields {
		row[f] = 0.0
	}
	return row
}

// IsNumber reports whether field is one of the section's number fields.
func (s Section) IsNumber(field string) bool {
	for _, f := range s.NumberFields {
		if f == field {
			return true
		}
	}
	return false
}
