// Package types defines the record shapes, configuration, and standard
// errors shared by the intake store, services, and CLI.
//
// A FormRecord is the whole questionnaire for one client, keyed by CID.
// Editable sections inside it (income, loans, executions, arrears) are
// ordered lists of RowRecords that carry a synthetic RowID.
package types
