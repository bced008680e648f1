// Schema DDL for the intake record table, one statement set per dialect.
// The table name is substituted with fmt because identifiers cannot be
// bound; types.Config.Validate restricts it to a plain identifier.
package store

import "fmt"

const (
	createSQLite = `CREATE TABLE IF NOT EXISTS %s (
    cid TEXT PRIMARY KEY,
    data TEXT,
    last_updated TEXT NOT NULL,
    created_at TEXT NOT NULL,
    phase INTEGER
);`

	createPostgres = `CREATE TABLE IF NOT EXISTS %s (
    cid TEXT PRIMARY KEY,
    data TEXT,
    last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    phase BIGINT
);`
)

// column describes a column that older tables may lack.
type column struct {
	name       string
	sqliteType string
	pgType     string
}

// lateColumns were added after the first deployments of the table; Init
// adds them to tables created without them.
var lateColumns = []column{
	{name: "last_updated", sqliteType: "TEXT NOT NULL DEFAULT ''", pgType: "TIMESTAMPTZ NOT NULL DEFAULT now()"},
	{name: "created_at", sqliteType: "TEXT NOT NULL DEFAULT ''", pgType: "TIMESTAMPTZ NOT NULL DEFAULT now()"},
	{name: "phase", sqliteType: "INTEGER", pgType: "BIGINT"},
}

func (d dialect) createTable(table string) string {
	if d.name == dialectPostgres {
		return fmt.Sprintf(createPostgres, table)
	}
	return fmt.Sprintf(createSQLite, table)
}

func (d dialect) addColumn(table string, c column) string {
	if d.name == dialectPostgres {
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", table, c.name, c.pgType)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, c.name, c.sqliteType)
}
