package store

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/intake/pkg/types"
)

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"

	// sqliteFileName is created under Config.DataDir when no DSN is set.
	sqliteFileName = "intake.db"
)

// dialect captures the per-database differences: driver name, DSN,
// placeholder syntax, and how timestamps travel.
type dialect struct {
	name   string
	driver string
	dsn    string
}

func newDialect(cfg types.Config) (dialect, error) {
	switch cfg.Driver {
	case types.DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dir := cfg.DataDir
			if dir == "" {
				dir = "."
			}
			dsn = filepath.Join(dir, sqliteFileName)
		}
		return dialect{name: dialectSQLite, driver: "sqlite", dsn: dsn}, nil
	case types.DriverPostgres:
		return dialect{name: dialectPostgres, driver: "pgx", dsn: cfg.DSN}, nil
	default:
		return dialect{}, fmt.Errorf("%w: %q", types.ErrDriverUnknown, cfg.Driver)
	}
}

// rebind rewrites ? placeholders to $n for Postgres. Queries in this
// package never contain a literal question mark.
func (d dialect) rebind(query string) string {
	if d.name != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// timeArg converts t into the value bound for a timestamp column. SQLite
// stores RFC3339 text; Postgres takes time.Time directly.
func (d dialect) timeArg(t time.Time) any {
	if d.name == dialectPostgres {
		return t
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// scanTime converts a scanned timestamp column into time.Time. Empty text
// (rows migrated by Init) yields the zero time.
func scanTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return x, nil
	case string:
		return parseTimeText(x)
	case []byte:
		return parseTimeText(string(x))
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

func parseTimeText(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q", s)
}
