package store

import (
	"fmt"
	"strings"
	"time"
)

type Dialect interface {
	// Timestamp converts t to the value bound for a timestamp column.
	Timestamp(t time.Time) any
	// Contains renders a case-sensitive substring test of col against the
	// next placeholder; ContainsArg renders the matching argument.
	Contains(col string) string
	ContainsArg(s string) string
}

type sqliteDialect struct{}

func (d sqliteDialect) Timestamp(t time.Time) any {
	return t.UTC().Format(sqliteTimeLayout)
}
func (d sqliteDialect) Contains(col string) string  { return fmt.Sprintf("instr(%s, ?) > 0", col) }
func (d sqliteDialect) ContainsArg(s string) string { return s }

type postgresDialect struct{}

func (d postgresDialect) Timestamp(t time.Time) any   { return t.UTC() }
func (d postgresDialect) Contains(col string) string  { return col + " LIKE ?" }
func (d postgresDialect) ContainsArg(s string) string { return "%" + s + "%" }

// sqliteTimeLayout matches strftime('%Y-%m-%dT%H:%M:%fZ') so stored values
// sort and parse the same whichever side wrote them.
const sqliteTimeLayout = "2006-01-02T15:04:05.000Z"

// parseTime converts a scanned timestamp value to time.Time.
// Handles both SQLite (returns string) and Postgres (returns time.Time).
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case []byte:
		return parseTime(string(t))
	case string:
		if t == "" {
			return time.Time{}
		}
		for _, layout := range []string{
			time.RFC3339Nano,
			sqliteTimeLayout,
			"2006-01-02 15:04:05",
			"2006-01-02 15:04:05.999999-07:00",
		} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC()
			}
		}
	}
	return time.Time{}
}

// parseTimePtr is like parseTime but returns nil for zero/missing timestamps.
func parseTimePtr(v any) *time.Time {
	t := parseTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func Rebind(query string) string {
	n := 0
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(fmt.Sprintf("$%d", n))
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
