package storage

import (
	"fmt"
	"strings"
)

// migrate applies the engine schema. Statements are idempotent; rerunning
// against an existing database is safe. Statements run one at a time
// because the pgx extended protocol rejects multi-statement Exec.
func (s *DB) migrate() error {
	schema := schemaSQLite
	if s.dialect == DialectPostgres {
		schema = schemaPostgres
	}

	for _, stmt := range splitStatements(schema) {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %q: %w", firstLine(stmt), err)
		}
	}

	s.logger.Debug().Str("dialect", string(s.dialect)).Msg("Schema applied")
	return nil
}

// splitStatements breaks the schema into individual statements. The
// schema contains no string literals with semicolons, so a plain split
// is sufficient.
func splitStatements(schema string) []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
