package store

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var createTableRe = regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS (\w+) \((.*?)\);`)

// schemaColumns parses the migration file into table -> column set.
func schemaColumns(t *testing.T) map[string]map[string]bool {
	t.Helper()

	raw, err := os.ReadFile("../../migrations/schema.sql")
	require.NoError(t, err)

	tables := map[string]map[string]bool{}
	for _, m := range createTableRe.FindAllStringSubmatch(string(raw), -1) {
		columns := map[string]bool{}
		for _, line := range strings.Split(m[2], "\n") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			columns[fields[0]] = true
		}
		tables[m[1]] = columns
	}

	return tables
}

// The repositories name their columns in raw SQL, so a drifted migration
// only surfaces at runtime as an undefined-column error. Pin the column
// sets the queries depend on to the shipped schema.
func TestSchemaCoversRepositoryColumns(t *testing.T) {
	tables := schemaColumns(t)

	tests := []struct {
		table   string
		columns []string
	}{
		{
			table:   "orders",
			columns: []string{"order_id", "billz_id", "updated_at"},
		},
		{
			table:   "clients",
			columns: []string{"client_id", "phone", "first_name", "last_name", "billz_id", "updated_at"},
		},
		{
			table: "integrations",
			columns: []string{
				"type", "secret_token", "access_token", "refresh_token",
				"expires_at", "is_active", "updated_at",
			},
		},
		{
			table: "audit_logs",
			columns: []string{
				"id", "section", "action", "order_id", "description",
				"correlation_id", "success", "error_message", "created_at",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			columns, ok := tables[tt.table]
			require.True(t, ok, "table %s missing from schema", tt.table)

			for _, column := range tt.columns {
				assert.True(t, columns[column], "column %s.%s missing from schema", tt.table, column)
			}
		})
	}
}
