package postgres

import "fmt"

// SchemaDDL returns the CREATE TABLE statement the store expects for table.
// Rows are seeded out of band; the service never writes to this table.
func SchemaDDL(table string) (string, error) {
	table, err := tableOrDefault(table)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id BIGSERIAL PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	department TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, table), nil
}
