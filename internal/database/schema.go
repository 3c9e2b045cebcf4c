package database

import (
	"context"
	"fmt"
)

// StudentsTable is the only table the service owns.
const StudentsTable = "students"

var studentsDDL = map[string]string{
	DialectMySQL: `CREATE TABLE IF NOT EXISTS students (
		id INT AUTO_INCREMENT PRIMARY KEY,
		student_id VARCHAR(50) UNIQUE NOT NULL,
		student_name VARCHAR(100) NOT NULL,
		course VARCHAR(50) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	DialectPostgres: `CREATE TABLE IF NOT EXISTS students (
		id SERIAL PRIMARY KEY,
		student_id VARCHAR(50) UNIQUE NOT NULL,
		student_name VARCHAR(100) NOT NULL,
		course VARCHAR(50) NOT NULL,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,
	DialectSQLite: `CREATE TABLE IF NOT EXISTS students (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id VARCHAR(50) UNIQUE NOT NULL,
		student_name VARCHAR(100) NOT NULL,
		course VARCHAR(50) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

// StudentsDDL returns the CREATE TABLE IF NOT EXISTS statement for dialect.
func StudentsDDL(dialect string) (string, error) {
	ddl, ok := studentsDDL[dialect]
	if !ok {
		return "", fmt.Errorf("no students schema for dialect %q", dialect)
	}
	return ddl, nil
}

// EnsureSchema creates the students table if it does not exist. It is safe
// to call on every start.
func (g *Gateway) EnsureSchema(ctx context.Context) error {
	ddl, err := StudentsDDL(g.dialect)
	if err != nil {
		return err
	}
	if _, err := g.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("creating %s table: %w", StudentsTable, err)
	}
	g.log.Info().Str("table", StudentsTable).Msg("students table created or already exists")
	return nil
}
