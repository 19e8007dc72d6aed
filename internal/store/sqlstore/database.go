package sqlstore

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"io"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema/*.sql
var schemas embed.FS

// dialect captures the differences between the supported databases.
type dialect struct {
	// returning is set for drivers that cannot report the last inserted id and need an
	// INSERT ... RETURNING id instead.
	returning bool
	// singleWriter is set for databases that allow only one writing connection.
	singleWriter bool
}

var dialects = map[string]dialect{
	"mysql":    {},
	"postgres": {returning: true},
	"sqlite3":  {singleWriter: true},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

// Open initializes a database connection for one of the drivers "mysql", "postgres" and
// "sqlite3" and verifies that the database is reachable.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if d.singleWriter {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}
	return db, nil
}

// Migrate creates the contacts table and its indexes if they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := dialectFor(db.DriverName()); err != nil {
		return err
	}
	schema, err := schemas.ReadFile("schema/" + db.DriverName() + ".sql")
	if err != nil {
		return fmt.Errorf("read %s schema: %w", db.DriverName(), err)
	}
	return ExecScript(ctx, db, strings.NewReader(string(schema)))
}

// ExecScript executes an SQL script statement by statement. A statement ends with the line that
// contains a semicolon, because not every driver accepts several statements in one call.
func ExecScript(ctx context.Context, db *sqlx.DB, script io.Reader) error {
	scanner := bufio.NewScanner(script)
	scanner.Split(bufio.ScanLines)
	builder := strings.Builder{}
	for scanner.Scan() {
		line := scanner.Text()
		builder.WriteString(line)
		builder.WriteString(" ")
		if strings.Contains(line, ";") {
			if _, err := db.ExecContext(ctx, builder.String()); err != nil {
				return fmt.Errorf("execute %q: %w", strings.TrimSpace(builder.String()), err)
			}
			builder = strings.Builder{}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	if rest := strings.TrimSpace(builder.String()); rest != "" {
		if _, err := db.ExecContext(ctx, rest); err != nil {
			return fmt.Errorf("execute %q: %w", rest, err)
		}
	}
	return nil
}
