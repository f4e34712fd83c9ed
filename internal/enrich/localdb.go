package enrich

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/cmvp-api/cmvp-scraper/internal/cmvp"
)

// LocalDB answers algorithm lookups from a local SQLite snapshot, a faster
// substitute for live detail-page fetches when one is available
// (CMVP_DB_PATH). Expected schema:
//
//	CREATE TABLE algorithms (certificate TEXT NOT NULL, algorithm TEXT NOT NULL);
//	CREATE TABLE security_policies (certificate TEXT NOT NULL, url TEXT NOT NULL);
//
// The security_policies table is optional.
type LocalDB struct {
	db *sql.DB
}

// OpenLocalDB opens an existing database read-only style; a missing file is
// an error rather than silently falling back to live fetches.
func OpenLocalDB(path string) (*LocalDB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("local algorithm database %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rw")
	if err != nil {
		return nil, fmt.Errorf("open local algorithm database: %w", err)
	}

	// SQLite only supports one writer; we only read.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping local algorithm database: %w", err)
	}

	return &LocalDB{db: db}, nil
}

// Lookup returns the stored detail for a certificate. The second return is
// false when the database has nothing for it, prompting a live fetch.
func (l *LocalDB) Lookup(ctx context.Context, certificate string) (cmvp.Detail, bool, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT algorithm FROM algorithms WHERE certificate = ?", certificate)
	if err != nil {
		return cmvp.Detail{}, false, fmt.Errorf("query algorithms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var algorithms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return cmvp.Detail{}, false, fmt.Errorf("scan algorithm: %w", err)
		}
		if name != "" {
			algorithms = append(algorithms, name)
		}
	}
	if err := rows.Err(); err != nil {
		return cmvp.Detail{}, false, fmt.Errorf("iterate algorithms: %w", err)
	}
	if len(algorithms) == 0 {
		return cmvp.Detail{}, false, nil
	}
	sort.Strings(algorithms)

	detail := cmvp.Detail{Algorithms: algorithms}

	var policyURL string
	err = l.db.QueryRowContext(ctx,
		"SELECT url FROM security_policies WHERE certificate = ?", certificate).Scan(&policyURL)
	switch {
	case err == nil:
		detail.SecurityPolicyURL = policyURL
	case err == sql.ErrNoRows:
	case strings.Contains(err.Error(), "no such table"):
	default:
		return cmvp.Detail{}, false, fmt.Errorf("query security policy: %w", err)
	}

	return detail, true, nil
}

// Close closes the database connection.
func (l *LocalDB) Close() error {
	return l.db.Close()
}
