package photoprism

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// burstNamePattern matches camera burst sequence filenames. The shared
// prefix up to the burst token identifies the burst.
var burstNamePattern = regexp.MustCompile(`(?i)^(.*burst[0-9]*)`)

// BurstReader reads burst membership straight from PhotoPrism's MariaDB.
// The search API does not expose stack membership, so this is the only way
// to group bursts reliably. All queries are read-only.
type BurstReader struct {
	db *sql.DB
}

// NewBurstReader opens a read-only connection to the PhotoPrism database.
func NewBurstReader(dsn string) (*BurstReader, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &BurstReader{db: db}, nil
}

// Bursts returns a map from photo UID to burst identifier. Photos that are
// not part of any burst are omitted. Stacked photos share their stack UID;
// unstacked burst shots fall back to the filename sequence prefix.
func (r *BurstReader) Bursts(ctx context.Context) (map[string]string, error) {
	query := `
		SELECT p.photo_uid, p.photo_stack, f.file_name
		FROM photos p
		JOIN files f ON f.photo_id = p.id AND f.file_primary = 1
		WHERE p.deleted_at IS NULL
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	bursts := make(map[string]string)
	for rows.Next() {
		var uid, fileName string
		var stack sql.NullInt64
		if err := rows.Scan(&uid, &stack, &fileName); err != nil {
			return nil, fmt.Errorf("scan photo row: %w", err)
		}

		if stack.Valid && stack.Int64 > 0 {
			bursts[uid] = fmt.Sprintf("stack-%d", stack.Int64)
			continue
		}
		if id := burstIDFromName(fileName); id != "" {
			bursts[uid] = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photo rows: %w", err)
	}

	return bursts, nil
}

// Close closes the database connection.
func (r *BurstReader) Close() error {
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

func burstIDFromName(name string) string {
	base := name
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	m := burstNamePattern.FindStringSubmatch(base)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
