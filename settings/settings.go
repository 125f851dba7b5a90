//Package settings is the persistent key/value store the provider reads
//system properties and system settings from.
package settings

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/chris-pikul/contacts-rcs/db"
)

//Keys read by the provider
const (
	//PropertyRCSEnabled toggles the RCS raw contacts schema
	PropertyRCSEnabled = "persist.sys.rcs.enabled"

	//PreferredSimIconIndex is a comma separated list of icon indices,
	//one entry per subscription
	PreferredSimIconIndex = "preferred_sim_icon_index"
)

const schema = `
CREATE TABLE IF NOT EXISTS system (
	_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE ON CONFLICT REPLACE,
	value TEXT
);
`

//Reader looks up a setting. Unset keys return "" and no error
type Reader interface {
	String(ctx context.Context, key string) (string, error)
}

//Store is a Reader backed by the system table of a SQLite file
type Store struct {
	conn *sql.DB
}

//Open opens (or creates) the settings database at filename
func Open(filename string) (*Store, error) {
	conn, err := db.Open(filename)
	if err != nil {
		return nil, err
	}

	s, err := New(context.Background(), conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

//New wraps an already open database, creating the system table if needed
func New(ctx context.Context, conn *sql.DB) (*Store, error) {
	if conn == nil {
		return nil, db.ErrNotOpen
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create settings table: %w", err)
	}
	return &Store{conn: conn}, nil
}

//Close closes the underlying database
func (s *Store) Close() error {
	return s.conn.Close()
}

//String returns the value stored under key, or "" when unset
func (s *Store) String(ctx context.Context, key string) (string, error) {
	var value sql.NullString
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM system WHERE name = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return value.String, nil
}

//Set stores value under key, replacing any previous value
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx, `INSERT INTO system (name, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

//Delete removes key. Removing an unset key is not an error
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM system WHERE name = ?`, key)
	if err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

//Map is an in-memory Reader
type Map map[string]string

//String returns the value stored under key, or "" when unset
func (m Map) String(_ context.Context, key string) (string, error) {
	return m[key], nil
}

//Bool reads key as a boolean property. Unset, unreadable or
//unrecognised values yield def
func Bool(ctx context.Context, r Reader, key string, def bool) bool {
	if r == nil {
		return def
	}

	value, err := r.String(ctx, key)
	if err != nil {
		return def
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "y", "yes", "on", "true":
		return true
	case "0", "n", "no", "off", "false":
		return false
	}
	return def
}
