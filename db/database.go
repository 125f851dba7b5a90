package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/chris-pikul/contacts-rcs/log"
)

//DriverName is the database/sql driver name registered by this package.
//It is go-sqlite3 with the PHONEBOOK collation installed on every connection
const DriverName = "sqlite3_contacts"

//PhonebookCollator is the collation used by the raw contact sort keys
const PhonebookCollator = "PHONEBOOK"

var (
	collatorLock sync.Mutex
	collator     = collate.New(language.Und, collate.IgnoreCase, collate.IgnoreWidth)
)

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterCollation(PhonebookCollator, phonebookCompare)
		},
	})
}

//collate.Collator keeps scratch buffers, so calls are serialized
func phonebookCompare(a, b string) int {
	collatorLock.Lock()
	defer collatorLock.Unlock()
	return collator.CompareString(a, b)
}

//Handle is the subset of *sql.DB, *sql.Conn and *sql.Tx the schema
//code needs. Callers pass whichever scope they hold
type Handle interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	//ErrNotOpen is returned when a nil database handle is used
	ErrNotOpen = errors.New("database connection is not open")

	//ErrNoFile is returned when no database file name was configured
	ErrNoFile = errors.New("database file name is empty")
)

//Open opens the SQLite database file, creating it when missing.
//The pool is capped at one connection since SQLite has a single writer
//and the provider never needs more.
func Open(filename string) (*sql.DB, error) {
	if filename == "" {
		return nil, ErrNoFile
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", filename)
	conn, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", filename, err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database %s: %w", filename, err)
	}

	log.Debugf("database connection opened to file %s", filename)
	return conn, nil
}

//Initialize opens the contacts database. A brand new file gets the
//base contacts schema, an existing one has its schema version checked
func Initialize(ctx context.Context, filename string) (*sql.DB, error) {
	createSchema := false
	if _, err := os.Stat(filename); err != nil {
		log.Infof("creating database file %s", filename)
		createSchema = true
	}

	conn, err := Open(filename)
	if err != nil {
		return nil, err
	}

	if createSchema {
		err = CreateSchema(ctx, conn)
	} else {
		err = CheckVersion(ctx, conn)
	}
	if err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

//CreateSchema sets up the base contacts schema the provider expects to
//find: accounts, mimetypes, raw_contacts (without any feature columns)
//and data
func CreateSchema(ctx context.Context, h Handle) error {
	if h == nil {
		return ErrNotOpen
	}

	log.Info("setting up contacts database schema")

	if _, err := h.ExecContext(ctx, contactsSchema); err != nil {
		return fmt.Errorf("create contacts schema: %w", err)
	}

	for _, mt := range knownMimetypes {
		if _, err := h.ExecContext(ctx, `INSERT OR IGNORE INTO mimetypes (mimetype) VALUES (?)`, mt); err != nil {
			return fmt.Errorf("seed mimetype %s: %w", mt, err)
		}
	}

	//Set the schema version
	if _, err := h.ExecContext(ctx, `INSERT INTO version (version) VALUES (?)`, SchemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	log.Infof("set schema version to %d", SchemaVersion)
	return nil
}

//CheckVersion reads the database schema version and checks
//against the current version in this binary. A database written by a
//newer binary is refused. Databases without the version table were not
//created here and are accepted whatever their user_version
func CheckVersion(ctx context.Context, h Handle) error {
	if h == nil {
		return ErrNotOpen
	}

	//A contacts file owned by the surrounding provider carries its own
	//versioning in user_version and is patched as found
	owned, err := TableExists(ctx, h, TableVersion)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if !owned {
		var userVersion int
		if err := h.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&userVersion); err != nil {
			return fmt.Errorf("read user_version: %w", err)
		}
		log.Infof("foreign contacts schema (user_version %d), skipping version check", userVersion)
		return nil
	}

	var cur int
	row := h.QueryRowContext(ctx, `SELECT version FROM version`)
	if err := row.Scan(&cur); err != nil {
		if err == sql.ErrNoRows {
			//Improperly setup
			return errors.New("could not find the schema version of the database, it may be corrupt")
		}
		return fmt.Errorf("read schema version: %w", err)
	}

	if cur > SchemaVersion {
		return fmt.Errorf("database schema version %d is higher then the binaries target %d", cur, SchemaVersion)
	}

	return nil
}

//TableExists reports whether a table of the given name is defined
func TableExists(ctx context.Context, h Handle, name string) (bool, error) {
	return objectExists(ctx, h, "table", name)
}

//ViewExists reports whether a view of the given name is defined
func ViewExists(ctx context.Context, h Handle, name string) (bool, error) {
	return objectExists(ctx, h, "view", name)
}

func objectExists(ctx context.Context, h Handle, kind, name string) (bool, error) {
	if h == nil {
		return false, ErrNotOpen
	}

	var n int
	err := h.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?`, kind, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("look up %s %s: %w", kind, name, err)
	}
	return n > 0, nil
}

//Columns lists the column names of a table or view in declaration order.
//An unknown name yields an empty list
func Columns(ctx context.Context, h Handle, name string) ([]string, error) {
	if h == nil {
		return nil, ErrNotOpen
	}

	rows, err := h.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, name)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", name, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", name, err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", name, err)
	}

	return cols, nil
}

//HasColumn reports whether the named table or view has the column
func HasColumn(ctx context.Context, h Handle, name, column string) (bool, error) {
	cols, err := Columns(ctx, h, name)
	if err != nil {
		return false, err
	}
	for _, c := range cols {
		if c == column {
			return true, nil
		}
	}
	return false, nil
}
