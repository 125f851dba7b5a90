package rcs

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-pikul/contacts-rcs/db"
	"github.com/chris-pikul/contacts-rcs/settings"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "contacts2.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

//baseDB opens a database holding the provider schema before any RCS patch
func baseDB(t *testing.T) *sql.DB {
	t.Helper()
	conn := openDB(t)
	require.NoError(t, db.CreateSchema(context.Background(), conn))
	return conn
}

func enabled() settings.Map {
	return settings.Map{settings.PropertyRCSEnabled: "true"}
}

func disabled() settings.Map {
	return settings.Map{settings.PropertyRCSEnabled: "false"}
}

func columns(t *testing.T, h db.Handle, name string) []string {
	t.Helper()
	cols, err := db.Columns(context.Background(), h, name)
	require.NoError(t, err)
	return cols
}

//schemaState snapshots every object definition in the database
func schemaState(t *testing.T, conn *sql.DB) []string {
	t.Helper()
	rows, err := conn.Query(`SELECT type || ' ' || name || ' ' || IFNULL(sql, '') FROM sqlite_master ORDER BY type, name`)
	require.NoError(t, err)
	defer rows.Close()

	var state []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		state = append(state, s)
	}
	require.NoError(t, rows.Err())
	return state
}

func TestIsFeatureEnabled(t *testing.T) {
	ctx := context.Background()

	assert.False(t, NewManager(settings.Map{}).IsFeatureEnabled(ctx), "unset property defaults to off")
	assert.False(t, NewManager(disabled()).IsFeatureEnabled(ctx))
	assert.True(t, NewManager(enabled()).IsFeatureEnabled(ctx))
	assert.True(t, NewManager(settings.Map{settings.PropertyRCSEnabled: "1"}).IsFeatureEnabled(ctx))
}

func TestEnsureUpgradedDisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	conn := openDB(t)

	action, err := NewManager(disabled()).EnsureUpgraded(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, action)

	exists, err := db.TableExists(ctx, conn, db.TableRawContacts)
	require.NoError(t, err)
	assert.False(t, exists, "disabled feature must not create the table")
}

func TestEnsureUpgradedAddsColumn(t *testing.T) {
	ctx := context.Background()
	conn := baseDB(t)

	_, err := conn.Exec(`INSERT INTO accounts (account_name, account_type) VALUES ('SIM1', 'com.android.sim')`)
	require.NoError(t, err)
	for _, name := range []string{"Alice", "Bob"} {
		_, err = conn.Exec(`INSERT INTO raw_contacts (account_id, display_name) VALUES (1, ?)`, name)
		require.NoError(t, err)
	}
	assert.NotContains(t, columns(t, conn, db.TableRawContacts), ColumnLocalPhotoSet)

	action, err := NewManager(enabled()).EnsureUpgraded(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, ActionAddedColumn, action)

	assert.Contains(t, columns(t, conn, db.TableRawContacts), ColumnLocalPhotoSet)
	assert.Contains(t, columns(t, conn, db.ViewRawContacts), ColumnLocalPhotoSet)

	var count, flagged int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*), SUM(local_photo_setted) FROM raw_contacts`).Scan(&count, &flagged))
	assert.Equal(t, 2, count, "existing rows must survive")
	assert.Equal(t, 0, flagged, "existing rows default to false")

	var viewCount int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM view_raw_contacts WHERE local_photo_setted = 0`).Scan(&viewCount))
	assert.Equal(t, 2, viewCount)
}

func TestEnsureUpgradedCreatesMissingTable(t *testing.T) {
	ctx := context.Background()
	conn := baseDB(t)
	_, err := conn.Exec(`DROP TABLE raw_contacts`)
	require.NoError(t, err)

	action, err := NewManager(enabled()).EnsureUpgraded(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, ActionCreatedTable, action)

	//canonical schema is the base column list plus the flag, in order
	scratch := openDB(t)
	_, err = scratch.Exec(`CREATE TABLE raw_contacts (` + db.RawContactsColumns + `)`)
	require.NoError(t, err)
	want := append(columns(t, scratch, db.TableRawContacts), ColumnLocalPhotoSet)
	assert.Equal(t, want, columns(t, conn, db.TableRawContacts))

	exists, err := db.ViewExists(ctx, conn, db.ViewRawContacts)
	require.NoError(t, err)
	assert.True(t, exists)

	//dropping the table took its index with it
	var idx int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name = 'idx_raw_contacts_account'`,
		db.TableRawContacts).Scan(&idx))
	assert.Equal(t, 1, idx)

	_, err = conn.Exec(`INSERT INTO raw_contacts (display_name) VALUES ('Carol')`)
	require.NoError(t, err)
	var flag int
	require.NoError(t, conn.QueryRow(`SELECT local_photo_setted FROM raw_contacts`).Scan(&flag))
	assert.Equal(t, 0, flag)
}

func TestEnsureUpgradedIdempotent(t *testing.T) {
	for _, props := range []settings.Map{enabled(), disabled()} {
		t.Run(props[settings.PropertyRCSEnabled], func(t *testing.T) {
			ctx := context.Background()
			conn := baseDB(t)
			m := NewManager(props)

			_, err := m.EnsureUpgraded(ctx, conn)
			require.NoError(t, err)
			first := schemaState(t, conn)

			action, err := m.EnsureUpgraded(ctx, conn)
			require.NoError(t, err)
			assert.Equal(t, ActionNone, action)
			assert.Equal(t, first, schemaState(t, conn))
		})
	}
}

func TestCreateViewFollowsFeature(t *testing.T) {
	ctx := context.Background()
	conn := baseDB(t)
	props := settings.Map{}
	m := NewManager(props)

	//the column has to exist before the RCS view can reference it
	_, err := conn.Exec(addColumnSQL)
	require.NoError(t, err)

	props[settings.PropertyRCSEnabled] = "false"
	require.NoError(t, m.CreateView(ctx, conn))
	off := columns(t, conn, db.ViewRawContacts)
	assert.NotContains(t, off, ColumnLocalPhotoSet)
	assert.Subset(t, off, Projection(false))

	props[settings.PropertyRCSEnabled] = "true"
	require.NoError(t, m.CreateView(ctx, conn))
	on := columns(t, conn, db.ViewRawContacts)
	assert.Contains(t, on, ColumnLocalPhotoSet)
	assert.Subset(t, on, Projection(true))
	assert.Len(t, on, len(off)+1)

	props[settings.PropertyRCSEnabled] = "false"
	require.NoError(t, m.CreateView(ctx, conn))
	assert.Equal(t, off, columns(t, conn, db.ViewRawContacts), "view is rebuilt from scratch each time")
}

func TestViewAccountColumns(t *testing.T) {
	ctx := context.Background()
	conn := baseDB(t)
	m := NewManager(enabled())

	_, err := m.EnsureUpgraded(ctx, conn)
	require.NoError(t, err)

	_, err = conn.Exec(`INSERT INTO accounts (account_name, account_type, data_set) VALUES
		('SIM1', 'com.android.sim', NULL),
		('me@example.com', 'com.google', 'plus')`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO raw_contacts (account_id, display_name, sync1) VALUES (1, 'Alice', 's1'), (2, 'Bob', NULL)`)
	require.NoError(t, err)

	rows, err := conn.Query(`SELECT display_name, account_name, account_type_and_data_set, raw_contact_is_user_profile
		FROM view_raw_contacts ORDER BY _id`)
	require.NoError(t, err)
	defer rows.Close()

	type row struct {
		name, account, typeAndSet string
		profile                   int
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.name, &r.account, &r.typeAndSet, &r.profile))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, []row{
		{"Alice", "SIM1", "com.android.sim", 0},
		{"Bob", "me@example.com", "com.google/plus", 0},
	}, got)
}

func TestCreateTableFailsWhenPresent(t *testing.T) {
	conn := baseDB(t)

	err := NewManager(enabled()).CreateTable(context.Background(), conn)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "already exists"), err.Error())
}

func TestEnsureUpgradedInspectionErrorIsNotDestructive(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM sqlite_master`)).
		WithArgs("table", db.TableRawContacts).
		WillReturnError(errors.New("disk I/O error"))

	action, err := NewManager(enabled()).EnsureUpgraded(context.Background(), conn)
	require.Error(t, err)
	assert.Equal(t, ActionNone, action)
	assert.Contains(t, err.Error(), "disk I/O error")

	//no CREATE or ALTER was attempted
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureUpgradedColumnInspectionError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM sqlite_master`)).
		WithArgs("table", db.TableRawContacts).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM pragma_table_info(?)`)).
		WithArgs(db.TableRawContacts).
		WillReturnError(errors.New("database is locked"))

	_, err = NewManager(enabled()).EnsureUpgraded(context.Background(), conn)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "none", ActionNone.String())
	assert.Equal(t, "added_column", ActionAddedColumn.String())
	assert.Equal(t, "created_table", ActionCreatedTable.String())
	assert.Equal(t, "Action(9)", Action(9).String())
}
