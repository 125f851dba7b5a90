//Package rcs keeps the raw contacts table and view in step with the RCS
//feature property. The property can be flipped outside of the schema
//version lifecycle, so the check runs every time the provider opens its
//database rather than as a versioned migration.
package rcs

import (
	"context"
	"fmt"

	"github.com/chris-pikul/contacts-rcs/db"
	"github.com/chris-pikul/contacts-rcs/log"
	"github.com/chris-pikul/contacts-rcs/metrics"
	"github.com/chris-pikul/contacts-rcs/settings"
	"github.com/sirupsen/logrus"
)

//Action describes what EnsureUpgraded changed
type Action int

const (
	//ActionNone means the schema was already current, or the feature is off
	ActionNone Action = iota
	//ActionAddedColumn means the local photo column was added to an existing table
	ActionAddedColumn
	//ActionCreatedTable means raw_contacts was missing and has been created
	ActionCreatedTable
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionAddedColumn:
		return "added_column"
	case ActionCreatedTable:
		return "created_table"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

//Manager applies the RCS raw contacts schema
type Manager struct {
	settings settings.Reader
	log      *logrus.Entry
}

//NewManager returns a Manager reading the feature property from s
func NewManager(s settings.Reader) *Manager {
	return &Manager{
		settings: s,
		log:      log.With("rcs", nil),
	}
}

//IsFeatureEnabled reads the RCS property, false when unset
func (m *Manager) IsFeatureEnabled(ctx context.Context) bool {
	return settings.Bool(ctx, m.settings, settings.PropertyRCSEnabled, false)
}

//CreateTable creates raw_contacts with the local photo column and its
//indexes. It fails when the table already exists
func (m *Manager) CreateTable(ctx context.Context, h db.Handle) error {
	if h == nil {
		return db.ErrNotOpen
	}
	if _, err := h.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create %s: %w", db.TableRawContacts, err)
	}
	if _, err := h.ExecContext(ctx, db.RawContactsIndexes); err != nil {
		return fmt.Errorf("index %s: %w", db.TableRawContacts, err)
	}
	return nil
}

//CreateView replaces view_raw_contacts. The column set is fixed by the
//feature property at the time of the call
func (m *Manager) CreateView(ctx context.Context, h db.Handle) error {
	if h == nil {
		return db.ErrNotOpen
	}

	body := rawContactsSelect(m.IsFeatureEnabled(ctx))

	if _, err := h.ExecContext(ctx, "DROP VIEW IF EXISTS "+db.ViewRawContacts); err != nil {
		return fmt.Errorf("drop %s: %w", db.ViewRawContacts, err)
	}
	if _, err := h.ExecContext(ctx, "CREATE VIEW "+db.ViewRawContacts+" AS "+body); err != nil {
		return fmt.Errorf("create %s: %w", db.ViewRawContacts, err)
	}
	return nil
}

//EnsureUpgraded brings raw_contacts up to the RCS schema when the feature
//is enabled. The current shape is read from the catalog first:
//
//	table missing  -> create table and view
//	column missing -> add column, recreate view
//	otherwise      -> nothing
//
//A failure to read the catalog is returned as is and never leads to
//recreating the table.
func (m *Manager) EnsureUpgraded(ctx context.Context, h db.Handle) (Action, error) {
	if !m.IsFeatureEnabled(ctx) {
		return ActionNone, nil
	}
	if h == nil {
		return ActionNone, db.ErrNotOpen
	}

	action, err := m.upgrade(ctx, h)
	if err != nil {
		metrics.SchemaActionsTotal.WithLabelValues("error").Inc()
		return action, err
	}

	metrics.SchemaActionsTotal.WithLabelValues(action.String()).Inc()
	if action != ActionNone {
		m.log.WithField("action", action.String()).Info("upgraded raw contacts schema")
	}
	return action, nil
}

func (m *Manager) upgrade(ctx context.Context, h db.Handle) (Action, error) {
	exists, err := db.TableExists(ctx, h, db.TableRawContacts)
	if err != nil {
		return ActionNone, fmt.Errorf("inspect raw contacts schema: %w", err)
	}

	if !exists {
		m.log.Warn("raw contacts table missing, creating it")
		if err := m.CreateTable(ctx, h); err != nil {
			return ActionNone, err
		}
		if err := m.CreateView(ctx, h); err != nil {
			return ActionCreatedTable, err
		}
		return ActionCreatedTable, nil
	}

	has, err := db.HasColumn(ctx, h, db.TableRawContacts, ColumnLocalPhotoSet)
	if err != nil {
		return ActionNone, fmt.Errorf("inspect raw contacts schema: %w", err)
	}
	if has {
		return ActionNone, nil
	}

	if _, err := h.ExecContext(ctx, addColumnSQL); err != nil {
		return ActionNone, fmt.Errorf("add %s column: %w", ColumnLocalPhotoSet, err)
	}
	if err := m.CreateView(ctx, h); err != nil {
		return ActionAddedColumn, err
	}
	return ActionAddedColumn, nil
}
