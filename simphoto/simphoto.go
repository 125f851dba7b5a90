//Package simphoto pushes the preferred SIM icon into the photo of the
//contacts stored on that SIM whenever the preference changes.
package simphoto

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/chris-pikul/contacts-rcs/db"
	"github.com/chris-pikul/contacts-rcs/log"
	"github.com/chris-pikul/contacts-rcs/metrics"
	"github.com/chris-pikul/contacts-rcs/settings"
)

//Supported SIM slots
const (
	Sub1 = 0
	Sub2 = 1
)

//AccountNameSIM is the account name of SIM contacts on single SIM devices
const AccountNameSIM = "SIM"

//Event announces that the preferred icon of a SIM changed
type Event struct {
	Subscription int `json:"sim_sub"`
}

//Handler receives events from whatever transport the host uses
type Handler interface {
	HandleEvent(ctx context.Context, ev Event)
}

//HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, ev Event)

//HandleEvent calls f(ctx, ev)
func (f HandlerFunc) HandleEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}

var (
	//ErrUnsupportedSubscription is returned for slots other than Sub1 and Sub2
	ErrUnsupportedSubscription = errors.New("unsupported subscription")

	//ErrNoIcon is returned when no icon is configured for the slot
	ErrNoIcon = errors.New("no sim icon configured")

	//ErrRender is returned when the icon could not be turned into a photo
	ErrRender = errors.New("sim icon could not be rendered")
)

//Skipped reports whether err means the event was ignored rather than failed
func Skipped(err error) bool {
	return errors.Is(err, ErrUnsupportedSubscription) ||
		errors.Is(err, ErrNoIcon) ||
		errors.Is(err, ErrRender)
}

const updatePhotoSQL = `
UPDATE data
   SET data15 = ?
 WHERE mimetype_id = (SELECT _id FROM mimetypes WHERE mimetype = ?)
   AND is_super_primary = 1
   AND raw_contact_id IN (
     SELECT _id FROM raw_contacts WHERE account_id IN (
       SELECT _id FROM accounts WHERE account_name = ?))`

//SimAccountName returns the account holding the contacts of a SIM slot
func SimAccountName(subscription int, multiSim bool) string {
	if multiSim {
		return AccountNameSIM + strconv.Itoa(subscription+1)
	}
	return AccountNameSIM
}

//PhotoSync rewrites SIM contact photos. It implements Handler
type PhotoSync struct {
	conn     *sql.DB
	settings settings.Reader
	icons    IconSet
	multiSim bool
	log      *logrus.Entry
}

//NewPhotoSync returns a PhotoSync writing to conn
func NewPhotoSync(conn *sql.DB, s settings.Reader, icons IconSet, multiSim bool) *PhotoSync {
	return &PhotoSync{
		conn:     conn,
		settings: s,
		icons:    icons,
		multiSim: multiSim,
		log:      log.With("simphoto", nil),
	}
}

//HandleEvent runs Sync and swallows the result. Nothing is retried
func (p *PhotoSync) HandleEvent(ctx context.Context, ev Event) {
	entry := p.log.WithField("sim_sub", ev.Subscription)

	n, err := p.Sync(ctx, ev)
	switch {
	case err == nil:
		metrics.PhotoSyncTotal.WithLabelValues("updated").Inc()
		metrics.PhotoRowsUpdatedTotal.Add(float64(n))
		entry.WithField("rows", n).Info("updated sim contact photos")
	case Skipped(err):
		metrics.PhotoSyncTotal.WithLabelValues("skipped").Inc()
		entry.WithError(err).Debug("ignored sim photo change")
	default:
		metrics.PhotoSyncTotal.WithLabelValues("failed").Inc()
		entry.WithError(err).Warn("sim photo sync failed")
	}
}

//Sync writes the preferred icon of the event's slot into every super
//primary photo row of the SIM account, returning the rows changed
func (p *PhotoSync) Sync(ctx context.Context, ev Event) (int64, error) {
	if ev.Subscription != Sub1 && ev.Subscription != Sub2 {
		return 0, fmt.Errorf("subscription %d: %w", ev.Subscription, ErrUnsupportedSubscription)
	}

	id := IconResourceID(ctx, p.settings, p.icons, ev.Subscription)
	if id == NoResource {
		return 0, fmt.Errorf("subscription %d: %w", ev.Subscription, ErrNoIcon)
	}

	photo, err := p.icons.Render(id)
	if err != nil || len(photo) == 0 {
		return 0, renderError(ev.Subscription, err)
	}

	return p.writePhoto(ctx, photo, SimAccountName(ev.Subscription, p.multiSim))
}

//renderError wraps ErrRender, carrying the cause when there is one
func renderError(subscription int, cause error) error {
	switch {
	case cause == nil:
		return fmt.Errorf("subscription %d: empty photo: %w", subscription, ErrRender)
	case errors.Is(cause, ErrRender):
		return fmt.Errorf("subscription %d: %w", subscription, cause)
	default:
		return fmt.Errorf("subscription %d: %v: %w", subscription, cause, ErrRender)
	}
}

func (p *PhotoSync) writePhoto(ctx context.Context, photo []byte, account string) (int64, error) {
	if p.conn == nil {
		return 0, db.ErrNotOpen
	}

	conn, err := p.conn.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin photo update: %w", err)
	}

	res, err := tx.ExecContext(ctx, updatePhotoSQL, photo, db.MimetypePhoto, account)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("update photos of %s: %w", account, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("update photos of %s: %w", account, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit photo update: %w", err)
	}
	return n, nil
}
