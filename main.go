package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chris-pikul/contacts-rcs/config"
	"github.com/chris-pikul/contacts-rcs/db"
	"github.com/chris-pikul/contacts-rcs/listener"
	"github.com/chris-pikul/contacts-rcs/log"
	"github.com/chris-pikul/contacts-rcs/rcs"
	"github.com/chris-pikul/contacts-rcs/settings"
	"github.com/chris-pikul/contacts-rcs/simphoto"

	"github.com/urfave/cli"
)

const (
	//Version holds the CLI application version
	Version = "0.1.0"
)

const usageText = `contacts-rcs [global options...] [command]

   Default command is "serve".
   If the config option is provided, the JSON file is loaded first and
   any flags given explicitly on the command line override it.
`

var cfg config.Options

//stores holds the database handles shared by the commands
type stores struct {
	contacts *sql.DB
	settings *settings.Store
}

func (s stores) Close() {
	if s.contacts != nil {
		s.contacts.Close()
	}
	if s.settings != nil {
		s.settings.Close()
	}
}

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

//newApp builds the CLI application with its commands and flags
func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "Contacts RCS"
	app.Usage = "RCS raw contacts schema and SIM photo sync for the contacts database"
	app.UsageText = usageText
	app.HelpName = "contacts-rcs"
	app.Version = Version

	commonFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "configuration JSON `FILE` to load before applying flags (empty = no config)",
		},
		cli.StringFlag{
			Name:  "db, d",
			Usage: "path to the contacts SQLite database `FILE`",
			Value: config.DefaultOptions.Database.ContactsFile,
		},
		cli.StringFlag{
			Name:  "settings-db",
			Usage: "path to the settings SQLite database `FILE`",
			Value: config.DefaultOptions.Database.SettingsFile,
		},
		cli.StringFlag{
			Name:  "log, l",
			Usage: "`FILE` to write logs to (empty writes to stderr)",
			Value: config.DefaultOptions.Logging.Path,
		},
		cli.StringFlag{
			Name:  "log-level, L",
			Usage: "logging `LEVEL` to use options are [DEBUG|INFO|WARN|ERROR]",
			Value: config.DefaultOptions.Logging.Level,
		},
		cli.StringFlag{
			Name:  "log-format",
			Usage: "log line `FORMAT` options are [TEXT|JSON]",
			Value: config.DefaultOptions.Logging.Format,
		},
	}

	photoFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "icons, i",
			Usage: "`DIR` holding the SIM icon PNGs, ordered by name",
			Value: config.DefaultOptions.Icons.Dir,
		},
		cli.BoolFlag{
			Name:  "multi-sim, m",
			Usage: "name SIM accounts SIM1/SIM2 instead of SIM",
		},
	}

	serveFlags := append(append([]cli.Flag{}, commonFlags...), photoFlags...)
	serveFlags = append(serveFlags,
		cli.StringFlag{
			Name:  "host",
			Usage: "`HOST` address or IP for the listening interface",
			Value: config.DefaultOptions.Listener.Host,
		},
		cli.UintFlag{
			Name:  "port, p",
			Usage: "`PORT` number to listen on",
			Value: config.DefaultOptions.Listener.Port,
		},
		cli.StringFlag{
			Name:  "metrics-path",
			Usage: "HTTP `PATH` for prometheus metrics (empty disables)",
			Value: config.DefaultOptions.Listener.MetricsPath,
		},
	)

	syncFlags := append(append([]cli.Flag{}, commonFlags...), photoFlags...)
	syncFlags = append(syncFlags, cli.IntFlag{
		Name:  "sub, s",
		Usage: "SIM `SLOT` whose preferred icon changed (0 or 1)",
	})

	app.Flags = serveFlags

	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "upgrade the schema then listen for SIM photo change events (default command)",
			Action: runServe,
			Flags:  serveFlags,
		},
		{
			Name:   "upgrade",
			Usage:  "bring raw_contacts in line with the RCS property and exit",
			Action: runUpgrade,
			Flags:  commonFlags,
		},
		{
			Name:   "sync-photo",
			Usage:  "apply a SIM photo change for one slot and exit",
			Action: runSyncPhoto,
			Flags:  syncFlags,
		},
		{
			Name:   "projection",
			Usage:  "print the raw contacts columns exposed under the current RCS property",
			Action: runProjection,
			Flags:  commonFlags,
		},
		{
			Name:      "set",
			Usage:     "write a setting or property, e.g. set persist.sys.rcs.enabled true",
			ArgsUsage: "KEY VALUE",
			Action:    runSet,
			Flags:     commonFlags,
		},
	}

	app.Action = runServe

	return app
}

//common initialization procedures
func initialize(c *cli.Context) error {
	var err error

	//Load the configuration (from file if needed)
	cfgFile := c.String("config")
	cfg, err = config.NewOptions(nil, cfgFile, c)
	if err != nil {
		return fmt.Errorf("failed to parse configuration options: %w", err)
	}

	//Startup logging as soon as possible
	if err := log.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("failed to start logging: %w", err)
	}
	log.Debug("initialized logging")

	return nil
}

//openStores opens the settings and contacts databases
func openStores(ctx context.Context) (stores, error) {
	var s stores
	var err error

	s.settings, err = settings.Open(cfg.Database.SettingsFile)
	if err != nil {
		return s, fmt.Errorf("open settings: %w", err)
	}

	s.contacts, err = db.Initialize(ctx, cfg.Database.ContactsFile)
	if err != nil {
		s.Close()
		return s, fmt.Errorf("open contacts database: %w", err)
	}

	return s, nil
}

//upgradeSchema runs the RCS schema check, the same way the provider does
//every time it opens
func upgradeSchema(ctx context.Context, s stores) error {
	action, err := rcs.NewManager(s.settings).EnsureUpgraded(ctx, s.contacts)
	if err != nil {
		return fmt.Errorf("raw contacts upgrade: %w", err)
	}
	log.Debugf("raw contacts upgrade check: %s", action)
	return nil
}

//upgradeOrContinue runs the schema check for commands that keep working
//on the old schema when it fails
func upgradeOrContinue(ctx context.Context, s stores) {
	if err := upgradeSchema(ctx, s); err != nil {
		log.Err("raw contacts upgrade check failed", err)
	}
}

func newPhotoSync(s stores) (*simphoto.PhotoSync, error) {
	icons, err := simphoto.LoadIconSet(cfg.Icons.Dir, cfg.Icons.Files)
	if err != nil {
		return nil, err
	}
	log.Debugf("loaded %d sim icons", icons.Len())

	return simphoto.NewPhotoSync(s.contacts, s.settings, icons, cfg.Telephony.MultiSim), nil
}

//holds the main thread until an interrupt from the OS
func blockUntilSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Info("closing due to interrupt")
}

func runServe(c *cli.Context) error {
	if err := initialize(c); err != nil {
		return err
	}

	s, err := openStores(context.Background())
	if err != nil {
		return err
	}
	defer s.Close()
	upgradeOrContinue(context.Background(), s)

	photos, err := newPhotoSync(s)
	if err != nil {
		return err
	}

	srv := listener.NewServer(cfg.Listener, photos)
	srv.Start()

	blockUntilSignal()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	return srv.Shutdown(ctx)
}

func runUpgrade(c *cli.Context) error {
	if err := initialize(c); err != nil {
		return err
	}

	ctx := context.Background()

	s, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	m := rcs.NewManager(s.settings)
	log.Infof("rcs enabled: %t", m.IsFeatureEnabled(ctx))
	return upgradeSchema(ctx, s)
}

func runProjection(c *cli.Context) error {
	if err := initialize(c); err != nil {
		return err
	}

	store, err := settings.Open(cfg.Database.SettingsFile)
	if err != nil {
		return err
	}
	defer store.Close()

	enabled := rcs.NewManager(store).IsFeatureEnabled(context.Background())
	for _, col := range rcs.Projection(enabled) {
		fmt.Fprintln(c.App.Writer, col)
	}
	return nil
}

func runSyncPhoto(c *cli.Context) error {
	if err := initialize(c); err != nil {
		return err
	}

	if !c.IsSet("sub") {
		return errors.New("--sub is required")
	}

	ctx := context.Background()

	s, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	upgradeOrContinue(ctx, s)

	photos, err := newPhotoSync(s)
	if err != nil {
		return err
	}

	n, err := photos.Sync(ctx, simphoto.Event{Subscription: c.Int("sub")})
	switch {
	case err == nil:
		log.Infof("updated %d photo rows", n)
	case simphoto.Skipped(err):
		log.Infof("nothing to do: %s", err)
	default:
		return err
	}
	return nil
}

func runSet(c *cli.Context) error {
	if err := initialize(c); err != nil {
		return err
	}

	if c.NArg() != 2 {
		return errors.New("set expects KEY VALUE")
	}

	store, err := settings.Open(cfg.Database.SettingsFile)
	if err != nil {
		return err
	}
	defer store.Close()

	key, value := c.Args().Get(0), c.Args().Get(1)
	if err := store.Set(context.Background(), key, value); err != nil {
		return err
	}

	log.Infof("set %s=%s", key, value)
	return nil
}
