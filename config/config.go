package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/chris-pikul/contacts-rcs/log"
	"github.com/urfave/cli"
)

//DatabaseOptions holds the paths to the SQLite files used
//by the provider
type DatabaseOptions struct {
	//ContactsFile path to the contacts database holding
	//raw_contacts, accounts, and data
	ContactsFile string `json:"contactsFile"`

	//SettingsFile path to the key/value store standing in
	//for system properties and settings
	SettingsFile string `json:"settingsFile"`
}

//ListenerOptions holds the settings for the event listener
type ListenerOptions struct {
	//Host portion for the server to listen on.
	//Leaving this empty is fine as it will just use the default interface.
	Host string `json:"host"`

	//Port number for the server to listen on
	Port uint `json:"port"`

	//MetricsPath is where the prometheus metrics are exposed.
	//Empty disables the endpoint
	MetricsPath string `json:"metricsPath"`
}

//IconOptions describes the SIM icon resources. The position of
//a file in the list is its resource id
type IconOptions struct {
	//Dir is joined to every relative entry in Files. When Files
	//is empty, every PNG in Dir is used in name order
	Dir string `json:"dir"`

	//Files is the ordered list of icon images
	Files []string `json:"files"`
}

//TelephonyOptions holds device settings the photo sync depends on
type TelephonyOptions struct {
	//MultiSim reports whether more than one SIM slot is active,
	//which changes the SIM account names
	MultiSim bool `json:"multiSim"`
}

//Options is a JSON serializable object holding the configuration
//settings for running the contacts provider extension.
//
//These options can be loaded from file, or filled in from command line.
//The intended hierarchy is CLI options > File > Defaults
type Options struct {
	//Database holds the storage file locations
	Database DatabaseOptions `json:"database"`

	//Listener holds the event listener options
	Listener ListenerOptions `json:"listener"`

	//Icons holds the SIM icon resources
	Icons IconOptions `json:"icons"`

	//Telephony holds the SIM slot settings
	Telephony TelephonyOptions `json:"telephony"`

	//Logging holds the options settings for logging operations
	Logging log.Options `json:"logging"`
}

//DefaultOptions contains the preset default options
var DefaultOptions = Options{
	Database: DatabaseOptions{
		ContactsFile: "./contacts2.db",
		SettingsFile: "./settings.db",
	},

	Listener: ListenerOptions{
		Host:        "",
		Port:        4100,
		MetricsPath: "/metrics",
	},

	Icons: IconOptions{
		Dir: "./icons",
	},

	Logging: log.DefaultOptions,
}

var (
	//ErrOptionsContactsFile validation error for an empty contacts database path
	ErrOptionsContactsFile = errors.New("contacts database file is required")

	//ErrOptionsSettingsFile validation error for an empty settings database path
	ErrOptionsSettingsFile = errors.New("settings database file is required")

	//ErrOptionsPort validation error for a listener port outside the TCP range
	ErrOptionsPort = errors.New("listener port must be between 1 and 65535")
)

//Equals returns true if the supplied options matches these ones (this).
//Performs this as a deep-equals operation
func (o Options) Equals(opts Options) bool {
	if len(o.Icons.Files) != len(opts.Icons.Files) {
		return false
	}
	for i := range o.Icons.Files {
		if o.Icons.Files[i] != opts.Icons.Files[i] {
			return false
		}
	}

	return o.Database == opts.Database &&
		o.Listener == opts.Listener &&
		o.Icons.Dir == opts.Icons.Dir &&
		o.Telephony == opts.Telephony &&
		o.Logging.Equals(opts.Logging)
}

//Verify checks the Options fields for validity.
//Returns an error if a problem is incountered
func (o Options) Verify() error {
	if o.Database.ContactsFile == "" {
		return ErrOptionsContactsFile
	}

	if o.Database.SettingsFile == "" {
		return ErrOptionsSettingsFile
	}

	if o.Listener.Port == 0 || o.Listener.Port > 65535 {
		return ErrOptionsPort
	}

	return o.Logging.Verify()
}

//MergeFrom combines the fields from the supplied Options parameter
//into this object (smartly where applicable) and run Verify on itself,
//returning the validation error if any happened.
func (o *Options) MergeFrom(opt Options) error {
	if opt.Database.ContactsFile != "" {
		o.Database.ContactsFile = opt.Database.ContactsFile
	}
	if opt.Database.SettingsFile != "" {
		o.Database.SettingsFile = opt.Database.SettingsFile
	}

	o.Listener.Host = opt.Listener.Host
	if opt.Listener.Port != 0 {
		o.Listener.Port = opt.Listener.Port
	}
	o.Listener.MetricsPath = opt.Listener.MetricsPath

	if opt.Icons.Dir != "" {
		o.Icons.Dir = opt.Icons.Dir
	}
	if len(opt.Icons.Files) > 0 {
		o.Icons.Files = append([]string(nil), opt.Icons.Files...)
	}

	o.Telephony = opt.Telephony

	err := o.Logging.MergeFrom(opt.Logging)
	if err != nil {
		return err
	}
	return o.Verify()
}

//ReadOptionsFromFile opens the provided JSON file and marshals the data
//into a Options object.
//Returns the results, and the first error encountered.
//The error is either validation error, or JSON encoding error.
func ReadOptionsFromFile(filename string) (Options, error) {
	res := DefaultOptions

	file, err := os.ReadFile(filename)
	if err != nil {
		return res, err
	}

	err = json.Unmarshal(file, &res)
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", filename, err)
	}

	return res, res.Verify()
}

//NewOptions compiles the Options object from the provided sources.
//Will use a custom defaults, or if nil the DefaultOptions object is used.
//Then will search the fileName json file (if provided) for options.
//Then will combine the CLI options provided from main().
//These options cascade in order where applicable for the option.
//Will run the Options.Verify() method and return the error after compilation
func NewOptions(defaults *Options, filename string, ctx *cli.Context) (Options, error) {
	res := DefaultOptions
	if defaults != nil {
		res = *defaults
	}

	if len(filename) > 0 {
		file, err := ReadOptionsFromFile(filename)
		if err != nil {
			return res, err
		}
		err = res.MergeFrom(file)
		if err != nil {
			return res, err
		}
	}

	if ctx != nil {
		applyCLIOptions(ctx, &res)
	}

	return res, res.Verify()
}

//applyCLIOptions writes the options presented in the CLI arguments to
//the provided Options object. Only flags explicitly set on the
//command line override what is already there
func applyCLIOptions(c *cli.Context, opts *Options) {
	if c == nil || opts == nil { //Safe-gaurd
		return
	}

	if c.IsSet("db") {
		opts.Database.ContactsFile = c.String("db")
	}
	if c.IsSet("settings-db") {
		opts.Database.SettingsFile = c.String("settings-db")
	}

	if c.IsSet("host") {
		opts.Listener.Host = c.String("host")
	}
	if c.IsSet("port") {
		opts.Listener.Port = c.Uint("port")
	}
	if c.IsSet("metrics-path") {
		opts.Listener.MetricsPath = c.String("metrics-path")
	}

	if c.IsSet("icons") {
		opts.Icons.Dir = c.String("icons")
		opts.Icons.Files = nil
	}
	if c.IsSet("multi-sim") {
		opts.Telephony.MultiSim = c.Bool("multi-sim")
	}

	if c.IsSet("log") {
		opts.Logging.Path = c.String("log")
	}
	if str := c.String("log-level"); c.IsSet("log-level") && str != "" {
		opts.Logging.Level = str
	}
	if str := c.String("log-format"); c.IsSet("log-format") && str != "" {
		opts.Logging.Format = str
	}
}
