package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

//Initialize sets up the logging interface for use by the commands
func Initialize(cfg Options) error {
	//Double check the config is valid
	if err := cfg.Verify(); err != nil {
		return err
	}

	//Switch on the level
	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelInfo:
		logger.SetLevel(logrus.InfoLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == FormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	//Use a file if we need too
	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err != nil {
			return fmt.Errorf("failed to open log file for writing: %w", err)
		}

		logger.SetOutput(f)
	}

	return nil
}

//Get returns the underlying logrus logger object
func Get() *logrus.Logger {
	return logger
}

//With returns an entry scoped to a component name, plus any
//extra fields provided
func With(component string, fields logrus.Fields) *logrus.Entry {
	e := logger.WithField("component", component)
	if len(fields) > 0 {
		e = e.WithFields(fields)
	}
	return e
}
