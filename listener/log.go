package listener

import (
	"github.com/sirupsen/logrus"

	"github.com/chris-pikul/contacts-rcs/log"
)

func prepLog(c *Client) *logrus.Entry {
	return log.With("listener", logrus.Fields{
		"remote-addr": c.conn.RemoteAddr().String(),
	})
}

//LogDebugf is a convenience wrapper for logging
//client scoped debug messages
func LogDebugf(c *Client, fmt string, args ...interface{}) {
	prepLog(c).Debugf(fmt, args...)
}

//LogInfo is a convenience wrapper for logging
//client scoped messages
func LogInfo(c *Client, args ...interface{}) {
	prepLog(c).Info(args...)
}

//LogErr is a convenience wrapper for logging errors
//with the client attached
func LogErr(c *Client, msg string, err error) {
	prepLog(c).WithError(err).Error(msg)
}
