package testutil

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// NewLogger returns a discarding logger at debug level and the hook that
// captures its entries.
func NewLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

// Entries returns the captured entries at level.
func Entries(hook *test.Hook, level logrus.Level) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Warnings returns the messages of captured warnings.
func Warnings(hook *test.Hook) []string {
	var out []string
	for _, e := range Entries(hook, logrus.WarnLevel) {
		out = append(out, e.Message)
	}
	return out
}

// ContainsMessage reports whether any captured entry at level contains substr.
func ContainsMessage(hook *test.Hook, level logrus.Level, substr string) bool {
	for _, e := range Entries(hook, level) {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
