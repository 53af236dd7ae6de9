// Package logutil configures the shared go-logging backend.
//
// Library packages grab their logger with logging.MustGetLogger("peerlink")
// and stay silent below the configured level; the embedding application calls
// Setup once at startup if it wants something other than the defaults.
package logutil

import (
	"os"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("peerlink")

var stderrFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.7s} %{module} ▶ %{message}`,
)

// Setup installs a stderr backend with the given prefix and level.
// PEERLINK_LOG_LEVEL overrides defaultLevel when set.
func Setup(prefix string, defaultLevel logging.Level) *logging.Logger {
	backend := logging.NewLogBackend(os.Stderr, prefix, 0)
	logging.SetFormatter(stderrFormat)

	leveled := logging.AddModuleLevel(backend)
	switch os.Getenv("PEERLINK_LOG_LEVEL") {
	case "CRITICAL":
		leveled.SetLevel(logging.CRITICAL, "")
	case "ERROR":
		leveled.SetLevel(logging.ERROR, "")
	case "WARNING":
		leveled.SetLevel(logging.WARNING, "")
	case "NOTICE":
		leveled.SetLevel(logging.NOTICE, "")
	case "INFO":
		leveled.SetLevel(logging.INFO, "")
	case "DEBUG":
		leveled.SetLevel(logging.DEBUG, "")
	default:
		leveled.SetLevel(defaultLevel, "")
	}

	logging.SetBackend(leveled)
	return log
}
