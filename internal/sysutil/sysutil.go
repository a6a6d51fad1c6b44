// Package sysutil holds small process-level helpers shared by main and tests.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

// SetLogLevel configures the global zerolog level based on a string value.
// Supported values (case-insensitive): debug, info, warn, error, fatal, panic.
// Unknown or empty values fall back to info.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// MaskToken redacts a bot token for logs, keeping only the numeric bot ID
// prefix (everything before the first colon) and the last two characters.
// Empty input stays empty.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	prefix := token
	if i := strings.IndexByte(token, ':'); i >= 0 {
		prefix = token[:i]
	}
	suffix := ""
	if len(token) > len(prefix)+3 {
		suffix = token[len(token)-2:]
	}
	return prefix + ":…" + suffix
}

// FirstNonEmpty returns the first string in vals whose trimmed value is
// non-empty, or "" when there is none.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
