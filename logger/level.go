// SPDX-License-Identifier: GPL-3.0-or-later

package logger

import (
	"log/slog"
	"os"
	"strings"
)

const envLogLevel = "ZMWATCH_LOG_LEVEL"

const (
	levelNotice  = slog.Level(2)
	levelDisable = slog.Level(99)
)

// Level is shared by every Logger in the process.
var Level = &level{lvl: &slog.LevelVar{}}

type level struct {
	lvl *slog.LevelVar
}

func (l *level) Enabled(level slog.Level) bool { return level >= l.lvl.Level() }

func (l *level) Set(level slog.Level) { l.lvl.Set(level) }

var levelsByName = map[string]slog.Level{
	"err":       slog.LevelError,
	"error":     slog.LevelError,
	"warn":      slog.LevelWarn,
	"warning":   slog.LevelWarn,
	"notice":    levelNotice,
	"info":      slog.LevelInfo,
	"debug":     slog.LevelDebug,
	"emergency": levelDisable,
	"alert":     levelDisable,
	"critical":  levelDisable,
}

// SetByName accepts syslog severity names, case-insensitively.
// Unknown names leave the level unchanged.
func (l *level) SetByName(name string) {
	if v, ok := levelsByName[strings.ToLower(strings.TrimSpace(name))]; ok {
		l.lvl.Set(v)
	}
}

func levelName(lvl slog.Level) string {
	if lvl == levelNotice {
		return "NOTICE"
	}
	return lvl.String()
}

// EnvLevel returns the log level requested through the environment, if any.
func EnvLevel() string {
	return strings.TrimSpace(os.Getenv(envLogLevel))
}
