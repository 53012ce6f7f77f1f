package logging

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/draftware/stampkit/internal/config"
)

// InitLog routes logrus through a rotating file sink. Both the host-embedded
// check path and a concurrently running launcher may append to the same log
// directory; lumberjack's rotation tolerates that, so neither side needs an
// exclusive lock on the file.
//
// When console is true (non-silent launcher runs) output is mirrored to
// stderr as well.
func InitLog(logLevel string, settings config.LogSettings, console bool) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}

	if settings.File != "" {
		if err := os.MkdirAll(filepath.Dir(settings.File), 0o755); err != nil {
			return err
		}
		lumberjackLogger := &lumberjack.Logger{
			// Log file absolute path, os agnostic
			Filename:   filepath.ToSlash(settings.File),
			MaxSize:    settings.MaxSizeMB,
			MaxBackups: settings.MaxBackups,
			MaxAge:     30, // days
			Compress:   true,
		}
		if console {
			log.SetOutput(io.MultiWriter(lumberjackLogger, os.Stderr))
		} else {
			log.SetOutput(io.Writer(lumberjackLogger))
		}
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(level)
	return nil
}
