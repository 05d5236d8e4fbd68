package logging

import (
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupBaseLogger applies the default formatter and level used before any
// configuration file has been read.
func SetupBaseLogger() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetLevel(log.InfoLevel)
}

// SetLogLevel maps a configuration level string onto a logrus level.
// Unknown strings keep the info level.
func SetLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug", "verbose":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn", "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "quiet", "silent":
		log.SetLevel(log.FatalLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// ConfigureLogOutput routes logs to a rotating file under dir when toFile is
// set; otherwise output stays on stderr.
func ConfigureLogOutput(toFile bool, dir string) error {
	if !toFile {
		return nil
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   filepath.Join(dir, "gembridge.log"),
		MaxSize:    64, // MB per file
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	return nil
}
