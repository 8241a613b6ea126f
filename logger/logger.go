package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log  *logrus.Logger
	once sync.Once
)

// Init initializes the shared logger only once. The level comes from LOG_LEVEL.
func Init() {
	once.Do(func() {
		log = New(os.Stdout, os.Getenv("LOG_LEVEL"))
	})
}

// New builds a JSON logger writing to out at the given level (info when unparsable)
func New(out io.Writer, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// GetLogger returns the singleton logger
func GetLogger() *logrus.Logger {
	Init()
	return log
}

// SetLevel changes the level of the shared logger
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	GetLogger().SetLevel(lvl)
}

// Discard returns a logger that drops everything, for tests and quiet tooling
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
