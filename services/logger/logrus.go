package logsvc

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/trezcool/miradi/core"
)

// NewStdLogger returns the local logrus logger: JSON in QA and PROD, text otherwise.
func NewStdLogger(conf *core.Config, out ...io.Writer) *logrus.Logger {
	std := logrus.New()
	std.SetOutput(os.Stdout)
	if len(out) > 0 {
		std.SetOutput(out[0])
	}

	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if conf.Debug && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	std.SetLevel(level)

	switch conf.Env {
	case "QA", "PROD":
		std.SetFormatter(&logrus.JSONFormatter{})
	default:
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return std
}
