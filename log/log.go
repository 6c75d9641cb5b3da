package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
)

type Fields = logrus.Fields

var std = logrus.New()

func init() {
	std.SetOutput(os.Stdout)
	std.SetFormatter(defaultFormatter())
}

func defaultFormatter() logrus.Formatter {
	return &easy.Formatter{
		TimestampFormat: "06-01-02 15:04:05",
		LogFormat:       "%time% [%lvl%] %msg%\n",
	}
}

// StandardLogger exposes the underlying logrus logger, e.g. for gin middleware.
func StandardLogger() *logrus.Logger {
	return std
}

func SetOutput(out io.Writer) {
	std.SetOutput(out)
}

func SetLogFormatter(formatter logrus.Formatter) {
	std.SetFormatter(formatter)
}

// SetLevel accepts logrus level names ("debug", "info", "warn", ...).
func SetLevel(level string) error {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	std.SetLevel(l)
	return nil
}

func GetLevel() string {
	return std.GetLevel().String()
}

func WithFields(fields Fields) *logrus.Entry {
	return std.WithFields(fields)
}

func InfoWithFields(msg string, fields Fields) {
	std.WithFields(fields).Info(msg)
}

func Debug(args ...interface{}) {
	std.Debug(args...)
}

func Info(args ...interface{}) {
	std.Info(args...)
}

func Warn(args ...interface{}) {
	std.Warn(args...)
}

func Error(args ...interface{}) {
	std.Error(args...)
}

func Fatal(args ...interface{}) {
	std.Fatal(args...)
}

func Panic(args ...interface{}) {
	std.Panic(args...)
}

func Debugf(format string, args ...interface{}) {
	std.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	std.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	std.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	std.Errorf(format, args...)
}
