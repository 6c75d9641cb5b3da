package log

import (
	"fmt"
)

type LoggerType int

const (
	RouteId LoggerType = iota
	RunId
)

func (l LoggerType) String() string {
	switch l {
	case RouteId:
		return "route"
	case RunId:
		return "run"
	}
	return ""
}

// Logger prefixes every message with the id it was created for,
// e.g. "[route: cam1]".
type Logger struct {
	id         string
	loggerType LoggerType
}

func NewLogger(id string, loggerType LoggerType) *Logger {
	return &Logger{
		id:         id,
		loggerType: loggerType,
	}
}

func (s *Logger) prefix() string {
	return fmt.Sprintf("[%s: %s] ", s.loggerType, s.id)
}

func (s *Logger) Debug(args ...interface{}) {
	Debug(s.prefix(), fmt.Sprint(args...))
}

func (s *Logger) Info(args ...interface{}) {
	Info(s.prefix(), fmt.Sprint(args...))
}

func (s *Logger) Warn(args ...interface{}) {
	Warn(s.prefix(), fmt.Sprint(args...))
}

func (s *Logger) Error(args ...interface{}) {
	Error(s.prefix(), fmt.Sprint(args...))
}

func (s *Logger) Debugf(format string, args ...interface{}) {
	Debug(s.prefix(), fmt.Sprintf(format, args...))
}

func (s *Logger) Infof(format string, args ...interface{}) {
	Info(s.prefix(), fmt.Sprintf(format, args...))
}

func (s *Logger) Warnf(format string, args ...interface{}) {
	Warn(s.prefix(), fmt.Sprintf(format, args...))
}

func (s *Logger) Errorf(format string, args ...interface{}) {
	Error(s.prefix(), fmt.Sprintf(format, args...))
}
