package log

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	fileWriter     *lumberjack.Logger
	fileWriterLock sync.Mutex
)

// UseLogDir tees the standard logger into a rotating file under dir.
func UseLogDir(dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	fileWriterLock.Lock()
	defer fileWriterLock.Unlock()
	if fileWriter != nil {
		fileWriter.Close()
	}
	fileWriter = &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    100, // MB
		MaxBackups: 10,
		MaxAge:     30, // days
	}
	SetOutput(io.MultiWriter(os.Stdout, fileWriter))
	return nil
}

func CloseLogWriter() {
	fileWriterLock.Lock()
	defer fileWriterLock.Unlock()
	if fileWriter != nil {
		fileWriter.Close()
		fileWriter = nil
	}
	SetOutput(os.Stdout)
}
