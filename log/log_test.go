package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	easy "github.com/t-tomalak/logrus-easy-formatter"
)

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	d := "Hello"
	Info("Info: ", d)
	Error("Error: ", errors.New("test error"))
	assert.Contains(t, buf.String(), "[INFO] Info: Hello")
	assert.Contains(t, buf.String(), "[ERROR] Error: test error")

	buf.Reset()
	defer SetLogFormatter(defaultFormatter())
	SetLogFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05",
		LogFormat:       "[%lvl%][%route%]: %msg%\n",
	})
	InfoWithFields("relay started", Fields{"route": "cam1"})
	assert.Equal(t, "[INFO][cam1]: relay started\n", buf.String())
}

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	require.NoError(t, SetLevel("warn"))
	assert.Equal(t, "warning", GetLevel())
	Info("hidden")
	assert.Empty(t, buf.String())

	assert.Error(t, SetLevel("loud"))
}

func TestUseLogDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, UseLogDir(dir, "rtsp4k.log"))
	Info("to file")
	CloseLogWriter()

	b, err := os.ReadFile(filepath.Join(dir, "rtsp4k.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "to file")
}
