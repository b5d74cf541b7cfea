package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestInit(t *testing.T) {
	Init("production", "warn")
	assert.Equal(t, logrus.WarnLevel, Log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, Log.Formatter)

	Init("development", "nonsense")
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, Log.Formatter)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Init("production", "info")
	Log.SetOutput(&buf)

	Component("sweeper").Info("готово")

	assert.Contains(t, buf.String(), `"component":"sweeper"`)
}
