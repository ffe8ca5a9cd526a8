package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesFields(t *testing.T) {
	var buf bytes.Buffer

	log, err := New(Options{Level: "debug", NoColors: true, Output: &buf})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithFields(Fields{"id": 7, "kmh": 18}).Debug("speed event")

	out := buf.String()
	assert.Contains(t, out, "speed event")
	assert.Contains(t, out, "[id:7]")
	assert.Contains(t, out, "[kmh:18]")
}

func TestNewDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer

	log, err := New(Options{NoColors: true, Output: &buf})
	require.NoError(t, err)

	log.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewRotatedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "speedcam.log")

	var buf bytes.Buffer
	log, err := New(Options{File: file, NoColors: true, Output: &buf})
	require.NoError(t, err)

	log.Info("started")

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), "started")
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("nothing")
	assert.NotNil(t, log)
}
