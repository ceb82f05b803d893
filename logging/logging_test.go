package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStderr(t *testing.T) {
	log, err := New("debug", "")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New("chatty", "")
	require.Error(t, err)
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sealvault.log")
	log, err := New("info", path)
	require.NoError(t, err)

	log.WithField("blob_id", "bafkreiabc").Info("stored")
	log.Debug("hidden")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"blob_id":"bafkreiabc"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))
	l := logrus.New()
	assert.Same(t, l, OrDiscard(l))
}
