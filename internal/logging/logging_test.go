package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideaflow/internal/logging"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.NewWithOutput(&buf, "debug", "json")
	require.NoError(t, err)
	log.WithField("idea_id", "i-1").Info("idea created")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "idea created", entry["msg"])
	assert.Equal(t, "i-1", entry["idea_id"])
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestDefaultsToInfo(t *testing.T) {
	log, err := logging.NewWithOutput(&bytes.Buffer{}, "", "")
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestRejectsUnknownValues(t *testing.T) {
	_, err := logging.NewWithOutput(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)
	_, err = logging.NewWithOutput(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
