package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/task-manager/internal/config"
)

func TestNew_JSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, config.LogConfig{Level: "info"})
	require.NoError(t, err)

	log.Info("hello", "k", "v")
	log.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "v", line["k"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_PrettyAndDebug(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, config.LogConfig{Level: "DEBUG", Pretty: true})
	require.NoError(t, err)

	log.Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestNew_UnknownLevel(t *testing.T) {
	_, err := NewWithWriter(&bytes.Buffer{}, config.LogConfig{Level: "verbose"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}
