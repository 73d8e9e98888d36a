package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("production", &buf)

	logger.Info("server started", "port", 8080)
	logger.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "server started", entry["msg"])
	assert.Equal(t, "resthub", entry["service"])
	assert.EqualValues(t, 8080, entry["port"])
}

func TestNewLogger_DevelopmentWritesTextAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("development", &buf)

	logger.Debug("token cleanup", "deleted", 3)

	assert.Contains(t, buf.String(), "msg=\"token cleanup\"")
	assert.Contains(t, buf.String(), "deleted=3")
}

func TestRedactURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"/v1/users/me", "/v1/users/me"},
		{"/sockets?access_token=abc.def.ghi", "/sockets?access_token=REDACTED"},
		{"/sockets?v=2&access_token=abc&x=1", "/sockets?v=2&access_token=REDACTED&x=1"},
		{"/sockets?access%5Ftoken=abc", "/sockets?access_token=REDACTED"},
		{"/v1/notifications?title=/^a/&page=2", "/v1/notifications?title=/^a/&page=2"},
		{"/sockets?access_token", "/sockets?access_token=REDACTED"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactURI(tt.uri, "access_token"), tt.uri)
	}
}
