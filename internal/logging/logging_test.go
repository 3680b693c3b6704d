package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/todo-widget/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zerolog.Level
	}{
		{env: config.EnvDev, want: zerolog.DebugLevel},
		{env: config.EnvProd, want: zerolog.InfoLevel},
		{env: config.EnvLocal, want: zerolog.TraceLevel},
		{env: config.EnvProd, level: "warn", want: zerolog.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			logger, err := newWithOutput(&bytes.Buffer{}, tt.env, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestNewRejectsUnknownInput(t *testing.T) {
	_, err := New("staging", "")
	assert.Error(t, err)

	_, err = New(config.EnvProd, "loud")
	assert.Error(t, err)
}

func TestProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newWithOutput(&buf, config.EnvProd, "")
	require.NoError(t, err)

	logger.Info().Uint("user_id", 7).Msg("created todo")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "created todo", entry["message"])
	assert.EqualValues(t, 7, entry["user_id"])
	assert.Contains(t, entry, "timestamp")
}
