package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	var s Settings
	require.NoError(t, Load(&s))

	assert.Equal(t, DefaultMaxClients, s.APU.MaxClients)
	assert.Equal(t, DefaultMaxQueuedFrames, s.APU.MaxQueuedFrames)
	assert.Equal(t, 500*time.Millisecond, s.APU.IdleSleep)
	assert.Equal(t, "null", s.APU.Driver)
	assert.Equal(t, "apu-go", s.Main.Name)
}

func TestSaveDefault(t *testing.T) {
	var s Settings
	require.NoError(t, Load(&s))

	path := t.TempDir() + "/config.yaml"
	require.NoError(t, SaveDefault(&s, path))
	assert.FileExists(t, path)
}
