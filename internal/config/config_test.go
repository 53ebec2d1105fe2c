package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadAppliesDefaults(t *testing.T) {
	os.Clearenv()
	cfg := Load()

	assert.Equal(t, int64(1<<30), cfg.MaxChunkBytes)
	assert.Equal(t, int64(4<<20), cfg.MaxManifestBytes)
	assert.Equal(t, "s3", cfg.StorageDriver)
	assert.False(t, cfg.EnableImmutableTags)
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("STORAGE_DRIVER", "fs")
	os.Setenv("MAX_CHUNK_BYTES", "1024")
	os.Setenv("ENABLE_IMMUTABLE_TAGS", "true")
	defer os.Clearenv()

	cfg := Load()

	assert.Equal(t, "fs", cfg.StorageDriver)
	assert.EqualValues(t, 1024, cfg.MaxChunkBytes)
	assert.True(t, cfg.EnableImmutableTags)
}
