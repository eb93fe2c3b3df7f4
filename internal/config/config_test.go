package config

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REMARKET_ADMINS", " Ana@Example.com, ,bruno@example.com ")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "remarket.sqlite3", cfg.Database.Path)
	assert.Equal(t, []string{"ana@example.com", "bruno@example.com"}, cfg.Admins)
	assert.Equal(t, 3, cfg.Images.MaxImages)
	assert.Equal(t, 1200, cfg.Images.MaxDimension)
	assert.Equal(t, 80, cfg.Images.Quality)
	assert.Equal(t, BlobSQLite, cfg.Blob.Backend)
	assert.Equal(t, time.Hour, cfg.Import.DraftTTL)
	assert.Empty(t, cfg.Redis.Addr)
	require.NoError(t, cfg.Validate())
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("REMARKET_DB", "env.sqlite3")
	t.Setenv("REMARKET_ADMINS", "env@example.com")
	t.Setenv("REMARKET_BASE_URL", "https://env.example.com/")

	cfg, err := Load([]string{"-d", "flag.sqlite3", "-admins", "flag@example.com", "-blob", "NATS"})
	require.NoError(t, err)

	assert.Equal(t, "flag.sqlite3", cfg.Database.Path)
	assert.Equal(t, []string{"flag@example.com"}, cfg.Admins)
	assert.Equal(t, "https://env.example.com", cfg.Server.BaseURL)
	assert.Equal(t, BlobNATS, cfg.Blob.Backend)
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("REMARKET_MAX_IMAGES", "three")
	t.Setenv("REMARKET_IMPORT_TTL", "soon")

	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REMARKET_MAX_IMAGES")
	assert.Contains(t, err.Error(), "REMARKET_IMPORT_TTL")
}

func TestLoadHelp(t *testing.T) {
	_, err := Load([]string{"-h"})
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestLoadExtraArgument(t *testing.T) {
	_, err := Load([]string{"serve"})
	assert.Error(t, err)
}

func valid() *Config {
	return &Config{
		Admins:  []string{"ana@example.com"},
		Contact: "+55 (11) 99999-0000",
		Images:  ImageConfig{MaxImages: 3, MaxDimension: 1200, Quality: 80, Concurrency: 3},
		Blob:    BlobConfig{Backend: BlobSQLite},
		Import:  ImportConfig{DraftTTL: time.Hour},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"empty allow-list": func(c *Config) { c.Admins = nil },
		"malformed email":  func(c *Config) { c.Admins = []string{"not-an-email"} },
		"contact letters":  func(c *Config) { c.Contact = "call me" },
		"zero images":      func(c *Config) { c.Images.MaxImages = 0 },
		"quality":          func(c *Config) { c.Images.Quality = 101 },
		"ttl":              func(c *Config) { c.Import.DraftTTL = 0 },
		"backend":          func(c *Config) { c.Blob.Backend = "s3" },
		"nats without url": func(c *Config) { c.Blob = BlobConfig{Backend: BlobNATS} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestContactDigits(t *testing.T) {
	assert.Equal(t, "5511999990000", ContactDigits("+55 (11) 99999-0000"))
}
