package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"catdomains/internal/allowlist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "catdomains.db", cfg.DatabasePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, int64(512000), cfg.MaxUploadBytes)
	assert.Equal(t, "default", cfg.DefaultEntity)
	assert.Empty(t, cfg.Allowlist())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CATDOMAINS_DB_PATH", "/tmp/test.db")
	t.Setenv("CATDOMAINS_ALLOW_EMAIL_ADDRESSES", ".archi.fr ira-nantes.fr")
	t.Setenv("CATDOMAINS_MAX_UPLOAD_BYTES", "1024")

	cfg, err := load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.DatabasePath)
	assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
	assert.Equal(t, allowlist.Allowlist{".archi.fr", "ira-nantes.fr"}, cfg.Allowlist())
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "ALLOW_EMAIL_ADDRESSES=test.com .subdomain.com\nADMIN_TOKEN=secret\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.AdminToken)
	assert.Equal(t, allowlist.Allowlist{"test.com", ".subdomain.com"}, cfg.Allowlist())
}

func TestAllowlistReadAtCallTime(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Allowlist())

	t.Setenv("CATDOMAINS_ALLOW_EMAIL_ADDRESSES", "example.com")
	assert.Equal(t, allowlist.Allowlist{"example.com"}, cfg.Allowlist())
}

func TestAllowlistWithoutViper(t *testing.T) {
	cfg := &Config{AllowedEmails: "a.com .b.com"}
	assert.Equal(t, allowlist.Allowlist{"a.com", ".b.com"}, cfg.Allowlist())
}

func TestAllowlistFollowsEnvFileChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ALLOW_EMAIL_ADDRESSES=first.com\n"), 0o600))

	cfg, err := load(path)
	require.NoError(t, err)
	assert.Equal(t, allowlist.Allowlist{"first.com"}, cfg.Allowlist())

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_ = cfg.Allowlist()
			}
		}
	}()

	for i := 0; i < 20; i++ {
		content := fmt.Sprintf("ALLOW_EMAIL_ADDRESSES=d%d.com\n", i)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		l := cfg.Allowlist()
		return len(l) == 1 && l[0] == "d19.com"
	}, 3*time.Second, 20*time.Millisecond)

	close(done)
	wg.Wait()
}
