package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 0.3, cfg.Judge.Threshold)
	assert.Equal(t, 0.95, cfg.TFIDF.MaxDF)
	assert.Equal(t, []int{1, 3, 5, 10}, cfg.Evaluation.KValues)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 30, cfg.Server.CompareRateLimit)
	assert.Empty(t, cfg.Server.CORSOrigins)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
database:
  driver: postgres
  host: db.internal
tfidf:
  minDF: 2
  maxDF: 0.8
redis:
  cacheTTL: 30s
evaluation:
  algorithms: [keyword_matching, tfidf, bm25]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("SE_JUDGE_THRESHOLD", "0.12")
	t.Setenv("SE_REDIS_ADDR", "cache:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Contains(t, cfg.Database.DSN(), "host=db.internal")
	assert.Equal(t, 2, cfg.TFIDF.MinDF)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Len(t, cfg.Evaluation.Algorithms, 3)
	assert.Equal(t, 0.12, cfg.Judge.Threshold)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSQLiteDSNIsPath(t *testing.T) {
	d := DatabaseConfig{Driver: "sqlite", Path: "/tmp/x.db"}
	assert.Equal(t, "/tmp/x.db", d.DSN())
}
