package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/iudanet/gophsync/internal/conflict"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gophsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// Несуществующий файл по умолчанию не ошибка
	t.Setenv("GOPHSYNC_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Client.ServerURL)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval.Std())
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Sync.RetryDelay.Std())
	assert.Equal(t, 100, cfg.Sync.BatchSize)
	assert.Equal(t, []string{"note"}, cfg.Sync.EntityTypes)
	assert.Equal(t, conflict.StrategyLastWriteWins, cfg.Sync.Strategy())
	assert.Equal(t, conflict.TieBreakPreferRemote, cfg.Sync.TieBreak())
	assert.Equal(t, "auto", cfg.Log.Format)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
client:
  server_url: http://sync.example:9000
sync:
  interval: 30s
  max_retries: 5
  retry_delay: 500ms
  conflict_resolution: clientWins
  lww_tie_break: prefer_local
  batch_size: 50
  entity_types: [note, task]
  change_retention: 48h
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://sync.example:9000", cfg.Client.ServerURL)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval.Std())
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.RetryDelay.Std())
	assert.Equal(t, conflict.StrategyClientWins, cfg.Sync.Strategy())
	assert.Equal(t, conflict.TieBreakPreferLocal, cfg.Sync.TieBreak())
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, []string{"note", "task"}, cfg.Sync.EntityTypes)
	assert.Equal(t, 48*time.Hour, cfg.Sync.ChangeRetention.Std())
	assert.Equal(t, "debug", cfg.Log.Level)

	// Не заданные в файле значения остаются по умолчанию
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
sync:
  interval: 30s
  conflict_resolution: merge
`)
	t.Setenv("GOPHSYNC_SYNC_INTERVAL", "10s")
	t.Setenv("GOPHSYNC_CONFLICT_RESOLUTION", "manual")
	t.Setenv("GOPHSYNC_ENTITY_TYPES", "note, task ,")
	t.Setenv("GOPHSYNC_MAX_RETRIES", "7")
	t.Setenv("GOPHSYNC_SERVER_URL", "http://override:1")
	// Некорректные значения игнорируются
	t.Setenv("GOPHSYNC_BATCH_SIZE", "many")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Sync.Interval.Std())
	assert.Equal(t, conflict.StrategyManual, cfg.Sync.Strategy())
	assert.Equal(t, []string{"note", "task"}, cfg.Sync.EntityTypes)
	assert.Equal(t, 7, cfg.Sync.MaxRetries)
	assert.Equal(t, "http://override:1", cfg.Client.ServerURL)
	assert.Equal(t, 100, cfg.Sync.BatchSize)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad duration", content: "sync:\n  interval: soon\n"},
		{name: "not yaml", content: "sync: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "parsing config file")
		})
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "unknown strategy", content: "sync:\n  conflict_resolution: coin_flip\n", wantErr: "sync.conflict_resolution"},
		{name: "unknown tie break", content: "sync:\n  lww_tie_break: random\n", wantErr: "sync.lww_tie_break"},
		{name: "no entity types", content: "sync:\n  entity_types: []\n", wantErr: "sync.entity_types must not be empty"},
		{name: "duplicate entity type", content: "sync:\n  entity_types: [note, note]\n", wantErr: "duplicate"},
		{name: "zero batch", content: "sync:\n  batch_size: 0\n", wantErr: "sync.batch_size"},
		{name: "negative retries", content: "sync:\n  max_retries: -1\n", wantErr: "sync.max_retries"},
		{name: "zero retry delay", content: "sync:\n  retry_delay: 0s\n", wantErr: "sync.retry_delay"},
		{name: "server batch below client", content: "server:\n  max_batch_size: 10\n", wantErr: "server.max_batch_size"},
		{name: "unknown log format", content: "log:\n  format: xml\n", wantErr: "log.format"},
		{name: "unknown field merger", content: "sync:\n  field_mergers:\n    note:\n      qty: sum\n", wantErr: "sync.field_mergers.note.qty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FieldMergers(t *testing.T) {
	path := writeConfig(t, `
sync:
  conflict_resolution: merge
  field_mergers:
    note:
      qty: max
      tags: union
    task:
      done: prefer_remote
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, conflict.StrategyMerge, cfg.Sync.Strategy())
	assert.Equal(t, map[string]map[string]string{
		"note": {"qty": "max", "tags": "union"},
		"task": {"done": "prefer_remote"},
	}, cfg.Sync.FieldMergers)

	// Таблица из конфига целиком ложится в policy
	policy := conflict.NewPolicy(cfg.Sync.TieBreak())
	assert.NoError(t, policy.RegisterFieldMergers(cfg.Sync.FieldMergers))
}

func TestDuration_MarshalYAML(t *testing.T) {
	data, err := yaml.Marshal(struct {
		Interval Duration `yaml:"interval"`
	}{Interval: Duration(90 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, "interval: 1m30s\n", string(data))
}
