package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/dedup"
	"github.com/ledgerline/ledgerline/internal/tagging"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Integrations = append(cfg.Integrations, Integration{
		Name:         "bank",
		Kind:         KindSimpleFIN,
		Settings:     map[string]string{"access_url": "https://u:p@bridge.simplefin.org/simplefin"},
		BalancesOnly: []string{"ACT-9"},
	})
	cfg.TagRules = []tagging.Rule{{Pattern: "coffee", Tags: []string{"coffee"}}}
	cfg.Sync.RejectConcurrent = true

	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, dir, got.Root)
	assert.Equal(t, cfg.Database, got.Database)
	assert.Equal(t, cfg.ImportDir, got.ImportDir)
	assert.Equal(t, cfg.TagRules, got.TagRules)
	assert.True(t, got.Sync.RejectConcurrent)
	require.Len(t, got.Integrations, 3)

	bank, ok := got.Integration("bank")
	require.True(t, ok)
	assert.Equal(t, dedup.NameComposite, bank.Strategy, "filled from kind")
	assert.Equal(t, []string{"ACT-9"}, bank.BalancesOnly)
	assert.Equal(t, filepath.Join(dir, "ledgerline.db"), got.Path(got.Database))
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "ledgerline.db", cfg.Database)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "import", cfg.ImportDir)
	assert.Equal(t, 4, cfg.Sync.Workers)
	assert.False(t, cfg.Sync.RejectConcurrent)
	require.NoError(t, cfg.Validate())

	csv, ok := cfg.Integration(KindCSV)
	require.True(t, ok)
	assert.Equal(t, dedup.NameFingerprint, csv.Strategy)
	_, ok = cfg.Integration("nope")
	assert.False(t, ok)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "database: ledgerline.db")
	assert.Contains(t, contents, "kind: csv")
	assert.Contains(t, contents, "strategy: fingerprint")
	assert.Contains(t, contents, "reject_concurrent: false")
	assert.NotContains(t, contents, "root")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		in   []Integration
		want string
	}{
		{"no name", []Integration{{Kind: KindCSV}}, "name is required"},
		{"duplicate", []Integration{{Name: "a", Kind: KindCSV}, {Name: "a", Kind: KindDemo}}, "duplicate"},
		{"bad kind", []Integration{{Name: "a", Kind: "ofx"}}, "unknown kind"},
		{"bad strategy", []Integration{{Name: "a", Kind: KindCSV, Strategy: "hash"}}, "unknown strategy"},
		{"csv external ids", []Integration{{Name: "a", Kind: KindCSV, Strategy: dedup.NameExternalID}}, "no stable ids"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Integrations: tt.in}
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Integrations = append(cfg.Integrations, Integration{Name: "my-bank", Kind: KindSimpleFIN})
	path := filepath.Join(dir, FileName)
	require.NoError(t, Save(path, cfg))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("LEDGERLINE_MY_BANK_ACCESS_URL=https://u:p@bridge.simplefin.org/simplefin\n"), 0o600))
	t.Setenv(EnvDatabase, "/tmp/other.db")
	t.Setenv(EnvLogLevel, "debug")
	// godotenv does not override variables that are already set; register
	// the key so t.Setenv restores it after the test.
	t.Setenv("LEDGERLINE_MY_BANK_ACCESS_URL", "")
	require.NoError(t, os.Unsetenv("LEDGERLINE_MY_BANK_ACCESS_URL"))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", got.Database)
	assert.Equal(t, "/tmp/other.db", got.Path(got.Database))
	assert.Equal(t, "debug", got.LogLevel)

	bank, ok := got.Integration("my-bank")
	require.True(t, ok)
	assert.Equal(t, "https://u:p@bridge.simplefin.org/simplefin", bank.Settings["access_url"])

	raw, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "ledgerline.db", raw.Database)
	bank, _ = raw.Integration("my-bank")
	assert.Empty(t, bank.Settings["access_url"])
}

func TestAccessURLEnv(t *testing.T) {
	assert.Equal(t, "LEDGERLINE_SIMPLEFIN_ACCESS_URL", AccessURLEnv("simplefin"))
	assert.Equal(t, "LEDGERLINE_MY_BANK_2_ACCESS_URL", AccessURLEnv("my-bank.2"))
}
