package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 48*time.Hour, cfg.Verification.UrgentAfter)
	assert.Equal(t, ResubmitNewRecord, cfg.Verification.ResubmissionPolicy)
	assert.Equal(t, "profiles", cfg.Search.ProfileIndex)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9090},
		"verification": {"resubmission_policy": "in_place", "urgent_after": 3600000000000, "fee_cents": 1000, "currency": "EUR"}
	}`), 0o600))

	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("VERIFICATION_URGENT_AFTER", "72h")
	t.Setenv("EMAIL_ADMIN_RECIPIENTS", "ops@example.com, review@example.com")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, ResubmitInPlace, cfg.Verification.ResubmissionPolicy)
	assert.Equal(t, 72*time.Hour, cfg.Verification.UrgentAfter)
	assert.Equal(t, int64(1000), cfg.Verification.FeeCents)
	assert.Equal(t, []string{"ops@example.com", "review@example.com"}, cfg.Email.AdminEmails)
}

func TestLoadConfigRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("VERIFICATION_RESUBMISSION_POLICY", "whenever")

	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("VERIFICATION_URGENT_AFTER", "two days")

	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestDatabaseURL(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5432, DBName: "portal", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/portal?sslmode=disable", c.GetDatabaseURL())
}
