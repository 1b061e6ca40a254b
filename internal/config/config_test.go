package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VIOLATION_THRESHOLD", "")
	t.Setenv("PASS_MARK_PERCENT", "")

	cfg := Load()

	assert.Equal(t, 3, cfg.Proctor.ViolationThreshold)
	assert.Equal(t, time.Second, cfg.Proctor.TickInterval)
	assert.Equal(t, 85, cfg.Grading.ExpertMinPercent)
	assert.Equal(t, 60, cfg.Grading.IntermediateMinPercent)
	assert.Equal(t, 60, cfg.Grading.PassMarkPercent)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VIOLATION_THRESHOLD", "5")
	t.Setenv("TICK_INTERVAL_MS", "250")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example ,https://b.example,, ")

	cfg := Load()

	assert.Equal(t, 5, cfg.Proctor.ViolationThreshold)
	assert.Equal(t, 250*time.Millisecond, cfg.Proctor.TickInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestGetEnvIntRejectsGarbage(t *testing.T) {
	t.Setenv("VIOLATION_THRESHOLD", "three")
	assert.Equal(t, 3, Load().Proctor.ViolationThreshold)

	t.Setenv("VIOLATION_THRESHOLD", "-1")
	assert.Equal(t, 3, Load().Proctor.ViolationThreshold)
}
