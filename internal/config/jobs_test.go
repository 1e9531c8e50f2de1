package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultJobsConfigEnablesEveryJob(t *testing.T) {
	cfg := DefaultJobsConfig()

	for name, toggle := range map[string]JobToggle{
		"cycleCreation":      cfg.CycleCreation,
		"autoCancellation":   cfg.AutoCancellation,
		"subscriptionExpiry": cfg.SubscriptionExpiry,
	} {
		assert.True(t, toggle.Enabled, name)
		assert.Equal(t, 100, toggle.BatchSize, name)
	}
}

func TestWithDefaultsFillsMissingBatchSizes(t *testing.T) {
	cfg := JobsConfig{
		CycleCreation:    JobToggle{Enabled: true, BatchSize: 25},
		AutoCancellation: JobToggle{Enabled: false, BatchSize: -3},
	}.withDefaults()

	assert.Equal(t, 25, cfg.CycleCreation.BatchSize)
	assert.Equal(t, 100, cfg.AutoCancellation.BatchSize)
	assert.False(t, cfg.AutoCancellation.Enabled)
	assert.Equal(t, 100, cfg.SubscriptionExpiry.BatchSize)
}

func TestValidateJobsConfigRejectsNegativeBatch(t *testing.T) {
	bad := JobsConfig{CycleCreation: JobToggle{Enabled: true, BatchSize: -1}}
	require.Error(t, validateJobsConfig(bad))
	require.NoError(t, validateJobsConfig(DefaultJobsConfig()))
}

func TestStaticHolderAppliesDefaults(t *testing.T) {
	holder := NewStaticJobsConfigHolder(JobsConfig{
		CycleCreation: JobToggle{Enabled: false},
	})

	got := holder.Get()
	assert.False(t, got.CycleCreation.Enabled)
	assert.Equal(t, 100, got.CycleCreation.BatchSize)
	assert.False(t, got.AutoCancellation.Enabled)
}

func TestStoreReplacesWholeSnapshot(t *testing.T) {
	holder := NewStaticJobsConfigHolder(DefaultJobsConfig())

	// A partial snapshot disables every job it does not mention; reloads
	// are replacements, never merges.
	holder.Store(JobsConfig{
		CycleCreation: JobToggle{Enabled: true, BatchSize: 10},
	})

	got := holder.Get()
	assert.True(t, got.CycleCreation.Enabled)
	assert.Equal(t, 10, got.CycleCreation.BatchSize)
	assert.False(t, got.AutoCancellation.Enabled)
	assert.False(t, got.SubscriptionExpiry.Enabled)
	assert.Equal(t, 100, got.AutoCancellation.BatchSize)
}

func TestNewJobsConfigHolderReadsJobsYML(t *testing.T) {
	dir := t.TempDir()
	yml := `jobs:
  cycleCreation:
    enabled: false
    batchSize: 7
  autoCancellation:
    enabled: true
  subscriptionExpiry:
    enabled: true
    batchSize: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jobs.yml"), []byte(yml), 0o644))
	t.Chdir(dir)

	holder, err := NewJobsConfigHolder()
	require.NoError(t, err)

	got := holder.Get()
	assert.False(t, got.CycleCreation.Enabled)
	assert.Equal(t, 7, got.CycleCreation.BatchSize)
	assert.True(t, got.AutoCancellation.Enabled)
	assert.Equal(t, 100, got.AutoCancellation.BatchSize)
	assert.True(t, got.SubscriptionExpiry.Enabled)
	assert.Equal(t, 100, got.SubscriptionExpiry.BatchSize)
}

func TestNewJobsConfigHolderWithoutFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewJobsConfigHolder()
	require.NoError(t, err)
	assert.Equal(t, DefaultJobsConfig(), holder.Get())
}

func TestNewJobsConfigHolderRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jobs.yml"), []byte("jobs: ["), 0o644))
	t.Chdir(dir)

	_, err := NewJobsConfigHolder()
	require.Error(t, err)
}
