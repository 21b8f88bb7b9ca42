package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
)

func TestParseSeed(t *testing.T) {
	raw := []byte(`
definitions:
  - name: Gold
    default: true
    response:   {low: 120, medium: 60, high: 30, urgent: 10}
    resolution: {low: 960, medium: 480, high: 240, urgent: 60}
    escalations:
      - {level: 1, threshold_percent: 50, type: response, notify: [lead-1, lead-2]}
  - name: Retired
    active: false
    response:   {low: 1, medium: 1, high: 1, urgent: 1}
    resolution: {low: 1, medium: 1, high: 1, urgent: 1}
`)

	seeds, err := ParseSeed(raw)
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	gold := seeds[0]
	assert.Equal(t, "Gold", gold.Name)
	assert.True(t, gold.IsDefault)
	assert.True(t, gold.IsActive)
	assert.Equal(t, domain.PriorityBudgets{Low: 120, Medium: 60, High: 30, Urgent: 10}, gold.Response)
	require.Len(t, gold.Escalations, 1)
	assert.Equal(t, domain.EscalationTypeResponse, gold.Escalations[0].EscalationType)
	assert.Equal(t, []string{"lead-1", "lead-2"}, gold.Escalations[0].NotifyUserIDs)

	assert.False(t, seeds[1].IsActive)
	assert.False(t, seeds[1].IsDefault)
}

func TestParseSeedRejectsEmptyAndNameless(t *testing.T) {
	_, err := ParseSeed([]byte("definitions: []\n"))
	assert.Error(t, err)

	_, err = ParseSeed([]byte("definitions:\n  - description: no name\n"))
	assert.Error(t, err)

	_, err = ParseSeed([]byte("definitions: [\n"))
	assert.Error(t, err)
}

func TestLoadSampleSeedFile(t *testing.T) {
	seeds, err := LoadSeedFile(filepath.Join("..", "..", "sla.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, seeds)
	assert.Equal(t, "Standard-SLA", seeds[0].Name)
	assert.Equal(t, domain.DefaultResponseBudgets, seeds[0].Response)
	assert.Equal(t, domain.DefaultResolutionBudgets, seeds[0].Resolution)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadSeedFileFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sla.yaml")
	require.NoError(t, os.WriteFile(path, []byte("definitions:\n  - name: Basic\n"), 0o600))

	seeds, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.True(t, seeds[0].IsActive)
}
