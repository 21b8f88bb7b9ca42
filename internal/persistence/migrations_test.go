package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrationNamesAreOrdered(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_sla.sql", "0002_time_tracking.sql", "0003_work_entry_rates.sql"}, names)
}

func TestRunMigrationsWithoutPool(t *testing.T) {
	assert.NoError(t, RunMigrations(context.Background(), nil, zap.NewNop()))
}
