package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/pkg/util/errorutil"
)

func TestSlaDefinitionRejectsNegativeBudgets(t *testing.T) {
	h := newHarness(t)
	input := DefaultSeed().SlaDefinitionInput
	input.Response.Urgent = -1

	_, err := h.slaDefinition.Create(context.Background(), admin("a"), input)
	require.Error(t, err)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeValidation))

	var domainErr *errorutil.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Contains(t, domainErr.Details, "response")
}

func TestSlaDefinitionSingleDefault(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := admin("a")

	first, err := h.slaDefinition.Create(ctx, actor, DefaultSeed().SlaDefinitionInput)
	require.NoError(t, err)

	premium := DefaultSeed().SlaDefinitionInput
	premium.Name = "Premium"
	second, err := h.slaDefinition.Create(ctx, actor, premium)
	require.NoError(t, err)

	current, err := h.slas.GetDefault(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	makeDefault := true
	_, err = h.slaDefinition.Update(ctx, actor, first.ID, SlaDefinitionPatch{IsDefault: &makeDefault})
	require.NoError(t, err)

	defs, err := h.slaDefinition.List(ctx, actor)
	require.NoError(t, err)
	defaults := 0
	for _, def := range defs {
		if def.IsDefault {
			defaults++
			assert.Equal(t, first.ID, def.ID)
		}
	}
	assert.Equal(t, 1, defaults)

	_, err = h.slaDefinition.Create(ctx, actor, premium)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeConflict))
}

func TestSlaDefinitionEscalations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := admin("a")
	def, err := h.slaDefinition.Create(ctx, actor, DefaultSeed().SlaDefinitionInput)
	require.NoError(t, err)

	_, err = h.slaDefinition.AddEscalation(ctx, actor, def.ID, EscalationInput{Level: 0, ThresholdPercent: -5, EscalationType: "sideways"})
	require.Error(t, err)
	var domainErr *errorutil.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Len(t, domainErr.Details, 3)

	escalation, err := h.slaDefinition.AddEscalation(ctx, actor, def.ID, EscalationInput{
		Level: 1, ThresholdPercent: 75, NotifyUserIDs: []string{"lead", " ", "lead"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EscalationTypeResponse, escalation.EscalationType)
	assert.Equal(t, []string{"lead"}, escalation.NotifyUserIDs)

	_, err = h.slaDefinition.AddEscalation(ctx, actor, def.ID, EscalationInput{Level: 1, ThresholdPercent: 90})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeConflict))

	other := domain.Actor{UserID: "x", TenantID: "tenant-b", Role: domain.RoleAdmin}
	assert.True(t, errorutil.HasCode(h.slaDefinition.DeleteEscalation(ctx, other, escalation.ID), errorutil.CodeNotFound))

	require.NoError(t, h.slaDefinition.DeleteEscalation(ctx, actor, escalation.ID))
	loaded, err := h.slaDefinition.Get(ctx, actor, def.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Escalations)

	require.NoError(t, h.slaDefinition.Delete(ctx, actor, def.ID))
	_, err = h.slaDefinition.Get(ctx, actor, def.ID)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeNotFound))
}

func TestSeedSkipsExistingNames(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	report, err := h.slaDefinition.Seed(ctx, tenantID, []SeedDefinition{DefaultSeed()})
	require.NoError(t, err)
	assert.Equal(t, []string{"Standard-SLA"}, report.Created)

	report, err = h.slaDefinition.Seed(ctx, tenantID, []SeedDefinition{DefaultSeed()})
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Equal(t, []string{"Standard-SLA"}, report.Skipped)
}
