package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/repository"
	"github.com/spec-kit/sla-timekeeper/pkg/util/errorutil"
)

// SlaDefinitionService administers tenant SLA definitions and escalation ladders.
type SlaDefinitionService struct {
	slas   repository.SlaRepository
	logger *zap.Logger
}

// SlaDefinitionInput describes a definition to create.
type SlaDefinitionInput struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Response    domain.PriorityBudgets `yaml:"response"`
	Resolution  domain.PriorityBudgets `yaml:"resolution"`
	IsDefault   bool                   `yaml:"default"`
	IsActive    bool                   `yaml:"-"`
}

// SlaDefinitionPatch carries optional changes to a definition.
type SlaDefinitionPatch struct {
	Name        *string
	Description *string
	Response    *domain.PriorityBudgets
	Resolution  *domain.PriorityBudgets
	IsDefault   *bool
	IsActive    *bool
}

// EscalationInput describes one escalation level.
type EscalationInput struct {
	Level            int                   `yaml:"level"`
	ThresholdPercent int                   `yaml:"threshold_percent"`
	EscalationType   domain.EscalationType `yaml:"type"`
	NotifyUserIDs    []string              `yaml:"notify"`
}

// SeedDefinition is a definition plus its ladder, as loaded from a seed file.
type SeedDefinition struct {
	SlaDefinitionInput `yaml:",inline"`
	Escalations        []EscalationInput `yaml:"escalations"`
}

// SeedReport summarizes a seed run.
type SeedReport struct {
	Created []string
	Skipped []string
}

// NewSlaDefinitionService constructs the service.
func NewSlaDefinitionService(slas repository.SlaRepository, logger *zap.Logger) *SlaDefinitionService {
	return &SlaDefinitionService{slas: slas, logger: nopLogger(logger)}
}

// Create validates and stores a new definition in the actor's tenant.
func (s *SlaDefinitionService) Create(ctx context.Context, actor domain.Actor, input SlaDefinitionInput) (*domain.SlaDefinition, error) {
	def := &domain.SlaDefinition{
		TenantID:    actor.TenantID,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Response:    input.Response,
		Resolution:  input.Resolution,
		IsDefault:   input.IsDefault,
		IsActive:    input.IsActive,
	}
	if err := validateDefinition(def); err != nil {
		return nil, err
	}
	if err := s.slas.Create(ctx, def); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errorutil.NewConflict("sla definition name already in use", map[string]any{"name": def.Name})
		}
		return nil, err
	}
	s.logger.Info("sla definition created", zap.String("tenant_id", def.TenantID), zap.String("sla_definition_id", def.ID))
	return def, nil
}

// Update applies a patch. Making a definition the default demotes the previous one.
func (s *SlaDefinitionService) Update(ctx context.Context, actor domain.Actor, id string, patch SlaDefinitionPatch) (*domain.SlaDefinition, error) {
	def, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		def.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		def.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Response != nil {
		def.Response = *patch.Response
	}
	if patch.Resolution != nil {
		def.Resolution = *patch.Resolution
	}
	if patch.IsDefault != nil {
		def.IsDefault = *patch.IsDefault
	}
	if patch.IsActive != nil {
		def.IsActive = *patch.IsActive
	}
	if err := validateDefinition(def); err != nil {
		return nil, err
	}
	if err := s.slas.Update(ctx, def); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("sla definition", map[string]any{"sla_definition_id": id})
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errorutil.NewConflict("sla definition name already in use", map[string]any{"name": def.Name})
		}
		return nil, err
	}
	return def, nil
}

// Delete removes a definition and its escalations.
func (s *SlaDefinitionService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.slas.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errorutil.NewNotFound("sla definition", map[string]any{"sla_definition_id": id})
		}
		return err
	}
	return nil
}

// Get loads a definition of the actor's tenant with its escalations.
func (s *SlaDefinitionService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.SlaDefinition, error) {
	def, err := s.slas.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("sla definition", map[string]any{"sla_definition_id": id})
		}
		return nil, err
	}
	if def.TenantID != actor.TenantID {
		return nil, errorutil.NewNotFound("sla definition", map[string]any{"sla_definition_id": id})
	}
	return def, nil
}

// List returns all definitions of the actor's tenant.
func (s *SlaDefinitionService) List(ctx context.Context, actor domain.Actor) ([]domain.SlaDefinition, error) {
	return s.slas.ListByTenant(ctx, actor.TenantID)
}

// AddEscalation appends a level to a definition's ladder.
func (s *SlaDefinitionService) AddEscalation(ctx context.Context, actor domain.Actor, definitionID string, input EscalationInput) (*domain.SlaEscalation, error) {
	def, err := s.Get(ctx, actor, definitionID)
	if err != nil {
		return nil, err
	}
	escalation := &domain.SlaEscalation{
		SlaDefinitionID:  def.ID,
		Level:            input.Level,
		ThresholdPercent: input.ThresholdPercent,
		EscalationType:   input.EscalationType.Normalize(),
		NotifyUserIDs:    compactIDs(input.NotifyUserIDs),
	}
	if err := validateEscalation(escalation); err != nil {
		return nil, err
	}
	if err := s.slas.CreateEscalation(ctx, escalation); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errorutil.NewConflict("escalation level already defined", map[string]any{
				"level":           escalation.Level,
				"escalation_type": escalation.EscalationType,
			})
		}
		return nil, err
	}
	return escalation, nil
}

// DeleteEscalation removes one level from a ladder of the actor's tenant.
func (s *SlaDefinitionService) DeleteEscalation(ctx context.Context, actor domain.Actor, escalationID string) error {
	escalation, err := s.slas.GetEscalation(ctx, escalationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errorutil.NewNotFound("sla escalation", map[string]any{"sla_escalation_id": escalationID})
		}
		return err
	}
	if _, err := s.Get(ctx, actor, escalation.SlaDefinitionID); err != nil {
		if errorutil.HasCode(err, errorutil.CodeNotFound) {
			return errorutil.NewNotFound("sla escalation", map[string]any{"sla_escalation_id": escalationID})
		}
		return err
	}
	if err := s.slas.DeleteEscalation(ctx, escalationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errorutil.NewNotFound("sla escalation", map[string]any{"sla_escalation_id": escalationID})
		}
		return err
	}
	return nil
}

// Seed creates the given definitions in a tenant, skipping names that already exist.
func (s *SlaDefinitionService) Seed(ctx context.Context, tenantID string, seeds []SeedDefinition) (SeedReport, error) {
	var report SeedReport
	actor := domain.Actor{TenantID: tenantID, Role: domain.RoleAdmin}

	existing, err := s.slas.ListByTenant(ctx, tenantID)
	if err != nil {
		return report, err
	}
	names := make(map[string]struct{}, len(existing))
	for _, def := range existing {
		names[strings.ToLower(def.Name)] = struct{}{}
	}

	for _, seed := range seeds {
		key := strings.ToLower(strings.TrimSpace(seed.Name))
		if _, ok := names[key]; ok {
			report.Skipped = append(report.Skipped, seed.Name)
			continue
		}
		def, err := s.Create(ctx, actor, seed.SlaDefinitionInput)
		if err != nil {
			return report, err
		}
		for _, input := range seed.Escalations {
			if _, err := s.AddEscalation(ctx, actor, def.ID, input); err != nil {
				return report, err
			}
		}
		names[key] = struct{}{}
		report.Created = append(report.Created, def.Name)
	}
	return report, nil
}

// DefaultSeed is the definition every new tenant starts with.
func DefaultSeed() SeedDefinition {
	return SeedDefinition{
		SlaDefinitionInput: SlaDefinitionInput{
			Name:        "Standard-SLA",
			Description: "Default service level",
			Response:    domain.DefaultResponseBudgets,
			Resolution:  domain.DefaultResolutionBudgets,
			IsDefault:   true,
			IsActive:    true,
		},
	}
}

func validateDefinition(def *domain.SlaDefinition) error {
	details := map[string]any{}
	if def.Name == "" {
		details["name"] = "required"
	}
	if negative := def.Response.Negative(); len(negative) > 0 {
		details["response"] = priorityNames(negative)
	}
	if negative := def.Resolution.Negative(); len(negative) > 0 {
		details["resolution"] = priorityNames(negative)
	}
	if len(details) > 0 {
		return errorutil.NewValidationError("invalid sla definition", details)
	}
	return nil
}

func validateEscalation(escalation *domain.SlaEscalation) error {
	details := map[string]any{}
	if escalation.Level < 1 {
		details["level"] = "must be at least 1"
	}
	if escalation.ThresholdPercent < 0 {
		details["threshold_percent"] = "must not be negative"
	}
	if !escalation.EscalationType.Valid() {
		details["escalation_type"] = "must be response or resolution"
	}
	if len(details) > 0 {
		return errorutil.NewValidationError("invalid sla escalation", details)
	}
	return nil
}

func priorityNames(priorities []domain.TicketPriority) string {
	parts := make([]string, 0, len(priorities))
	for _, p := range priorities {
		parts = append(parts, string(p))
	}
	return "negative budget for " + strings.Join(parts, ", ")
}

func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
