package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
)

// SlaRepository persists SLA definitions and their escalation ladders.
type SlaRepository interface {
	Create(ctx context.Context, def *domain.SlaDefinition) error
	Update(ctx context.Context, def *domain.SlaDefinition) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.SlaDefinition, error)
	GetDefault(ctx context.Context, tenantID string) (*domain.SlaDefinition, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.SlaDefinition, error)
	CreateEscalation(ctx context.Context, escalation *domain.SlaEscalation) error
	GetEscalation(ctx context.Context, id string) (*domain.SlaEscalation, error)
	DeleteEscalation(ctx context.Context, id string) error
}

type slaRepository struct {
	pool *pgxpool.Pool
}

// NewSlaRepository instantiates repository.
func NewSlaRepository(pool *pgxpool.Pool) SlaRepository {
	return &slaRepository{pool: pool}
}

const slaColumns = `id, tenant_id, name, description,
               response_time_low, response_time_medium, response_time_high, response_time_urgent,
               resolution_time_low, resolution_time_medium, resolution_time_high, resolution_time_urgent,
               is_default, is_active, created_at`

const escalationColumns = `id, sla_definition_id, level, threshold_percent, escalation_type, notify_user_ids, created_at`

// Create inserts the definition. A new default demotes the tenant's previous one
// in the same transaction.
func (r *slaRepository) Create(ctx context.Context, def *domain.SlaDefinition) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if def.IsDefault {
			if err := clearDefault(ctx, tx, def.TenantID, ""); err != nil {
				return err
			}
		}
		const query = `
            INSERT INTO sla_definitions (tenant_id, name, description,
                response_time_low, response_time_medium, response_time_high, response_time_urgent,
                resolution_time_low, resolution_time_medium, resolution_time_high, resolution_time_urgent,
                is_default, is_active)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
            RETURNING id, created_at`
		err := tx.QueryRow(ctx, query,
			def.TenantID,
			def.Name,
			def.Description,
			def.Response.Low,
			def.Response.Medium,
			def.Response.High,
			def.Response.Urgent,
			def.Resolution.Low,
			def.Resolution.Medium,
			def.Resolution.High,
			def.Resolution.Urgent,
			def.IsDefault,
			def.IsActive,
		).Scan(&def.ID, &def.CreatedAt)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	})
}

func (r *slaRepository) Update(ctx context.Context, def *domain.SlaDefinition) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if def.IsDefault {
			if err := clearDefault(ctx, tx, def.TenantID, def.ID); err != nil {
				return err
			}
		}
		const query = `
            UPDATE sla_definitions SET name=$1, description=$2,
                response_time_low=$3, response_time_medium=$4, response_time_high=$5, response_time_urgent=$6,
                resolution_time_low=$7, resolution_time_medium=$8, resolution_time_high=$9, resolution_time_urgent=$10,
                is_default=$11, is_active=$12
            WHERE id=$13`
		cmd, err := tx.Exec(ctx, query,
			def.Name,
			def.Description,
			def.Response.Low,
			def.Response.Medium,
			def.Response.High,
			def.Response.Urgent,
			def.Resolution.Low,
			def.Resolution.Medium,
			def.Resolution.High,
			def.Resolution.Urgent,
			def.IsDefault,
			def.IsActive,
			def.ID,
		)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
}

func clearDefault(ctx context.Context, tx pgx.Tx, tenantID, keepID string) error {
	if keepID == "" {
		_, err := tx.Exec(ctx, `UPDATE sla_definitions SET is_default=FALSE WHERE tenant_id=$1 AND is_default`, tenantID)
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE sla_definitions SET is_default=FALSE WHERE tenant_id=$1 AND is_default AND id<>$2`, tenantID, keepID)
	return err
}

func (r *slaRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM sla_definitions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaRepository) GetByID(ctx context.Context, id string) (*domain.SlaDefinition, error) {
	query := `SELECT ` + slaColumns + ` FROM sla_definitions WHERE id=$1`
	return r.fetchWithEscalations(ctx, query, id)
}

func (r *slaRepository) GetDefault(ctx context.Context, tenantID string) (*domain.SlaDefinition, error) {
	query := `SELECT ` + slaColumns + ` FROM sla_definitions
        WHERE tenant_id=$1 AND is_default AND is_active
        ORDER BY created_at DESC LIMIT 1`
	return r.fetchWithEscalations(ctx, query, tenantID)
}

func (r *slaRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.SlaDefinition, error) {
	query := `SELECT ` + slaColumns + ` FROM sla_definitions WHERE tenant_id=$1 ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	var result []domain.SlaDefinition
	for rows.Next() {
		def, err := scanSlaDefinition(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		result = append(result, *def)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		escalations, err := r.listEscalations(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Escalations = escalations
	}
	return result, nil
}

func (r *slaRepository) CreateEscalation(ctx context.Context, escalation *domain.SlaEscalation) error {
	const query = `
        INSERT INTO sla_escalations (sla_definition_id, level, threshold_percent, escalation_type, notify_user_ids)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	notify := escalation.NotifyUserIDs
	if notify == nil {
		notify = []string{}
	}
	err := r.pool.QueryRow(ctx, query,
		escalation.SlaDefinitionID,
		escalation.Level,
		escalation.ThresholdPercent,
		escalation.EscalationType,
		notify,
	).Scan(&escalation.ID, &escalation.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *slaRepository) GetEscalation(ctx context.Context, id string) (*domain.SlaEscalation, error) {
	query := `SELECT ` + escalationColumns + ` FROM sla_escalations WHERE id=$1`
	return scanEscalation(r.pool.QueryRow(ctx, query, id))
}

func (r *slaRepository) DeleteEscalation(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM sla_escalations WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaRepository) fetchWithEscalations(ctx context.Context, query string, arg any) (*domain.SlaDefinition, error) {
	def, err := scanSlaDefinition(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	escalations, err := r.listEscalations(ctx, def.ID)
	if err != nil {
		return nil, err
	}
	def.Escalations = escalations
	return def, nil
}

func (r *slaRepository) listEscalations(ctx context.Context, definitionID string) ([]domain.SlaEscalation, error) {
	query := `SELECT ` + escalationColumns + ` FROM sla_escalations
        WHERE sla_definition_id=$1 ORDER BY threshold_percent ASC, level ASC`
	rows, err := r.pool.Query(ctx, query, definitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SlaEscalation
	for rows.Next() {
		escalation, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *escalation)
	}
	return result, rows.Err()
}

func scanSlaDefinition(row pgx.Row) (*domain.SlaDefinition, error) {
	var def domain.SlaDefinition
	if err := row.Scan(
		&def.ID,
		&def.TenantID,
		&def.Name,
		&def.Description,
		&def.Response.Low,
		&def.Response.Medium,
		&def.Response.High,
		&def.Response.Urgent,
		&def.Resolution.Low,
		&def.Resolution.Medium,
		&def.Resolution.High,
		&def.Resolution.Urgent,
		&def.IsDefault,
		&def.IsActive,
		&def.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &def, nil
}

func scanEscalation(row pgx.Row) (*domain.SlaEscalation, error) {
	var escalation domain.SlaEscalation
	if err := row.Scan(
		&escalation.ID,
		&escalation.SlaDefinitionID,
		&escalation.Level,
		&escalation.ThresholdPercent,
		&escalation.EscalationType,
		&escalation.NotifyUserIDs,
		&escalation.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &escalation, nil
}
