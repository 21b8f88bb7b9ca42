package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
)

// SlaOpenFilter pages through tickets that still have a running SLA clock.
type SlaOpenFilter struct {
	AfterID string
	Limit   int
}

// TicketRepository reads tickets and writes their SLA fields. Ticket creation and
// the remaining columns belong to the ticket CRUD layer.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateSlaSchedule(ctx context.Context, ticket *domain.Ticket) error
	SetFirstResponse(ctx context.Context, id string, at time.Time) (bool, error)
	MarkBreached(ctx context.Context, id string) (bool, error)
	MarkResolved(ctx context.Context, id string, at time.Time) (bool, error)
	ListSlaOpen(ctx context.Context, filter SlaOpenFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, tenant_id, ticket_number, title, status, priority, sla_definition_id,
               first_response_at, sla_response_due_at, sla_resolution_due_at, sla_breached,
               resolved_at, created_at, updated_at`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

// UpdateSlaSchedule writes priority, definition, and due dates. First response,
// breach, and resolution have their own conditional writers.
func (r *ticketRepository) UpdateSlaSchedule(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET priority=$1, sla_definition_id=$2, sla_response_due_at=$3,
            sla_resolution_due_at=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Priority,
		ticket.SlaDefinitionID,
		ticket.SlaResponseDueAt,
		ticket.SlaResolutionDueAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}

func (r *ticketRepository) SetFirstResponse(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET first_response_at=$1, updated_at=NOW()
        WHERE id=$2 AND first_response_at IS NULL`
	return r.execConditional(ctx, query, at, id)
}

func (r *ticketRepository) MarkBreached(ctx context.Context, id string) (bool, error) {
	const query = `
        UPDATE tickets SET sla_breached=TRUE, updated_at=NOW()
        WHERE id=$1 AND sla_breached=FALSE`
	return r.execConditional(ctx, query, id)
}

func (r *ticketRepository) MarkResolved(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET resolved_at=$1, status=$2, updated_at=NOW()
        WHERE id=$3 AND resolved_at IS NULL`
	return r.execConditional(ctx, query, at, domain.TicketStatusResolved, id)
}

func (r *ticketRepository) ListSlaOpen(ctx context.Context, filter SlaOpenFilter) ([]domain.Ticket, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE resolved_at IS NULL
          AND (sla_response_due_at IS NOT NULL OR sla_resolution_due_at IS NOT NULL)`
	args := []any{}
	if filter.AfterID != "" {
		args = append(args, filter.AfterID)
		query += fmt.Sprintf(" AND id > $%d", len(args))
	}
	query += fmt.Sprintf(" ORDER BY id ASC LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) execConditional(ctx context.Context, query string, args ...any) (bool, error) {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() > 0 {
		return true, nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, args[len(args)-1]).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, pgx.ErrNoRows
	}
	return false, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TenantID,
		&ticket.TicketNumber,
		&ticket.Title,
		&ticket.Status,
		&ticket.Priority,
		&ticket.SlaDefinitionID,
		&ticket.FirstResponseAt,
		&ticket.SlaResponseDueAt,
		&ticket.SlaResolutionDueAt,
		&ticket.SlaBreached,
		&ticket.ResolvedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
