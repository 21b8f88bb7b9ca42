package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
)

// TimerMutation changes a locked timer in place. Returning an error aborts the
// transaction and leaves the stored row untouched.
type TimerMutation func(timer *domain.ActiveTimer) error

// TimerRepository persists active timers keyed by (ticket, user).
//
// Create is a conditional insert, so concurrent starts for the same key see
// exactly one success and ErrDuplicate for the rest. Update and Take hold a row
// lock for the duration of the mutation, which linearizes pause/resume/stop.
type TimerRepository interface {
	Create(ctx context.Context, timer *domain.ActiveTimer) error
	Get(ctx context.Context, ticketID, userID string) (*domain.ActiveTimer, error)
	ListByUser(ctx context.Context, tenantID, userID string) ([]domain.ActiveTimer, error)
	Update(ctx context.Context, ticketID, userID string, mutate TimerMutation) (*domain.ActiveTimer, error)
	Take(ctx context.Context, ticketID, userID string, inspect TimerMutation) (*domain.ActiveTimer, error)
}

type timerRepository struct {
	pool *pgxpool.Pool
}

// NewTimerRepository instantiates repository.
func NewTimerRepository(pool *pgxpool.Pool) TimerRepository {
	return &timerRepository{pool: pool}
}

const timerColumns = `ticket_id, user_id, tenant_id, started_at, paused_at, total_paused_ms, updated_at`

func (r *timerRepository) Create(ctx context.Context, timer *domain.ActiveTimer) error {
	const query = `
        INSERT INTO active_timers (ticket_id, user_id, tenant_id, started_at, paused_at, total_paused_ms, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (ticket_id, user_id) DO NOTHING
        RETURNING ticket_id`
	var ticketID string
	err := r.pool.QueryRow(ctx, query,
		timer.TicketID,
		timer.UserID,
		timer.TenantID,
		timer.StartedAt,
		timer.PausedAt,
		timer.TotalPausedMs,
		timer.UpdatedAt,
	).Scan(&ticketID)
	if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *timerRepository) Get(ctx context.Context, ticketID, userID string) (*domain.ActiveTimer, error) {
	query := `SELECT ` + timerColumns + ` FROM active_timers WHERE ticket_id=$1 AND user_id=$2`
	return scanTimer(r.pool.QueryRow(ctx, query, ticketID, userID))
}

func (r *timerRepository) ListByUser(ctx context.Context, tenantID, userID string) ([]domain.ActiveTimer, error) {
	query := `SELECT ` + timerColumns + ` FROM active_timers
        WHERE tenant_id=$1 AND user_id=$2 ORDER BY started_at ASC`
	rows, err := r.pool.Query(ctx, query, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ActiveTimer
	for rows.Next() {
		timer, err := scanTimer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *timer)
	}
	return result, rows.Err()
}

func (r *timerRepository) Update(ctx context.Context, ticketID, userID string, mutate TimerMutation) (*domain.ActiveTimer, error) {
	var updated *domain.ActiveTimer
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		timer, err := lockTimer(ctx, tx, ticketID, userID)
		if err != nil {
			return err
		}
		if err := mutate(timer); err != nil {
			return err
		}
		const query = `
            UPDATE active_timers SET paused_at=$1, total_paused_ms=$2, updated_at=$3
            WHERE ticket_id=$4 AND user_id=$5`
		if _, err := tx.Exec(ctx, query, timer.PausedAt, timer.TotalPausedMs, timer.UpdatedAt, ticketID, userID); err != nil {
			return err
		}
		updated = timer
		return nil
	})
	return updated, err
}

func (r *timerRepository) Take(ctx context.Context, ticketID, userID string, inspect TimerMutation) (*domain.ActiveTimer, error) {
	var taken *domain.ActiveTimer
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		timer, err := lockTimer(ctx, tx, ticketID, userID)
		if err != nil {
			return err
		}
		if inspect != nil {
			if err := inspect(timer); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM active_timers WHERE ticket_id=$1 AND user_id=$2`, ticketID, userID); err != nil {
			return err
		}
		taken = timer
		return nil
	})
	return taken, err
}

func lockTimer(ctx context.Context, tx pgx.Tx, ticketID, userID string) (*domain.ActiveTimer, error) {
	query := `SELECT ` + timerColumns + ` FROM active_timers WHERE ticket_id=$1 AND user_id=$2 FOR UPDATE`
	return scanTimer(tx.QueryRow(ctx, query, ticketID, userID))
}

func scanTimer(row pgx.Row) (*domain.ActiveTimer, error) {
	var timer domain.ActiveTimer
	if err := row.Scan(
		&timer.TicketID,
		&timer.UserID,
		&timer.TenantID,
		&timer.StartedAt,
		&timer.PausedAt,
		&timer.TotalPausedMs,
		&timer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &timer, nil
}
