package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
)

// WorkEntryFilter captures listing and summary parameters.
type WorkEntryFilter struct {
	TenantID string
	TicketID *string
	UserID   *string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// WorkEntryRepository encapsulates work entry persistence.
type WorkEntryRepository interface {
	Create(ctx context.Context, entry *domain.WorkEntry) error
	Update(ctx context.Context, entry *domain.WorkEntry) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.WorkEntry, error)
	ListWithFilter(ctx context.Context, filter WorkEntryFilter) ([]domain.WorkEntry, error)
	Summary(ctx context.Context, filter WorkEntryFilter) (domain.WorkSummary, error)
}

type workEntryRepository struct {
	pool *pgxpool.Pool
}

// NewWorkEntryRepository instantiates repository.
func NewWorkEntryRepository(pool *pgxpool.Pool) WorkEntryRepository {
	return &workEntryRepository{pool: pool}
}

const workEntryColumns = `id, tenant_id, ticket_id, user_id, description, start_time, end_time,
               duration_minutes, paused_minutes, is_billable, hourly_rate, created_at, updated_at`

func (r *workEntryRepository) Create(ctx context.Context, entry *domain.WorkEntry) error {
	const query = `
        INSERT INTO work_entries (tenant_id, ticket_id, user_id, description, start_time, end_time,
            duration_minutes, paused_minutes, is_billable, hourly_rate)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		entry.TenantID,
		entry.TicketID,
		entry.UserID,
		entry.Description,
		entry.StartTime,
		entry.EndTime,
		entry.DurationMinutes,
		entry.PausedMinutes,
		entry.IsBillable,
		entry.HourlyRate,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
}

func (r *workEntryRepository) Update(ctx context.Context, entry *domain.WorkEntry) error {
	const query = `
        UPDATE work_entries SET description=$1, is_billable=$2, hourly_rate=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query, entry.Description, entry.IsBillable, entry.HourlyRate, entry.ID).Scan(&entry.UpdatedAt)
}

func (r *workEntryRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM work_entries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *workEntryRepository) GetByID(ctx context.Context, id string) (*domain.WorkEntry, error) {
	query := `SELECT ` + workEntryColumns + ` FROM work_entries WHERE id=$1`
	return scanWorkEntry(r.pool.QueryRow(ctx, query, id))
}

func (r *workEntryRepository) ListWithFilter(ctx context.Context, filter WorkEntryFilter) ([]domain.WorkEntry, error) {
	where, args := workEntryWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM work_entries WHERE %s ORDER BY start_time DESC LIMIT %d OFFSET %d`,
		workEntryColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkEntry
	for rows.Next() {
		entry, err := scanWorkEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

func (r *workEntryRepository) Summary(ctx context.Context, filter WorkEntryFilter) (domain.WorkSummary, error) {
	where, args := workEntryWhere(filter)
	query := fmt.Sprintf(`
        SELECT COUNT(*),
               COALESCE(SUM(duration_minutes), 0),
               COALESCE(SUM(duration_minutes) FILTER (WHERE is_billable), 0),
               COALESCE(SUM(ROUND(duration_minutes::numeric * hourly_rate / 60))
                   FILTER (WHERE is_billable AND hourly_rate IS NOT NULL), 0)::bigint
        FROM work_entries WHERE %s`, where)

	var summary domain.WorkSummary
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&summary.EntryCount,
		&summary.TotalMinutes,
		&summary.BillableMinutes,
		&summary.TotalAmount,
	)
	return summary, err
}

func workEntryWhere(filter WorkEntryFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TenantID != "" {
		args = append(args, filter.TenantID)
		clauses = append(clauses, fmt.Sprintf("tenant_id=$%d", len(args)))
	}
	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("ticket_id=$%d", len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("start_time <= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanWorkEntry(row pgx.Row) (*domain.WorkEntry, error) {
	var entry domain.WorkEntry
	if err := row.Scan(
		&entry.ID,
		&entry.TenantID,
		&entry.TicketID,
		&entry.UserID,
		&entry.Description,
		&entry.StartTime,
		&entry.EndTime,
		&entry.DurationMinutes,
		&entry.PausedMinutes,
		&entry.IsBillable,
		&entry.HourlyRate,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}
