// Package memory provides in-process implementations of the repository
// interfaces. They follow the same contracts as the Postgres and Redis versions
// (pgx.ErrNoRows for missing rows, repository.ErrDuplicate for key collisions)
// and are safe for concurrent use.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/repository"
)

// TimerStore implements repository.TimerRepository.
type TimerStore struct {
	mu     sync.Mutex
	timers map[string]domain.ActiveTimer
}

// NewTimerStore returns an empty store.
func NewTimerStore() *TimerStore {
	return &TimerStore{timers: map[string]domain.ActiveTimer{}}
}

func timerKey(ticketID, userID string) string {
	return ticketID + "\x00" + userID
}

func (s *TimerStore) Create(ctx context.Context, timer *domain.ActiveTimer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := timerKey(timer.TicketID, timer.UserID)
	if _, exists := s.timers[key]; exists {
		return repository.ErrDuplicate
	}
	s.timers[key] = cloneTimer(*timer)
	return nil
}

func (s *TimerStore) Get(ctx context.Context, ticketID, userID string) (*domain.ActiveTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer, ok := s.timers[timerKey(ticketID, userID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneTimer(timer)
	return &out, nil
}

func (s *TimerStore) ListByUser(ctx context.Context, tenantID, userID string) ([]domain.ActiveTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ActiveTimer
	for _, timer := range s.timers {
		if timer.TenantID == tenantID && timer.UserID == userID {
			out = append(out, cloneTimer(timer))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *TimerStore) Update(ctx context.Context, ticketID, userID string, mutate repository.TimerMutation) (*domain.ActiveTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := timerKey(ticketID, userID)
	stored, ok := s.timers[key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	working := cloneTimer(stored)
	if err := mutate(&working); err != nil {
		return nil, err
	}
	s.timers[key] = cloneTimer(working)
	return &working, nil
}

func (s *TimerStore) Take(ctx context.Context, ticketID, userID string, inspect repository.TimerMutation) (*domain.ActiveTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := timerKey(ticketID, userID)
	stored, ok := s.timers[key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	working := cloneTimer(stored)
	if inspect != nil {
		if err := inspect(&working); err != nil {
			return nil, err
		}
	}
	delete(s.timers, key)
	return &working, nil
}

// Len reports how many timers are stored.
func (s *TimerStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func cloneTimer(t domain.ActiveTimer) domain.ActiveTimer {
	if t.PausedAt != nil {
		pausedAt := *t.PausedAt
		t.PausedAt = &pausedAt
	}
	return t
}

// TicketStore implements repository.TicketRepository.
type TicketStore struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
}

// NewTicketStore returns an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: map[string]domain.Ticket{}}
}

// Put inserts or replaces a ticket, assigning an id when missing.
func (s *TicketStore) Put(ticket domain.Ticket) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	s.tickets[ticket.ID] = ticket
	return ticket
}

func (s *TicketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (s *TicketStore) UpdateSlaSchedule(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Priority = ticket.Priority
	stored.SlaDefinitionID = ticket.SlaDefinitionID
	stored.SlaResponseDueAt = ticket.SlaResponseDueAt
	stored.SlaResolutionDueAt = ticket.SlaResolutionDueAt
	s.tickets[ticket.ID] = stored
	return nil
}

func (s *TicketStore) SetFirstResponse(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.conditional(id, func(t *domain.Ticket) bool {
		if t.FirstResponseAt != nil {
			return false
		}
		t.FirstResponseAt = &at
		return true
	})
}

func (s *TicketStore) MarkBreached(ctx context.Context, id string) (bool, error) {
	return s.conditional(id, func(t *domain.Ticket) bool {
		if t.SlaBreached {
			return false
		}
		t.SlaBreached = true
		return true
	})
}

func (s *TicketStore) MarkResolved(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.conditional(id, func(t *domain.Ticket) bool {
		if t.ResolvedAt != nil {
			return false
		}
		t.ResolvedAt = &at
		t.Status = domain.TicketStatusResolved
		return true
	})
}

func (s *TicketStore) ListSlaOpen(ctx context.Context, filter repository.SlaOpenFilter) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var out []domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.ResolvedAt != nil || !ticket.SlaManaged() {
			continue
		}
		if filter.AfterID != "" && ticket.ID <= filter.AfterID {
			continue
		}
		out = append(out, ticket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *TicketStore) conditional(id string, apply func(*domain.Ticket) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if !apply(&ticket) {
		return false, nil
	}
	s.tickets[id] = ticket
	return true, nil
}

// WorkEntryStore implements repository.WorkEntryRepository.
type WorkEntryStore struct {
	mu      sync.Mutex
	entries map[string]domain.WorkEntry
	now     func() time.Time
}

// NewWorkEntryStore returns an empty store.
func NewWorkEntryStore() *WorkEntryStore {
	return &WorkEntryStore{entries: map[string]domain.WorkEntry{}, now: time.Now}
}

func (s *WorkEntryStore) Create(ctx context.Context, entry *domain.WorkEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.CreatedAt = s.now()
	entry.UpdatedAt = entry.CreatedAt
	s.entries[entry.ID] = *entry
	return nil
}

func (s *WorkEntryStore) Update(ctx context.Context, entry *domain.WorkEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.entries[entry.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Description = entry.Description
	stored.IsBillable = entry.IsBillable
	stored.HourlyRate = entry.HourlyRate
	stored.UpdatedAt = s.now()
	entry.UpdatedAt = stored.UpdatedAt
	s.entries[entry.ID] = stored
	return nil
}

func (s *WorkEntryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.entries, id)
	return nil
}

func (s *WorkEntryStore) GetByID(ctx context.Context, id string) (*domain.WorkEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &entry, nil
}

func (s *WorkEntryStore) ListWithFilter(ctx context.Context, filter repository.WorkEntryFilter) ([]domain.WorkEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := s.match(filter)
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartTime.After(matched[j].StartTime) })

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (s *WorkEntryStore) Summary(ctx context.Context, filter repository.WorkEntryFilter) (domain.WorkSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var summary domain.WorkSummary
	for _, entry := range s.match(filter) {
		summary.EntryCount++
		summary.TotalMinutes += entry.DurationMinutes
		if entry.IsBillable {
			summary.BillableMinutes += entry.DurationMinutes
		}
		summary.TotalAmount += entry.Amount()
	}
	return summary, nil
}

func (s *WorkEntryStore) match(filter repository.WorkEntryFilter) []domain.WorkEntry {
	var out []domain.WorkEntry
	for _, entry := range s.entries {
		if entry.TenantID != filter.TenantID {
			continue
		}
		if filter.TicketID != nil && entry.TicketID != *filter.TicketID {
			continue
		}
		if filter.UserID != nil && entry.UserID != *filter.UserID {
			continue
		}
		if filter.From != nil && entry.StartTime.Before(*filter.From) {
			continue
		}
		if filter.To != nil && entry.StartTime.After(*filter.To) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// HistoryStore implements repository.TicketHistoryRepository.
type HistoryStore struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

// NewHistoryStore returns an empty store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

func (s *HistoryStore) Create(ctx context.Context, history *domain.TicketHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	history.ID = uuid.NewString()
	history.CreatedAt = time.Now()
	s.entries = append(s.entries, *history)
	return nil
}

func (s *HistoryStore) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TicketHistory
	for _, entry := range s.entries {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SlaStore implements repository.SlaRepository.
type SlaStore struct {
	mu          sync.Mutex
	definitions map[string]domain.SlaDefinition
	escalations map[string]domain.SlaEscalation
}

// NewSlaStore returns an empty store.
func NewSlaStore() *SlaStore {
	return &SlaStore{
		definitions: map[string]domain.SlaDefinition{},
		escalations: map[string]domain.SlaEscalation{},
	}
}

func (s *SlaStore) Create(ctx context.Context, def *domain.SlaDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.definitions {
		if existing.TenantID == def.TenantID && strings.EqualFold(existing.Name, def.Name) {
			return repository.ErrDuplicate
		}
	}
	if def.IsDefault {
		s.clearDefault(def.TenantID, "")
	}
	def.ID = uuid.NewString()
	def.CreatedAt = time.Now()
	stored := *def
	stored.Escalations = nil
	s.definitions[def.ID] = stored
	return nil
}

func (s *SlaStore) Update(ctx context.Context, def *domain.SlaDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.definitions[def.ID]; !ok {
		return pgx.ErrNoRows
	}
	for id, existing := range s.definitions {
		if id != def.ID && existing.TenantID == def.TenantID && strings.EqualFold(existing.Name, def.Name) {
			return repository.ErrDuplicate
		}
	}
	if def.IsDefault {
		s.clearDefault(def.TenantID, def.ID)
	}
	stored := *def
	stored.Escalations = nil
	s.definitions[def.ID] = stored
	return nil
}

func (s *SlaStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.definitions[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.definitions, id)
	for escID, escalation := range s.escalations {
		if escalation.SlaDefinitionID == id {
			delete(s.escalations, escID)
		}
	}
	return nil
}

func (s *SlaStore) GetByID(ctx context.Context, id string) (*domain.SlaDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.definitions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	def.Escalations = s.ladder(id)
	return &def, nil
}

func (s *SlaStore) GetDefault(ctx context.Context, tenantID string) (*domain.SlaDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, def := range s.definitions {
		if def.TenantID == tenantID && def.IsDefault && def.IsActive {
			def.Escalations = s.ladder(def.ID)
			return &def, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *SlaStore) ListByTenant(ctx context.Context, tenantID string) ([]domain.SlaDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SlaDefinition
	for _, def := range s.definitions {
		if def.TenantID == tenantID {
			def.Escalations = s.ladder(def.ID)
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *SlaStore) CreateEscalation(ctx context.Context, escalation *domain.SlaEscalation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.definitions[escalation.SlaDefinitionID]; !ok {
		return pgx.ErrNoRows
	}
	for _, existing := range s.escalations {
		if existing.SlaDefinitionID == escalation.SlaDefinitionID &&
			existing.EscalationType == escalation.EscalationType &&
			existing.Level == escalation.Level {
			return repository.ErrDuplicate
		}
	}
	escalation.ID = uuid.NewString()
	escalation.CreatedAt = time.Now()
	s.escalations[escalation.ID] = *escalation
	return nil
}

func (s *SlaStore) GetEscalation(ctx context.Context, id string) (*domain.SlaEscalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	escalation, ok := s.escalations[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &escalation, nil
}

func (s *SlaStore) DeleteEscalation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.escalations[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.escalations, id)
	return nil
}

func (s *SlaStore) clearDefault(tenantID, keepID string) {
	for id, def := range s.definitions {
		if def.TenantID == tenantID && id != keepID && def.IsDefault {
			def.IsDefault = false
			s.definitions[id] = def
		}
	}
}

func (s *SlaStore) ladder(definitionID string) []domain.SlaEscalation {
	var out []domain.SlaEscalation
	for _, escalation := range s.escalations {
		if escalation.SlaDefinitionID == definitionID {
			out = append(out, escalation)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ThresholdPercent != out[j].ThresholdPercent {
			return out[i].ThresholdPercent < out[j].ThresholdPercent
		}
		return out[i].Level < out[j].Level
	})
	return out
}

// Ledger implements repository.EscalationLedger.
type Ledger struct {
	mu    sync.Mutex
	fired map[string]time.Time
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{fired: map[string]time.Time{}}
}

func (l *Ledger) MarkFired(ctx context.Context, escalation domain.CrossedEscalation, firedAt time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := repository.LedgerKey("memory", escalation)
	if _, ok := l.fired[key]; ok {
		return false, nil
	}
	l.fired[key] = firedAt
	return true, nil
}

func (l *Ledger) Forget(ctx context.Context, escalation domain.CrossedEscalation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.fired, repository.LedgerKey("memory", escalation))
	return nil
}

var (
	_ repository.TimerRepository         = (*TimerStore)(nil)
	_ repository.TicketRepository        = (*TicketStore)(nil)
	_ repository.WorkEntryRepository     = (*WorkEntryStore)(nil)
	_ repository.TicketHistoryRepository = (*HistoryStore)(nil)
	_ repository.SlaRepository           = (*SlaStore)(nil)
	_ repository.EscalationLedger        = (*Ledger)(nil)
)
