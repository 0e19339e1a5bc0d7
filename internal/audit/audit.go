package audit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

// Entry is one committed status change.
type Entry struct {
	ID           int64            `json:"id"`
	Entity       string           `json:"entity"`
	EntityID     string           `json:"entity_id"`
	RestaurantID string           `json:"restaurant_id"`
	From         string           `json:"from"`
	To           string           `json:"to"`
	ActorID      string           `json:"actor_id,omitempty"`
	ActorRole    fulfillment.Role `json:"actor_role"`
	Timestamp    time.Time        `json:"timestamp"`
}

// FromChange builds an Entry from a History record.
func FromChange(entity, entityID, restaurantID, actorID string, c fulfillment.StatusChange) Entry {
	return Entry{
		Entity:       entity,
		EntityID:     entityID,
		RestaurantID: restaurantID,
		From:         c.From,
		To:           c.To,
		ActorID:      actorID,
		ActorRole:    c.Actor,
		Timestamp:    c.At,
	}
}

// ListParams holds the query filters for listing transitions.
type ListParams struct {
	RestaurantID string
	Entity       string
	EntityID     string
	Limit        int
	Offset       int
}

func (p *ListParams) normalize() {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

func (p ListParams) matches(e Entry) bool {
	return (p.RestaurantID == "" || e.RestaurantID == p.RestaurantID) &&
		(p.Entity == "" || e.Entity == p.Entity) &&
		(p.EntityID == "" || e.EntityID == p.EntityID)
}

// Log records transitions and lists them newest first.
type Log interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, params ListParams) ([]Entry, int, error)
}

// Store provides operations on the transition_log table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new audit Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record inserts e.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transition_log (entity, entity_id, restaurant_id, from_status, to_status, actor_id, actor_role, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.Entity, e.EntityID, e.RestaurantID, e.From, e.To, e.ActorID, string(e.ActorRole), e.Timestamp,
	)
	return err
}

// List returns entries matching the given filters.
func (s *Store) List(ctx context.Context, params ListParams) ([]Entry, int, error) {
	params.normalize()

	where := ` WHERE 1=1`
	args := []interface{}{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where += ` AND ` + column + ` = $` + strconv.Itoa(len(args))
	}
	add("restaurant_id", params.RestaurantID)
	add("entity", params.Entity)
	add("entity_id", params.EntityID)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transition_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, entity, entity_id, restaurant_id, from_status, to_status, actor_id, actor_role, timestamp
		FROM transition_log` + where +
		` ORDER BY timestamp DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1) +
		` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var role string
		if err := rows.Scan(&e.ID, &e.Entity, &e.EntityID, &e.RestaurantID, &e.From, &e.To, &e.ActorID, &role, &e.Timestamp); err != nil {
			return nil, 0, err
		}
		e.ActorRole = fulfillment.Role(role)
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// Memory keeps the most recent transitions in process, for runs without a
// database.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
	nextID  int64
}

// NewMemory keeps at most limit entries; older ones are dropped.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = 1000
	}
	return &Memory{limit: limit}
}

func (m *Memory) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	e.ID = m.nextID
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.limit; over > 0 {
		m.entries = append([]Entry(nil), m.entries[over:]...)
	}
	return nil
}

func (m *Memory) List(_ context.Context, params ListParams) ([]Entry, int, error) {
	params.normalize()

	m.mu.Lock()
	defer m.mu.Unlock()

	matched := []Entry{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		if params.matches(m.entries[i]) {
			matched = append(matched, m.entries[i])
		}
	}
	total := len(matched)
	if params.Offset >= total {
		return []Entry{}, total, nil
	}
	end := params.Offset + params.Limit
	if end > total {
		end = total
	}
	return matched[params.Offset:end], total, nil
}
