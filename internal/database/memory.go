package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wejrox/dogbot/internal/dogact"
)

// MemoryStore is an in-process store with the same semantics as Store. It
// backs DOGBOT_STORAGE=memory and tests.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	acts    map[int64]*dogact.Act
	members map[dogact.MemberID]string
	clock   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		acts:    make(map[int64]*dogact.Act),
		members: make(map[dogact.MemberID]string),
		clock:   time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (m *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	m.clock = clock
	return m
}

func (m *MemoryStore) Create(_ context.Context, act *dogact.Act) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	act.ID = m.nextID
	act.CreatedAt = m.clock().UTC()
	m.acts[act.ID] = act.Clone()
	return nil
}

func (m *MemoryStore) Save(_ context.Context, act *dogact.Act) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.acts[act.ID]
	if !ok {
		return fmt.Errorf("save dog act %d: %w", act.ID, dogact.ErrNotFound)
	}
	saved := act.Clone()
	// Identity fields are immutable once created.
	saved.CreatedAt = stored.CreatedAt
	m.acts[act.ID] = saved
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (*dogact.Act, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	act, ok := m.acts[id]
	if !ok {
		return nil, fmt.Errorf("dog act %d: %w", id, dogact.ErrNotFound)
	}
	return act.Clone(), nil
}

func (m *MemoryStore) ClaimAppeal(_ context.Context, id int64, reason string, override bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	act, ok := m.acts[id]
	if !ok {
		return fmt.Errorf("dog act %d: %w", id, dogact.ErrNotFound)
	}
	if act.AppealAttempted && !override {
		return fmt.Errorf("claim appeal on %d: %w", id, dogact.ErrAppealAlreadySpent)
	}
	act.AppealAttempted = true
	act.AppealReason = reason
	return nil
}

func (m *MemoryStore) History(_ context.Context, guildID int64, target dogact.MemberID, limit int) ([]*dogact.Act, error) {
	limit = dogact.ClampHistoryLimit(limit)

	m.mu.Lock()
	defer m.mu.Unlock()

	var acts []*dogact.Act
	for _, act := range m.acts {
		if act.GuildID == guildID && act.Target == target {
			acts = append(acts, act.Clone())
		}
	}
	sort.Slice(acts, func(i, j int) bool { return acts[i].ID > acts[j].ID })

	if len(acts) > limit {
		acts = acts[:limit]
	}
	return acts, nil
}

func (m *MemoryStore) TopOffenders(_ context.Context, guildID int64, n int) ([]dogact.Offender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byTarget := make(map[dogact.MemberID]*dogact.Offender)
	for _, act := range m.acts {
		if act.GuildID != guildID || act.Verdict() != dogact.Guilty {
			continue
		}
		o, ok := byTarget[act.Target]
		if !ok {
			o = &dogact.Offender{Target: act.Target}
			byTarget[act.Target] = o
		}
		o.GuiltyCount++
		if act.CreatedAt.After(o.LastOffense) {
			o.LastOffense = act.CreatedAt
		}
	}

	offenders := make([]dogact.Offender, 0, len(byTarget))
	for _, o := range byTarget {
		offenders = append(offenders, *o)
	}
	sort.Slice(offenders, func(i, j int) bool {
		a, b := offenders[i], offenders[j]
		if a.GuiltyCount != b.GuiltyCount {
			return a.GuiltyCount > b.GuiltyCount
		}
		if !a.LastOffense.Equal(b.LastOffense) {
			return a.LastOffense.After(b.LastOffense)
		}
		return a.Target < b.Target
	})

	if n > 0 && len(offenders) > n {
		offenders = offenders[:n]
	}
	return offenders, nil
}

func (m *MemoryStore) RememberMember(_ context.Context, id dogact.MemberID, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[id] = displayName
	return nil
}

func (m *MemoryStore) DisplayName(_ context.Context, id dogact.MemberID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name, ok := m.members[id]
	if !ok || name == "" {
		return "", fmt.Errorf("member %d: %w", id, ErrUnknownMember)
	}
	return name, nil
}

// Health mirrors Service.Health for the in-memory backend.
func (m *MemoryStore) Health() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]string{
		"status":  "up",
		"message": "in-memory store",
		"acts":    fmt.Sprintf("%d", len(m.acts)),
	}
}
