package adjudication

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wejrox/dogbot/internal/database"
	"github.com/wejrox/dogbot/internal/dogact"
)

const (
	testGuild    = int64(1)
	reporterID   = dogact.MemberID(100)
	targetID     = dogact.MemberID(200)
	ownerID      = dogact.MemberID(900)
	anotherGuest = dogact.MemberID(300)
)

// fakeMessenger hands out scripted events. Once a script runs dry every
// further wait times out, unless the script was left open with live().
type fakeMessenger struct {
	mu      sync.Mutex
	events  chan Event
	nextRef int

	renders  int
	updates  int
	texts    map[string]string
	closed   map[string]bool
	failNext error
	// failClose fails the next Update that detaches the vote buttons.
	failClose error
}

func newFakeMessenger() *fakeMessenger {
	m := &fakeMessenger{texts: make(map[string]string), closed: make(map[string]bool)}
	m.script()
	return m
}

// script replaces pending events with events, after which waits time out.
func (m *fakeMessenger) script(events ...Event) {
	ch := make(chan Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)

	m.mu.Lock()
	m.events = ch
	m.mu.Unlock()
}

// live leaves the event stream open so a test can push votes as it goes.
func (m *fakeMessenger) live() chan<- Event {
	ch := make(chan Event, 16)
	m.mu.Lock()
	m.events = ch
	m.mu.Unlock()
	return ch
}

func (m *fakeMessenger) failWith(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}

func (m *fakeMessenger) failClosingWith(err error) {
	m.mu.Lock()
	m.failClose = err
	m.mu.Unlock()
}

func (m *fakeMessenger) takeFailure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *fakeMessenger) Render(_ context.Context, _ int64, text string, _ []Choice) (string, error) {
	if err := m.takeFailure(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRef++
	m.renders++
	ref := fmt.Sprintf("msg-%d", m.nextRef)
	m.texts[ref] = text
	return ref, nil
}

func (m *fakeMessenger) Update(_ context.Context, ref, text string, choices []Choice) error {
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if choices == nil && m.failClose != nil {
		err := m.failClose
		m.failClose = nil
		return err
	}
	if _, ok := m.texts[ref]; !ok {
		return fmt.Errorf("unknown ref %s", ref)
	}
	m.updates++
	m.texts[ref] = text
	m.closed[ref] = choices == nil
	return nil
}

func (m *fakeMessenger) AwaitNextEvent(ctx context.Context, _ string, _ time.Duration) (Event, error) {
	m.mu.Lock()
	ch := m.events
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case ev, ok := <-ch:
		if !ok {
			return Event{TimedOut: true}, nil
		}
		return ev, nil
	}
}

func (m *fakeMessenger) text(ref string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.texts[ref]
}

func (m *fakeMessenger) isClosed(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed[ref]
}

func vote(voter dogact.MemberID, side dogact.Side) Event {
	return Event{Voter: voter, Side: side}
}

func newTestService(t *testing.T, m Messenger) (*Service, *database.MemoryStore) {
	t.Helper()
	store := database.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.RememberMember(ctx, reporterID, "alice"))
	require.NoError(t, store.RememberMember(ctx, targetID, "bob"))

	svc := NewService(store, m, Settings{
		RequiredVotes: 2,
		VoteTimeout:   time.Minute,
		Owners:        []int64{int64(ownerID)},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, store
}

func accusation() Accusation {
	return Accusation{GuildID: testGuild, Reporter: reporterID, Target: targetID, Reason: "ate my lunch"}
}
