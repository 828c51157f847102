package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wejrox/dogbot/internal/adjudication"
	"github.com/wejrox/dogbot/internal/dogact"
)

const (
	defaultQueueSize = 64
	// Closed messages stay readable this long after their last edit.
	defaultRetention = 15 * time.Minute
)

var (
	ErrUnknownMessage    = errors.New("unknown message")
	ErrInteractionClosed = errors.New("message no longer accepts votes")
	ErrQueueFull         = errors.New("too many pending votes on message")
	ErrInvalidChoice     = errors.New("choice not offered on message")
)

// Message is what a chat client sees when it polls a rendered message.
type Message struct {
	Ref       string                `json:"ref"`
	GuildID   int64                 `json:"guild_id"`
	Text      string                `json:"text"`
	Choices   []adjudication.Choice `json:"choices"`
	Closed    bool                  `json:"closed"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

type message struct {
	Message
	events chan adjudication.Event
}

// Board is an in-process stand-in for the chat platform's interactive
// messages. Clients poll messages and submit button clicks over HTTP; the
// adjudication session consumes the clicks as events.
type Board struct {
	mu        sync.Mutex
	messages  map[string]*message
	queueSize int
	retention time.Duration
	clock     func() time.Time
}

func NewBoard() *Board {
	return &Board{
		messages:  make(map[string]*message),
		queueSize: defaultQueueSize,
		retention: defaultRetention,
		clock:     time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (b *Board) WithClock(clock func() time.Time) *Board {
	b.clock = clock
	return b
}

// WithQueueSize sets how many unconsumed clicks a message buffers.
func (b *Board) WithQueueSize(n int) *Board {
	b.queueSize = n
	return b
}

// WithRetention sets how long a closed message is kept before it is evicted.
// Zero keeps closed messages forever.
func (b *Board) WithRetention(d time.Duration) *Board {
	b.retention = d
	return b
}

// prune drops closed messages whose retention has passed. b.mu must be held.
func (b *Board) prune(now time.Time) {
	if b.retention <= 0 {
		return
	}
	cutoff := now.Add(-b.retention)
	for ref, msg := range b.messages {
		if msg.Closed && msg.UpdatedAt.Before(cutoff) {
			delete(b.messages, ref)
		}
	}
}

func (b *Board) Render(_ context.Context, guildID int64, text string, choices []adjudication.Choice) (string, error) {
	now := b.clock()
	msg := &message{
		Message: Message{
			Ref:       uuid.NewString(),
			GuildID:   guildID,
			Text:      text,
			Choices:   slices.Clone(choices),
			Closed:    len(choices) == 0,
			CreatedAt: now,
			UpdatedAt: now,
		},
		events: make(chan adjudication.Event, b.queueSize),
	}

	b.mu.Lock()
	b.prune(now)
	b.messages[msg.Ref] = msg
	b.mu.Unlock()

	return msg.Ref, nil
}

func (b *Board) Update(_ context.Context, ref, text string, choices []adjudication.Choice) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg, ok := b.messages[ref]
	if !ok {
		return fmt.Errorf("update %s: %w", ref, ErrUnknownMessage)
	}
	msg.Text = text
	msg.Choices = slices.Clone(choices)
	msg.Closed = len(choices) == 0
	msg.UpdatedAt = b.clock()
	b.prune(msg.UpdatedAt)
	return nil
}

// AwaitNextEvent returns the next click on ref, or a timed-out event once
// timeout has passed. A click taken off the queue after the deadline loses
// to the timeout.
func (b *Board) AwaitNextEvent(ctx context.Context, ref string, timeout time.Duration) (adjudication.Event, error) {
	b.mu.Lock()
	msg, ok := b.messages[ref]
	b.mu.Unlock()
	if !ok {
		return adjudication.Event{}, fmt.Errorf("await %s: %w", ref, ErrUnknownMessage)
	}

	deadline := b.clock().Add(timeout)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return adjudication.Event{}, ctx.Err()
	case <-timer.C:
		return adjudication.Event{TimedOut: true}, nil
	case ev := <-msg.events:
		if b.clock().After(deadline) {
			return adjudication.Event{TimedOut: true}, nil
		}
		return ev, nil
	}
}

// Submit records voter clicking side on ref.
func (b *Board) Submit(ref string, voter dogact.MemberID, side dogact.Side) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg, ok := b.messages[ref]
	if !ok {
		return fmt.Errorf("submit to %s: %w", ref, ErrUnknownMessage)
	}
	if msg.Closed {
		return fmt.Errorf("submit to %s: %w", ref, ErrInteractionClosed)
	}
	if !slices.ContainsFunc(msg.Choices, func(c adjudication.Choice) bool { return c.Side == side }) {
		return fmt.Errorf("submit %s to %s: %w", side, ref, ErrInvalidChoice)
	}

	select {
	case msg.events <- adjudication.Event{Voter: voter, Side: side}:
		return nil
	default:
		return fmt.Errorf("submit to %s: %w", ref, ErrQueueFull)
	}
}

// Message returns a snapshot of the message with ref.
func (b *Board) Message(ref string) (Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg, ok := b.messages[ref]
	if !ok {
		return Message{}, fmt.Errorf("message %s: %w", ref, ErrUnknownMessage)
	}
	snapshot := msg.Message
	snapshot.Choices = slices.Clone(msg.Choices)
	return snapshot, nil
}
