package adjudication

import (
	"context"
	"errors"
	"time"

	"github.com/wejrox/dogbot/internal/dogact"
)

// ErrCollaboratorUnavailable wraps failures from the messenger or the name
// resolver. State committed before the failure stays committed.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

// Choice is one interactive option attached to a status message.
type Choice struct {
	Side  dogact.Side `json:"side"`
	Label string      `json:"label"`
}

// VoteChoices are the options offered while an act is pending.
var VoteChoices = []Choice{
	{Side: dogact.SideYes, Label: "Definitely a dog"},
	{Side: dogact.SideNo, Label: "Not a dog"},
}

// Event is the next thing that happened to a rendered message: either a vote
// or the expiry of the timeout window.
type Event struct {
	Voter    dogact.MemberID
	Side     dogact.Side
	TimedOut bool
}

// Messenger sends and edits interactive messages on the chat platform.
type Messenger interface {
	// Render sends a new message and returns a handle for later edits.
	Render(ctx context.Context, guildID int64, text string, choices []Choice) (string, error)
	// Update edits a message. Nil choices detach interactivity.
	Update(ctx context.Context, ref, text string, choices []Choice) error
	// AwaitNextEvent blocks until a vote arrives on ref or timeout elapses.
	AwaitNextEvent(ctx context.Context, ref string, timeout time.Duration) (Event, error)
}

// NameResolver turns member IDs into display names.
type NameResolver interface {
	DisplayName(ctx context.Context, id dogact.MemberID) (string, error)
}

// Repository persists dog acts and answers history queries.
type Repository interface {
	NameResolver

	// Create stores a new act and assigns its ID and creation time.
	Create(ctx context.Context, act *dogact.Act) error
	Save(ctx context.Context, act *dogact.Act) error
	Get(ctx context.Context, id int64) (*dogact.Act, error)
	// ClaimAppeal atomically flips appeal_attempted from false to true. With
	// override the flag is set regardless of its current value.
	ClaimAppeal(ctx context.Context, id int64, reason string, override bool) error
	History(ctx context.Context, guildID int64, target dogact.MemberID, limit int) ([]*dogact.Act, error)
	TopOffenders(ctx context.Context, guildID int64, n int) ([]dogact.Offender, error)
	RememberMember(ctx context.Context, id dogact.MemberID, displayName string) error
}
