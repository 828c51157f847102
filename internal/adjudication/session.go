package adjudication

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wejrox/dogbot/internal/dogact"
)

// Session drives one dog act through voting until it reaches a verdict.
// Every mutation of the act happens under mu, which is shared with any
// reader of the same act.
type Session struct {
	act       *dogact.Act
	mu        *sync.Mutex
	messenger Messenger
	names     NameResolver
	repo      Repository
	timeout   time.Duration
	logger    *slog.Logger

	// ref is the message this session edits. Empty until the first render.
	ref string
}

func newSession(entry *liveAct, s *Service, ref string) *Session {
	return &Session{
		act:       entry.act,
		mu:        &entry.mu,
		messenger: s.messenger,
		names:     s.repo,
		repo:      s.repo,
		timeout:   s.settings.VoteTimeout,
		logger:    s.logger.With("act_id", entry.act.ID),
		ref:       ref,
	}
}

// Run renders the act, waits for votes or the timeout, and repeats until the
// act is no longer pending. The final outcome replaces the voting message.
func (s *Session) Run(ctx context.Context) error {
	reporter, target, err := resolveParties(ctx, s.names, s.act)
	if err != nil {
		return err
	}

	for {
		s.mu.Lock()
		finalized := s.act.Finalized()
		text := s.act.StatusText(reporter, target)
		guildID := s.act.GuildID
		s.mu.Unlock()

		if finalized {
			break
		}

		if err := s.render(ctx, guildID, text); err != nil {
			return err
		}

		event, err := s.messenger.AwaitNextEvent(ctx, s.ref, s.timeout)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: await event on %s: %w", ErrCollaboratorUnavailable, s.ref, err)
		}

		if err := s.apply(ctx, event); err != nil {
			return err
		}
	}

	// Nothing was ever rendered, so there is no message to finish.
	if s.ref == "" {
		return nil
	}

	s.mu.Lock()
	outcome := s.act.OutcomeText(reporter, target)
	s.mu.Unlock()

	if err := s.messenger.Update(ctx, s.ref, outcome, nil); err != nil {
		return fmt.Errorf("%w: render outcome: %w", ErrCollaboratorUnavailable, err)
	}
	return nil
}

func (s *Session) render(ctx context.Context, guildID int64, text string) error {
	if s.ref != "" {
		if err := s.messenger.Update(ctx, s.ref, text, VoteChoices); err != nil {
			return fmt.Errorf("%w: update status: %w", ErrCollaboratorUnavailable, err)
		}
		return nil
	}

	ref, err := s.messenger.Render(ctx, guildID, text, VoteChoices)
	if err != nil {
		return fmt.Errorf("%w: render status: %w", ErrCollaboratorUnavailable, err)
	}
	s.ref = ref

	s.mu.Lock()
	defer s.mu.Unlock()
	s.act.MessageRef = ref
	if err := s.repo.Save(ctx, s.act); err != nil {
		return fmt.Errorf("save message ref: %w", err)
	}
	return nil
}

func (s *Session) apply(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if event.TimedOut {
		err = s.act.TimeOut()
	} else {
		err = s.act.RecordVote(event.Voter, event.Side)
	}
	if err != nil {
		// The messenger handed us something we cannot apply. Drop it and keep voting.
		s.logger.Warn("rejected event", "voter", event.Voter, "side", event.Side, "timed_out", event.TimedOut, "error", err)
		return nil
	}

	if err := s.repo.Save(ctx, s.act); err != nil {
		return fmt.Errorf("save act: %w", err)
	}

	if event.TimedOut {
		s.logger.Info("voting timed out")
	} else {
		s.logger.Debug("vote recorded", "voter", event.Voter, "side", event.Side,
			"yes", s.act.Tally.Count(dogact.SideYes), "no", s.act.Tally.Count(dogact.SideNo))
	}
	return nil
}

func resolveParties(ctx context.Context, names NameResolver, act *dogact.Act) (string, string, error) {
	reporter, err := names.DisplayName(ctx, act.Reporter)
	if err != nil {
		return "", "", fmt.Errorf("%w: resolve reporter %d: %w", ErrCollaboratorUnavailable, act.Reporter, err)
	}
	target, err := names.DisplayName(ctx, act.Target)
	if err != nil {
		return "", "", fmt.Errorf("%w: resolve target %d: %w", ErrCollaboratorUnavailable, act.Target, err)
	}
	return reporter, target, nil
}
