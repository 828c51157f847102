package adjudication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wejrox/dogbot/internal/dogact"
)

// Settings are the voting rules applied to new dog acts.
type Settings struct {
	RequiredVotes int
	VoteTimeout   time.Duration
	// Owners may request a re-vote on an act whose appeal is already spent.
	Owners []int64
}

func (s Settings) isOwner(id dogact.MemberID) bool {
	return slices.Contains(s.Owners, int64(id))
}

// Service is the command surface of the adjudication engine. It owns the set
// of acts currently under adjudication and serializes access to each of them.
type Service struct {
	repo      Repository
	messenger Messenger
	settings  Settings
	logger    *slog.Logger

	mu   sync.Mutex
	live map[int64]*liveAct

	wg sync.WaitGroup
}

type liveAct struct {
	mu  sync.Mutex
	act *dogact.Act
}

func NewService(repo Repository, messenger Messenger, settings Settings, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		messenger: messenger,
		settings:  settings,
		logger:    logger,
		live:      make(map[int64]*liveAct),
	}
}

// Accusation is a report of one member against another.
type Accusation struct {
	GuildID  int64
	Reporter dogact.MemberID
	Target   dogact.MemberID
	Reason   string
}

// Trial is a dog act that has been handed to a session but not yet run.
// Run must be called exactly once; until then the act stays registered as live.
type Trial struct {
	svc     *Service
	entry   *liveAct
	session *Session
	ran     atomic.Bool
}

func (t *Trial) ActID() int64 {
	return t.entry.act.ID
}

// Run adjudicates the act and returns a snapshot of the finalized act.
func (t *Trial) Run(ctx context.Context) (*dogact.Act, error) {
	if !t.ran.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("trial for act %d already ran: %w", t.ActID(), dogact.ErrInvalidState)
	}
	defer t.svc.release(t.ActID())

	runErr := t.session.Run(ctx)

	t.entry.mu.Lock()
	defer t.entry.mu.Unlock()

	// An appeal that reached a verdict is settled even when rendering the
	// outcome failed, so a timed-out re-vote never replaces the prior verdict.
	act := t.entry.act
	if act.Finalized() && act.Prior != nil {
		restored := act.SettleAppeal()
		if err := t.svc.repo.Save(context.WithoutCancel(ctx), act); err != nil {
			return nil, errors.Join(runErr, fmt.Errorf("settle appeal on act %d: %w", act.ID, err))
		}
		if restored {
			t.svc.logger.Info("appeal failed, verdict restored", "act_id", act.ID, "verdict", act.Verdict())
		}
	}
	if runErr != nil {
		return nil, runErr
	}

	t.svc.logger.Info("dog act finalised",
		"act_id", act.ID,
		"guild_id", act.GuildID,
		"verdict", act.Verdict(),
		"timed_out", act.TimedOut,
		"appeal_attempted", act.AppealAttempted,
		"guilty_voters", act.Tally.Voters(dogact.SideYes),
		"not_guilty_voters", act.Tally.Voters(dogact.SideNo),
	)
	return act.Clone(), nil
}

// Accuse creates a new dog act and prepares its trial.
func (s *Service) Accuse(ctx context.Context, a Accusation) (*Trial, error) {
	act, err := dogact.New(a.GuildID, a.Reporter, a.Target, a.Reason, s.settings.RequiredVotes)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, act); err != nil {
		return nil, fmt.Errorf("create act: %w", err)
	}

	entry, err := s.register(act)
	if err != nil {
		return nil, err
	}

	s.logger.Info("dog act reported", "act_id", act.ID, "guild_id", act.GuildID,
		"reporter", act.Reporter, "target", act.Target)
	return &Trial{svc: s, entry: entry, session: newSession(entry, s, "")}, nil
}

// Appeal spends the act's single re-vote and prepares a new trial with a
// cleared tally. Owners can appeal an act whose appeal is already spent.
func (s *Service) Appeal(ctx context.Context, actID int64, requester dogact.MemberID, reason string) (*Trial, error) {
	override := s.settings.isOwner(requester)

	act, err := s.repo.Get(ctx, actID)
	if err != nil {
		return nil, err
	}
	if !act.Finalized() {
		return nil, fmt.Errorf("appeal act %d: voting is still open: %w", actID, dogact.ErrInvalidState)
	}
	if act.AppealAttempted && !override {
		return nil, fmt.Errorf("appeal act %d: %w", actID, dogact.ErrAppealAlreadySpent)
	}

	entry, err := s.register(act)
	if err != nil {
		return nil, err
	}
	respent := act.AppealAttempted

	entry.mu.Lock()
	err = act.BeginAppeal(reason, override)
	if err == nil {
		// The store check guards against appeals racing in other processes.
		// The prior verdict is persisted by the Save below, together with
		// the reset tally.
		err = s.repo.ClaimAppeal(ctx, act.ID, act.AppealReason, override)
	}
	if err == nil {
		act.ResetVoting()
		err = s.repo.Save(ctx, act)
	}
	entry.mu.Unlock()

	if err != nil {
		s.release(act.ID)
		return nil, err
	}

	s.logger.Info("appeal started", "act_id", act.ID, "requester", requester,
		"reason", act.AppealReason, "override", override && respent)
	return &Trial{svc: s, entry: entry, session: newSession(entry, s, "")}, nil
}

// Resume picks up a pending act whose session stopped early, for example
// because rendering failed or the process shut down. It edits the act's
// existing message if it has one. An interrupted appeal keeps its prior
// verdict, so a resumed re-vote that times out still restores it.
func (s *Service) Resume(ctx context.Context, actID int64) (*Trial, error) {
	act, err := s.repo.Get(ctx, actID)
	if err != nil {
		return nil, err
	}
	if act.Finalized() {
		return nil, fmt.Errorf("resume act %d: verdict already reached: %w", actID, dogact.ErrInvalidState)
	}

	entry, err := s.register(act)
	if err != nil {
		return nil, err
	}
	return &Trial{svc: s, entry: entry, session: newSession(entry, s, act.MessageRef)}, nil
}

// Report accuses and adjudicates in one call.
func (s *Service) Report(ctx context.Context, a Accusation) (*dogact.Act, error) {
	trial, err := s.Accuse(ctx, a)
	if err != nil {
		return nil, err
	}
	return trial.Run(ctx)
}

// Revote appeals and adjudicates in one call.
func (s *Service) Revote(ctx context.Context, actID int64, requester dogact.MemberID, reason string) (*dogact.Act, error) {
	trial, err := s.Appeal(ctx, actID, requester, reason)
	if err != nil {
		return nil, err
	}
	return trial.Run(ctx)
}

// Start runs trial in the background. Wait blocks until all started trials end.
func (s *Service) Start(ctx context.Context, trial *Trial) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := trial.Run(ctx); err != nil {
			s.logger.Error("adjudication stopped", "act_id", trial.ActID(), "error", err)
		}
	}()
}

func (s *Service) Wait() {
	s.wg.Wait()
}

// Status is a point-in-time view of a dog act.
type Status struct {
	Act     *dogact.Act
	Verdict dogact.Verdict
	Yes     int
	No      int
	// Text is the status message while pending and the outcome once decided.
	Text string
	// Live reports whether a session is running for the act.
	Live bool
}

// Describe returns the current state of an act, reading a live act under its lock.
func (s *Service) Describe(ctx context.Context, actID int64) (*Status, error) {
	act, live, err := s.snapshot(ctx, actID)
	if err != nil {
		return nil, err
	}

	reporter, target, err := resolveParties(ctx, s.repo, act)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Act:     act,
		Verdict: act.Verdict(),
		Yes:     act.Tally.Count(dogact.SideYes),
		No:      act.Tally.Count(dogact.SideNo),
		Live:    live,
	}
	if status.Verdict == dogact.Pending {
		status.Text = act.StatusText(reporter, target)
	} else {
		status.Text = act.OutcomeText(reporter, target)
	}
	return status, nil
}

// Tally returns the current yes and no counts for an act.
func (s *Service) Tally(ctx context.Context, actID int64) (yes, no int, err error) {
	act, _, err := s.snapshot(ctx, actID)
	if err != nil {
		return 0, 0, err
	}
	return act.Tally.Count(dogact.SideYes), act.Tally.Count(dogact.SideNo), nil
}

// Outcome returns the act's verdict, which is Pending while voting is open.
func (s *Service) Outcome(ctx context.Context, actID int64) (dogact.Verdict, error) {
	act, _, err := s.snapshot(ctx, actID)
	if err != nil {
		return dogact.Pending, err
	}
	return act.Verdict(), nil
}

func (s *Service) History(ctx context.Context, guildID int64, target dogact.MemberID, limit int) ([]*dogact.Act, error) {
	return s.repo.History(ctx, guildID, target, dogact.ClampHistoryLimit(limit))
}

func (s *Service) TopOffenders(ctx context.Context, guildID int64, n int) ([]dogact.Offender, error) {
	if n <= 0 {
		n = dogact.DefaultTopOffenders
	}
	return s.repo.TopOffenders(ctx, guildID, n)
}

func (s *Service) RememberMember(ctx context.Context, id dogact.MemberID, displayName string) error {
	return s.repo.RememberMember(ctx, id, displayName)
}

func (s *Service) DisplayName(ctx context.Context, id dogact.MemberID) (string, error) {
	return s.repo.DisplayName(ctx, id)
}

func (s *Service) snapshot(ctx context.Context, actID int64) (*dogact.Act, bool, error) {
	s.mu.Lock()
	entry, ok := s.live[actID]
	s.mu.Unlock()

	if ok {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		return entry.act.Clone(), true, nil
	}

	act, err := s.repo.Get(ctx, actID)
	if err != nil {
		return nil, false, err
	}
	return act, false, nil
}

func (s *Service) register(act *dogact.Act) (*liveAct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live[act.ID]; ok {
		return nil, fmt.Errorf("act %d is already being adjudicated: %w", act.ID, dogact.ErrInvalidState)
	}
	entry := &liveAct{act: act}
	s.live[act.ID] = entry
	return entry, nil
}

func (s *Service) release(actID int64) {
	s.mu.Lock()
	delete(s.live, actID)
	s.mu.Unlock()
}
