package database

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wejrox/dogbot/internal/dogact"
)

// actStore is what both Store and MemoryStore provide.
type actStore interface {
	Create(ctx context.Context, act *dogact.Act) error
	Save(ctx context.Context, act *dogact.Act) error
	Get(ctx context.Context, id int64) (*dogact.Act, error)
	ClaimAppeal(ctx context.Context, id int64, reason string, override bool) error
	History(ctx context.Context, guildID int64, target dogact.MemberID, limit int) ([]*dogact.Act, error)
	TopOffenders(ctx context.Context, guildID int64, n int) ([]dogact.Offender, error)
	RememberMember(ctx context.Context, id dogact.MemberID, displayName string) error
	DisplayName(ctx context.Context, id dogact.MemberID) (string, error)
}

const guild = int64(777)

func runStoreSuite(t *testing.T, newStore func(t *testing.T) actStore) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("SaveReplacesVotes", func(t *testing.T) { testSaveReplacesVotes(t, newStore(t)) })
	t.Run("SaveKeepsPriorVerdict", func(t *testing.T) { testSaveKeepsPriorVerdict(t, newStore(t)) })
	t.Run("ClaimAppealOnce", func(t *testing.T) { testClaimAppealOnce(t, newStore(t)) })
	t.Run("ClaimAppealConcurrent", func(t *testing.T) { testClaimAppealConcurrent(t, newStore(t)) })
	t.Run("HistoryLimits", func(t *testing.T) { testHistoryLimits(t, newStore(t)) })
	t.Run("TopOffenders", func(t *testing.T) { testTopOffenders(t, newStore(t)) })
	t.Run("Members", func(t *testing.T) { testMembers(t, newStore(t)) })
}

func createAct(t *testing.T, store actStore, target dogact.MemberID, votes map[dogact.MemberID]dogact.Side) *dogact.Act {
	t.Helper()
	ctx := context.Background()

	act, err := dogact.New(guild, 1, target, "left the voice channel mid-raid", 2)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, act))

	if len(votes) > 0 {
		for voter, side := range votes {
			act.Tally.Cast(voter, side)
		}
		require.NoError(t, store.Save(ctx, act))
	}
	return act
}

func guiltyVotes() map[dogact.MemberID]dogact.Side {
	return map[dogact.MemberID]dogact.Side{10: dogact.SideYes, 11: dogact.SideYes}
}

func testCreateAndGet(t *testing.T, store actStore) {
	ctx := context.Background()

	first := createAct(t, store, 2, nil)
	second := createAct(t, store, 2, nil)
	assert.Greater(t, second.ID, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, guild, got.GuildID)
	assert.Equal(t, dogact.MemberID(1), got.Reporter)
	assert.Equal(t, dogact.MemberID(2), got.Target)
	assert.Equal(t, "left the voice channel mid-raid", got.Allegation)
	assert.Equal(t, 2, got.RequiredVotes)
	assert.Equal(t, dogact.Pending, got.Verdict())

	_, err = store.Get(ctx, 9999)
	assert.ErrorIs(t, err, dogact.ErrNotFound)
}

func testSaveReplacesVotes(t *testing.T, store actStore) {
	ctx := context.Background()
	act := createAct(t, store, 2, map[dogact.MemberID]dogact.Side{10: dogact.SideYes, 11: dogact.SideNo})

	act.Tally.Cast(10, dogact.SideNo)
	act.MessageRef = "msg-1"
	require.NoError(t, store.Save(ctx, act))

	got, err := store.Get(ctx, act.ID)
	require.NoError(t, err)
	assert.Equal(t, []dogact.MemberID{10, 11}, got.Tally.Voters(dogact.SideNo))
	assert.Empty(t, got.Tally.Voters(dogact.SideYes))
	assert.Equal(t, dogact.Innocent, got.Verdict())
	assert.Equal(t, "msg-1", got.MessageRef)

	got.ResetVoting()
	require.NoError(t, store.Save(ctx, got))

	cleared, err := store.Get(ctx, act.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cleared.Tally.Count(dogact.SideNo))
	assert.Equal(t, dogact.Pending, cleared.Verdict())
}

func testSaveKeepsPriorVerdict(t *testing.T, store actStore) {
	ctx := context.Background()
	act := createAct(t, store, 2, map[dogact.MemberID]dogact.Side{10: dogact.SideYes, 11: dogact.SideYes, 12: dogact.SideNo})

	require.NoError(t, act.BeginAppeal("wrong dog", false))
	act.ResetVoting()
	require.NoError(t, store.Save(ctx, act))

	got, err := store.Get(ctx, act.ID)
	require.NoError(t, err)
	assert.Equal(t, dogact.Pending, got.Verdict())
	require.NotNil(t, got.Prior)
	assert.False(t, got.Prior.TimedOut)
	assert.Equal(t, []dogact.MemberID{10, 11}, got.Prior.Tally.Voters(dogact.SideYes))
	assert.Equal(t, []dogact.MemberID{12}, got.Prior.Tally.Voters(dogact.SideNo))

	require.NoError(t, got.TimeOut())
	require.True(t, got.SettleAppeal())
	require.NoError(t, store.Save(ctx, got))

	settled, err := store.Get(ctx, act.ID)
	require.NoError(t, err)
	assert.Nil(t, settled.Prior)
	assert.Equal(t, dogact.Guilty, settled.Verdict())
	assert.True(t, settled.AppealAttempted)
}

func testClaimAppealOnce(t *testing.T, store actStore) {
	ctx := context.Background()
	act := createAct(t, store, 2, guiltyVotes())

	require.NoError(t, store.ClaimAppeal(ctx, act.ID, "framed", false))
	assert.ErrorIs(t, store.ClaimAppeal(ctx, act.ID, "framed again", false), dogact.ErrAppealAlreadySpent)
	require.NoError(t, store.ClaimAppeal(ctx, act.ID, "owner", true))

	got, err := store.Get(ctx, act.ID)
	require.NoError(t, err)
	assert.True(t, got.AppealAttempted)
	assert.Equal(t, "owner", got.AppealReason)

	assert.ErrorIs(t, store.ClaimAppeal(ctx, 9999, "", false), dogact.ErrNotFound)
}

func testClaimAppealConcurrent(t *testing.T, store actStore) {
	ctx := context.Background()
	act := createAct(t, store, 2, guiltyVotes())

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.ClaimAppeal(ctx, act.ID, "me too", false); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
}

func testHistoryLimits(t *testing.T, store actStore) {
	ctx := context.Background()

	var few []int64
	for range 5 {
		few = append(few, createAct(t, store, 3, nil).ID)
	}
	for range 40 {
		createAct(t, store, 4, nil)
	}
	// Another guild must not leak in.
	other, err := dogact.New(guild+1, 1, 3, "elsewhere", 2)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, other))

	acts, err := store.History(ctx, guild, 3, 50)
	require.NoError(t, err)
	require.Len(t, acts, 5)
	for i, act := range acts {
		assert.Equal(t, few[len(few)-1-i], act.ID, "newest first")
	}

	acts, err = store.History(ctx, guild, 4, 30)
	require.NoError(t, err)
	assert.Len(t, acts, 30)

	acts, err = store.History(ctx, guild, 4, 100)
	require.NoError(t, err)
	assert.Len(t, acts, dogact.MaxHistory)

	acts, err = store.History(ctx, guild, 4, 0)
	require.NoError(t, err)
	assert.Len(t, acts, dogact.DefaultHistory)
}

func testTopOffenders(t *testing.T, store actStore) {
	ctx := context.Background()

	for range 5 {
		createAct(t, store, 50, guiltyVotes())
	}
	for range 3 {
		createAct(t, store, 30, guiltyVotes())
		createAct(t, store, 31, guiltyVotes())
	}
	// Innocent and pending acts do not count.
	createAct(t, store, 99, map[dogact.MemberID]dogact.Side{10: dogact.SideNo, 11: dogact.SideNo})
	createAct(t, store, 99, nil)

	offenders, err := store.TopOffenders(ctx, guild, 3)
	require.NoError(t, err)
	require.Len(t, offenders, 3)

	assert.Equal(t, dogact.MemberID(50), offenders[0].Target)
	assert.Equal(t, 5, offenders[0].GuiltyCount)
	assert.ElementsMatch(t, []dogact.MemberID{30, 31}, []dogact.MemberID{offenders[1].Target, offenders[2].Target})
	assert.Equal(t, 3, offenders[1].GuiltyCount)
	assert.Equal(t, 3, offenders[2].GuiltyCount)

	offenders, err = store.TopOffenders(ctx, guild, 10)
	require.NoError(t, err)
	for _, o := range offenders {
		assert.NotEqual(t, dogact.MemberID(99), o.Target)
	}
}

func testMembers(t *testing.T, store actStore) {
	ctx := context.Background()

	_, err := store.DisplayName(ctx, 5)
	assert.ErrorIs(t, err, ErrUnknownMember)

	require.NoError(t, store.RememberMember(ctx, 5, "rex"))
	require.NoError(t, store.RememberMember(ctx, 5, "rex the dog"))

	name, err := store.DisplayName(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "rex the dog", name)

	// Voting must not wipe a known name.
	act := createAct(t, store, 6, map[dogact.MemberID]dogact.Side{5: dogact.SideYes})
	require.NotZero(t, act.ID)
	name, err = store.DisplayName(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "rex the dog", name)
}
