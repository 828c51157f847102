package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wejrox/dogbot/internal/dogact"
	"github.com/wejrox/dogbot/internal/models"
)

var ErrUnknownMember = errors.New("unknown member")

// Store keeps dog acts in Postgres using the normalized member/vote tables.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, act *dogact.Act) error {
	row := toModel(act)
	row.ID = 0

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureMembers(tx, act.Reporter, act.Target); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("create dog act: %w", err)
	}

	act.ID = row.ID
	act.CreatedAt = row.CreatedAt
	return nil
}

// Save writes the act's mutable fields and replaces its votes.
func (s *Store) Save(ctx context.Context, act *dogact.Act) error {
	yes := act.Tally.Voters(dogact.SideYes)
	no := act.Tally.Voters(dogact.SideNo)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Map updates so false and empty values are written too.
		res := tx.Model(&models.DogAct{}).Where("id = ?", act.ID).Updates(map[string]any{
			"message_ref":      act.MessageRef,
			"timed_out":        act.TimedOut,
			"found_guilty":     act.Verdict() == dogact.Guilty,
			"appeal_attempted": act.AppealAttempted,
			"appeal_reason":    act.AppealReason,
			"appeal_open":      act.Prior != nil,
			"prior_timed_out":  act.Prior != nil && act.Prior.TimedOut,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return dogact.ErrNotFound
		}

		if err := tx.Where("dog_act_id = ?", act.ID).Delete(&models.YesVote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("dog_act_id = ?", act.ID).Delete(&models.NoVote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("dog_act_id = ?", act.ID).Delete(&models.PriorVote{}).Error; err != nil {
			return err
		}

		if err := ensureMembers(tx, append(append([]dogact.MemberID{}, yes...), no...)...); err != nil {
			return err
		}

		if prior := priorVoteRows(act); len(prior) > 0 {
			if err := tx.Omit(clause.Associations).Create(&prior).Error; err != nil {
				return err
			}
		}

		if len(yes) > 0 {
			rows := make([]models.YesVote, 0, len(yes))
			for _, id := range yes {
				rows = append(rows, models.YesVote{DogActID: act.ID, MemberID: int64(id)})
			}
			if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
				return err
			}
		}
		if len(no) > 0 {
			rows := make([]models.NoVote, 0, len(no))
			for _, id := range no {
				rows = append(rows, models.NoVote{DogActID: act.ID, MemberID: int64(id)})
			}
			if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save dog act %d: %w", act.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (*dogact.Act, error) {
	var row models.DogAct
	err := s.db.WithContext(ctx).Preload("YesVotes").Preload("NoVotes").Preload("PriorVotes").First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("dog act %d: %w", id, dogact.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get dog act %d: %w", id, err)
	}
	return fromModel(&row), nil
}

// ClaimAppeal flips appeal_attempted in a single conditional update so two
// concurrent requests cannot both succeed.
func (s *Store) ClaimAppeal(ctx context.Context, id int64, reason string, override bool) error {
	q := s.db.WithContext(ctx).Model(&models.DogAct{}).Where("id = ?", id)
	if !override {
		q = q.Where("appeal_attempted = ?", false)
	}

	res := q.Updates(map[string]any{
		"appeal_attempted": true,
		"appeal_reason":    reason,
	})
	if res.Error != nil {
		return fmt.Errorf("claim appeal on %d: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Nothing matched: either the act is missing or the appeal was spent.
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.DogAct{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("claim appeal on %d: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("dog act %d: %w", id, dogact.ErrNotFound)
	}
	return fmt.Errorf("claim appeal on %d: %w", id, dogact.ErrAppealAlreadySpent)
}

// History returns the guild's acts against target, newest first.
func (s *Store) History(ctx context.Context, guildID int64, target dogact.MemberID, limit int) ([]*dogact.Act, error) {
	limit = dogact.ClampHistoryLimit(limit)

	var rows []models.DogAct
	err := s.db.WithContext(ctx).
		Preload("YesVotes").
		Preload("NoVotes").
		Preload("PriorVotes").
		Where("guild_id = ? AND target_id = ?", guildID, int64(target)).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("dog act history: %w", err)
	}

	acts := make([]*dogact.Act, 0, len(rows))
	for i := range rows {
		acts = append(acts, fromModel(&rows[i]))
	}
	return acts, nil
}

// TopOffenders counts guilty verdicts per target in the guild.
func (s *Store) TopOffenders(ctx context.Context, guildID int64, n int) ([]dogact.Offender, error) {
	var rows []struct {
		TargetID    int64
		GuiltyCount int
		LastOffense time.Time
	}

	err := s.db.WithContext(ctx).
		Model(&models.DogAct{}).
		Select("target_id, count(*) AS guilty_count, max(created_at) AS last_offense").
		Where("guild_id = ? AND found_guilty = ?", guildID, true).
		Group("target_id").
		Order("guilty_count desc, last_offense desc, target_id asc").
		Limit(n).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top offenders: %w", err)
	}

	offenders := make([]dogact.Offender, 0, len(rows))
	for _, r := range rows {
		offenders = append(offenders, dogact.Offender{
			Target:      dogact.MemberID(r.TargetID),
			GuiltyCount: r.GuiltyCount,
			LastOffense: r.LastOffense,
		})
	}
	return offenders, nil
}

func (s *Store) RememberMember(ctx context.Context, id dogact.MemberID, displayName string) error {
	member := models.Member{ID: int64(id), DisplayName: displayName}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "updated_at"}),
	}).Create(&member).Error
	if err != nil {
		return fmt.Errorf("remember member %d: %w", id, err)
	}
	return nil
}

func (s *Store) DisplayName(ctx context.Context, id dogact.MemberID) (string, error) {
	var member models.Member
	err := s.db.WithContext(ctx).First(&member, int64(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && member.DisplayName == "") {
		return "", fmt.Errorf("member %d: %w", id, ErrUnknownMember)
	}
	if err != nil {
		return "", fmt.Errorf("lookup member %d: %w", id, err)
	}
	return member.DisplayName, nil
}

// ensureMembers makes sure vote and act rows have a member to point at
// without touching names that are already known.
func ensureMembers(tx *gorm.DB, ids ...dogact.MemberID) error {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[dogact.MemberID]bool, len(ids))
	members := make([]models.Member, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, models.Member{ID: int64(id)})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
}

func toModel(act *dogact.Act) models.DogAct {
	return models.DogAct{
		ID:              act.ID,
		MessageRef:      act.MessageRef,
		GuildID:         act.GuildID,
		ReporterID:      int64(act.Reporter),
		TargetID:        int64(act.Target),
		Allegation:      act.Allegation,
		RequiredVotes:   act.RequiredVotes,
		TimedOut:        act.TimedOut,
		FoundGuilty:     act.Verdict() == dogact.Guilty,
		AppealAttempted: act.AppealAttempted,
		AppealReason:    act.AppealReason,
		AppealOpen:      act.Prior != nil,
		PriorTimedOut:   act.Prior != nil && act.Prior.TimedOut,
	}
}

// priorVoteRows flattens the replaced verdict's tally. Prior voters were
// already written as members when that verdict was saved.
func priorVoteRows(act *dogact.Act) []models.PriorVote {
	if act.Prior == nil {
		return nil
	}
	var rows []models.PriorVote
	for _, side := range []dogact.Side{dogact.SideYes, dogact.SideNo} {
		for _, id := range act.Prior.Tally.Voters(side) {
			rows = append(rows, models.PriorVote{DogActID: act.ID, MemberID: int64(id), Side: side.String()})
		}
	}
	return rows
}

func fromModel(row *models.DogAct) *dogact.Act {
	act := &dogact.Act{
		ID:              row.ID,
		GuildID:         row.GuildID,
		Reporter:        dogact.MemberID(row.ReporterID),
		Target:          dogact.MemberID(row.TargetID),
		Allegation:      row.Allegation,
		RequiredVotes:   row.RequiredVotes,
		MessageRef:      row.MessageRef,
		Tally:           dogact.NewTally(),
		TimedOut:        row.TimedOut,
		AppealAttempted: row.AppealAttempted,
		AppealReason:    row.AppealReason,
		CreatedAt:       row.CreatedAt,
	}
	for _, v := range row.YesVotes {
		act.Tally.Cast(dogact.MemberID(v.MemberID), dogact.SideYes)
	}
	for _, v := range row.NoVotes {
		act.Tally.Cast(dogact.MemberID(v.MemberID), dogact.SideNo)
	}
	if row.AppealOpen {
		act.Prior = &dogact.PriorVerdict{Tally: dogact.NewTally(), TimedOut: row.PriorTimedOut}
		for _, v := range row.PriorVotes {
			if side, ok := dogact.ParseSide(v.Side); ok {
				act.Prior.Tally.Cast(dogact.MemberID(v.MemberID), side)
			}
		}
	}
	return act
}
