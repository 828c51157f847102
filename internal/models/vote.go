package models

import "time"

// YesVote is a member's "guilty" vote on a dog act. A member holds at most one
// vote per act across both tables.
type YesVote struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	DogActID  int64     `gorm:"not null;uniqueIndex:idx_yes_votes_act_member" json:"dog_act_id"`
	MemberID  int64     `gorm:"not null;uniqueIndex:idx_yes_votes_act_member" json:"member_id"`
	Member    Member    `gorm:"foreignKey:MemberID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// NoVote is a member's "not guilty" vote on a dog act.
type NoVote struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	DogActID  int64     `gorm:"not null;uniqueIndex:idx_no_votes_act_member" json:"dog_act_id"`
	MemberID  int64     `gorm:"not null;uniqueIndex:idx_no_votes_act_member" json:"member_id"`
	Member    Member    `gorm:"foreignKey:MemberID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// PriorVote is a vote from the verdict an open appeal replaced. Side is
// "yes" or "no".
type PriorVote struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	DogActID int64  `gorm:"not null;uniqueIndex:idx_prior_votes_act_member" json:"dog_act_id"`
	MemberID int64  `gorm:"not null;uniqueIndex:idx_prior_votes_act_member" json:"member_id"`
	Side     string `gorm:"not null;size:3" json:"side"`
}
