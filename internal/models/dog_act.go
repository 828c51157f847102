package models

import "time"

type DogAct struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	MessageRef string `json:"message_ref"`
	GuildID    int64  `gorm:"not null;index:idx_dog_acts_guild_target,priority:1" json:"guild_id"`
	ReporterID int64  `gorm:"not null" json:"reporter_id"`
	TargetID   int64  `gorm:"not null;index:idx_dog_acts_guild_target,priority:2" json:"target_id"`
	Allegation string `gorm:"not null" json:"allegation"`

	// Quorum on either side needed for a verdict.
	RequiredVotes int  `gorm:"not null" json:"required_votes"`
	TimedOut      bool `gorm:"not null;default:false" json:"timed_out"`
	// Denormalised from the tally so leaderboards can aggregate without joins.
	FoundGuilty bool `gorm:"not null;default:false;index" json:"found_guilty"`

	AppealAttempted bool   `gorm:"not null;default:false" json:"appeal_attempted"`
	AppealReason    string `json:"appeal_reason"`

	// Set while an appeal's re-vote is open. PriorTimedOut and PriorVotes
	// hold the verdict the appeal replaced.
	AppealOpen    bool `gorm:"not null;default:false" json:"appeal_open"`
	PriorTimedOut bool `gorm:"not null;default:false" json:"-"`

	YesVotes   []YesVote   `gorm:"foreignKey:DogActID;constraint:OnDelete:CASCADE" json:"-"`
	NoVotes    []NoVote    `gorm:"foreignKey:DogActID;constraint:OnDelete:CASCADE" json:"-"`
	PriorVotes []PriorVote `gorm:"foreignKey:DogActID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateDogActRequest struct {
	TargetID int64  `json:"target_id" binding:"required"`
	Reason   string `json:"reason"`
}

type RevoteRequest struct {
	Reason string `json:"reason"`
}

type CastVoteRequest struct {
	Side string `json:"side" binding:"required,oneof=yes no"`
}
