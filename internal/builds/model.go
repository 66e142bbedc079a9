package builds

import "time"

// Build models a persisted character build. Ownership is the session
// identity recorded at creation; only that identity may mutate or delete the
// build. Skills and equipment are stored as JSON documents.
type Build struct {
	BuildID            string    `gorm:"column:build_id;primaryKey;size:12;not null"`
	Name               string    `gorm:"column:name;size:100;not null"`
	Description        string    `gorm:"column:description;type:text;not null;default:''"`
	PrimaryArchetype   string    `gorm:"column:primary_archetype;size:20;not null"`
	SecondaryArchetype string    `gorm:"column:secondary_archetype;size:20;not null"`
	ClassName          string    `gorm:"column:class_name;size:50;not null"`
	Race               string    `gorm:"column:race;size:20;not null"`
	Level              int       `gorm:"column:level;not null;default:1"`
	SkillsJSON         string    `gorm:"column:skills_json;type:text;not null;default:'[]'"`
	EquipmentJSON      string    `gorm:"column:equipment_json;type:text;not null;default:'{}'"`
	IsPublic           bool      `gorm:"column:is_public;not null;default:true;index:idx_builds_public_created,priority:1"`
	OwnerSessionID     string    `gorm:"column:session_id;size:64;not null;index"`
	CreatedAt          time.Time `gorm:"column:created_at;not null;index:idx_builds_public_created,priority:2"`
	UpdatedAt          time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Build) TableName() string {
	return "builds"
}

// Vote is one row in the write-once vote ledger. The composite unique index
// is the authority on "one vote per identity per build"; the service treats
// its violation as already_voted rather than pre-checking.
type Vote struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	BuildID        string    `gorm:"column:build_id;size:12;not null;uniqueIndex:uq_build_votes_voter,priority:1"`
	VoterSessionID string    `gorm:"column:session_id;size:64;not null;uniqueIndex:uq_build_votes_voter,priority:2"`
	Rating         int       `gorm:"column:rating;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Vote) TableName() string {
	return "build_votes"
}

// RatingSummary is the vote aggregate for one build, always derived from the
// ledger by query, never stored.
type RatingSummary struct {
	Average   *float64
	VoteCount int64
}

// BuildSummary pairs a build with its derived rating aggregate.
type BuildSummary struct {
	Build  Build
	Rating RatingSummary
}
