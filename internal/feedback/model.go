package feedback

import "time"

// Modes a search can run in; feedback is always tied to one of them.
const (
	ModeQuick = "quick"
	ModeSmart = "smart"
	ModeDeep  = "deep"
)

// Ratings a response can receive.
const (
	RatingUp   = "up"
	RatingDown = "down"
)

// Feedback is one immutable response-quality signal. There is no update or
// delete path anywhere in the service.
type Feedback struct {
	FeedbackID      string    `gorm:"column:feedback_id;primaryKey;size:12;not null"`
	Query           string    `gorm:"column:query;type:text;not null"`
	ResponseSnippet string    `gorm:"column:response_snippet;type:text;not null"`
	SearchMode      string    `gorm:"column:search_mode;size:10;not null"`
	Rating          string    `gorm:"column:rating;size:4;not null"`
	Comment         string    `gorm:"column:comment;type:text;not null;default:''"`
	SessionID       string    `gorm:"column:session_id;size:64;not null;index"`
	CreatedAt       time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Feedback) TableName() string {
	return "feedback"
}
