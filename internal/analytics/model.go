package analytics

import "time"

// SearchEvent is one row in the append-only search log, the raw substrate
// for popularity rollups. Queries are stored lowercased and trimmed so the
// rollup's grouping is case-insensitive by construction.
type SearchEvent struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Query       string    `gorm:"column:query;type:text;not null"`
	SearchMode  string    `gorm:"column:search_mode;size:10;not null"`
	ResultCount int       `gorm:"column:result_count;not null;default:0"`
	LatencyMS   *int      `gorm:"column:latency_ms"`
	SessionID   string    `gorm:"column:session_id;size:64;not null;index"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (SearchEvent) TableName() string {
	return "search_analytics"
}

// PopularQuery is one entry of the derived popular-queries view.
type PopularQuery struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}
