package domain

import "time"

// KnowledgeEntry is a reusable question/answer fact used to ground reply
// drafts. Entries are authored out of band; the pipeline only reads them.
type KnowledgeEntry struct {
	ID         string    `json:"id" db:"id"`
	Product    string    `json:"product" db:"product"`
	Category   string    `json:"category" db:"category"`
	Question   string    `json:"question" db:"question"`
	Answer     string    `json:"answer" db:"answer"`
	Keywords   []string  `json:"keywords" db:"keywords"`
	Confidence float64   `json:"confidence" db:"confidence"`
	UseCount   int       `json:"use_count" db:"use_count"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// DailySendStat holds the count of messages sent on one calendar date.
// The count is monotonically non-decreasing within a day and is only
// advanced through a conditional check-and-increment at the storage layer.
type DailySendStat struct {
	Date       string    `json:"date" db:"date"` // YYYY-MM-DD (UTC)
	EmailsSent int       `json:"emails_sent" db:"emails_sent"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
