package domain

import "time"

// TagAlias maps a non-canonical tag to its canonical form.
// Alias is unique and never equal to Canonical.
type TagAlias struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	Alias     string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_tag_aliases_alias" json:"alias"`
	Canonical string    `gorm:"type:varchar(255);not null;index:idx_tag_aliases_canonical" json:"canonical"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for TagAlias.
func (TagAlias) TableName() string {
	return "tag_aliases"
}

// TagSummary aggregates one canonical tag across all videos.
type TagSummary struct {
	Tag        string     `json:"tag"`
	UsageCount int        `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at"`
	Aliases    []string   `json:"aliases"`
}
