package models

import "time"

// ShortLink maps a random alias to an original URL and counts successful resolutions.
// UserID is nil for anonymously created links.
// DeletedAt marks a soft-deleted link; the row is kept so its alias is never reissued.
type ShortLink struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Alias       string     `gorm:"column:alias;size:16;not null;uniqueIndex:uk_short_links_alias" json:"alias"`
	OriginalURL string     `gorm:"column:original_url;type:text;not null" json:"original_url"`
	UserID      *uint      `gorm:"column:user_id;index:idx_short_links_user_id" json:"user_id,omitempty"`
	Clicks      int64      `gorm:"column:clicks;not null;default:0" json:"clicks"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null;index:idx_short_links_created_at" json:"created_at"`
	UpdatedAt   *time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at,omitempty"`
	DeletedAt   *time.Time `gorm:"column:deleted_at;index:idx_short_links_deleted_at" json:"deleted_at,omitempty"`
}

// TableName returns the table name for ShortLink
func (ShortLink) TableName() string { return "short_links" }

// LinkState is the lifecycle state of a short link: LinkActive or LinkDeleted
type LinkState interface {
	isLinkState()
}

// LinkActive is the state of a link visible to resolution, listing and mutation
type LinkActive struct{}

// LinkDeleted is the state of a soft-deleted link
type LinkDeleted struct {
	At time.Time
}

func (LinkActive) isLinkState()  {}
func (LinkDeleted) isLinkState() {}

// State reports whether the link is active or soft-deleted
func (l ShortLink) State() LinkState {
	if l.DeletedAt == nil {
		return LinkActive{}
	}
	return LinkDeleted{At: *l.DeletedAt}
}

// IsActive reports whether the link is visible to normal operations
func (l ShortLink) IsActive() bool {
	_, ok := l.State().(LinkActive)
	return ok
}

// IsOwnedBy reports whether userID owns the link
func (l ShortLink) IsOwnedBy(userID uint) bool {
	return l.UserID != nil && *l.UserID == userID
}

// ShortLinkFilter provides filter fields for repository queries
type ShortLinkFilter struct {
	ID            *uint
	Alias         *string
	UserID        *uint
	OnlyActive    bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
