package model

import "time"

type ContentStatus string

const (
	ContentDraft     ContentStatus = "draft"
	ContentPublished ContentStatus = "published"
	ContentArchived  ContentStatus = "archived"
)

func (s ContentStatus) Valid() bool {
	switch s {
	case ContentDraft, ContentPublished, ContentArchived:
		return true
	}
	return false
}

type Post struct {
	ID            uint64        `gorm:"primaryKey" json:"id"`
	FandomID      uint64        `gorm:"not null;index:idx_fandom_time,priority:1" json:"fandom_id"`
	UserID        uint64        `gorm:"not null;index" json:"user_id"`
	Description   string        `gorm:"type:text" json:"description"`
	ContentStatus ContentStatus `gorm:"type:varchar(16);not null;default:'draft'" json:"content_status"`
	ScheduleAt    *time.Time    `json:"schedule_at"`
	Tags          []Tag         `gorm:"many2many:post_tags;" json:"tags"`
	Media         []PostMedia   `gorm:"constraint:OnDelete:CASCADE;" json:"media"`
	CreatedAt     time.Time     `gorm:"index:idx_fandom_time,priority:2,sort:desc" json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// PostMedia 帖子附件；Path 由文件存储返回，内容对业务不透明
type PostMedia struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	PostID    uint64    `gorm:"not null;index" json:"post_id"`
	Path      string    `gorm:"size:1024;not null" json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

func (PostMedia) TableName() string {
	return "post_media"
}

type Tag struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
