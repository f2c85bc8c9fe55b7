package model

import "time"

type Fandom struct {
	ID            uint64    `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Description   string    `gorm:"type:text" json:"description"`
	SubcategoryID uint64    `gorm:"not null;index" json:"subcategory_id"`
	CoverImage    string    `gorm:"size:1024" json:"cover_image"`
	LogoImage     string    `gorm:"size:1024" json:"logo_image"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Role 成员在某个 fandom 内的角色，只在该 fandom 范围内有效
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Member 一行代表一个用户在一个 fandom 的成员关系，(fandom_id, user_id) 唯一
type Member struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	FandomID  uint64    `gorm:"not null;index;uniqueIndex:uk_fandom_user" json:"fandom_id"`
	UserID    uint64    `gorm:"not null;index;uniqueIndex:uk_fandom_user" json:"user_id"`
	Role      Role      `gorm:"type:varchar(16);not null;default:'member';index" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
