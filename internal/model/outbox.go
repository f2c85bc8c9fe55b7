package model

import "time"

// 成员事件类型
const (
	EventFandomCreated     = "fandom.created"
	EventMemberJoined      = "member.joined"
	EventMemberLeft        = "member.left"
	EventMemberRemoved     = "member.removed"
	EventMemberRoleChanged = "member.role_changed"
)

// outbox 状态
const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2
)

// MembershipOutbox 成员变更事件，与变更在同一事务内写入，由 relayer 投递到 kafka
type MembershipOutbox struct {
	ID        uint64 `gorm:"primaryKey"`
	EventType string `gorm:"size:32;not null"`
	FandomID  uint64 `gorm:"not null;index"`
	UserID    uint64 `gorm:"not null"`
	ActorID   uint64 `gorm:"not null"`
	Payload   string `gorm:"type:text;not null"`
	Status    int8   `gorm:"not null;default:0;index"` // 0=pending 1=sent 2=failed
	Retry     int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (MembershipOutbox) TableName() string { return "membership_outbox" }
