package mysql

import (
	"context"

	"gorm.io/gorm"

	"fanradar/internal/model"
)

type MemberRepository struct {
	DB *gorm.DB
}

// Create 唯一索引 (fandom_id, user_id) 是并发加入的最终保障
func (r *MemberRepository) Create(ctx context.Context, m *model.Member) error {
	return translate(conn(ctx, r.DB).Create(m).Error)
}

func (r *MemberRepository) Find(ctx context.Context, fandomID, userID uint64) (*model.Member, error) {
	var m model.Member
	err := conn(ctx, r.DB).Where("fandom_id = ? AND user_id = ?", fandomID, userID).Take(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *MemberRepository) Delete(ctx context.Context, id uint64) error {
	return conn(ctx, r.DB).Delete(&model.Member{}, id).Error
}

func (r *MemberRepository) UpdateRole(ctx context.Context, id uint64, role model.Role) error {
	return conn(ctx, r.DB).Model(&model.Member{}).Where("id = ?", id).Update("role", role).Error
}

func (r *MemberRepository) CountByRole(ctx context.Context, fandomID uint64, role model.Role) (int64, error) {
	var n int64
	err := conn(ctx, r.DB).Model(&model.Member{}).
		Where("fandom_id = ? AND role = ?", fandomID, role).
		Count(&n).Error
	return n, err
}

func (r *MemberRepository) ListByFandom(ctx context.Context, fandomID uint64, offset, limit int) ([]model.Member, int64, error) {
	q := conn(ctx, r.DB).Model(&model.Member{}).Where("fandom_id = ?", fandomID)
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Member
	err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}
