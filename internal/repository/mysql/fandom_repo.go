package mysql

import (
	"context"

	"gorm.io/gorm"

	"fanradar/internal/model"
)

type FandomRepository struct {
	DB *gorm.DB
}

func (r *FandomRepository) Create(ctx context.Context, f *model.Fandom) error {
	return translate(conn(ctx, r.DB).Create(f).Error)
}

func (r *FandomRepository) FindByID(ctx context.Context, id uint64) (*model.Fandom, error) {
	var f model.Fandom
	if err := conn(ctx, r.DB).First(&f, id).Error; err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

// List 只返回启用中的 fandom，subcategoryID 为 0 时不过滤
func (r *FandomRepository) List(ctx context.Context, subcategoryID uint64, offset, limit int) ([]model.Fandom, int64, error) {
	q := conn(ctx, r.DB).Model(&model.Fandom{}).Where("is_active = ?", true)
	if subcategoryID > 0 {
		q = q.Where("subcategory_id = ?", subcategoryID)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Fandom
	err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

// Save 写回全部可变字段，bool 零值也会落库
func (r *FandomRepository) Save(ctx context.Context, f *model.Fandom) error {
	err := conn(ctx, r.DB).Model(f).
		Select("name", "description", "subcategory_id", "cover_image", "logo_image", "is_active").
		Updates(f).Error
	return translate(err)
}
