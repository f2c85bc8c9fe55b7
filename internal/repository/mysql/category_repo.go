package mysql

import (
	"context"

	"gorm.io/gorm"

	"fanradar/internal/model"
)

type CategoryRepository struct {
	DB *gorm.DB
}

func (r *CategoryRepository) CategoryExists(ctx context.Context, id uint64) (bool, error) {
	var n int64
	err := conn(ctx, r.DB).Model(&model.Category{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *CategoryRepository) CreateCategory(ctx context.Context, c *model.Category) error {
	return translate(conn(ctx, r.DB).Create(c).Error)
}

// Exists 创建 fandom 时校验子分类
func (r *CategoryRepository) Exists(ctx context.Context, subcategoryID uint64) (bool, error) {
	var n int64
	err := conn(ctx, r.DB).Model(&model.Subcategory{}).Where("id = ?", subcategoryID).Count(&n).Error
	return n > 0, err
}

func (r *CategoryRepository) CreateSubcategory(ctx context.Context, s *model.Subcategory) error {
	return translate(conn(ctx, r.DB).Create(s).Error)
}

func (r *CategoryRepository) ListSubcategories(ctx context.Context, categoryID uint64) ([]model.Subcategory, error) {
	var list []model.Subcategory
	q := conn(ctx, r.DB).Order("category_id ASC, id ASC")
	if categoryID > 0 {
		q = q.Where("category_id = ?", categoryID)
	}
	err := q.Find(&list).Error
	return list, err
}
