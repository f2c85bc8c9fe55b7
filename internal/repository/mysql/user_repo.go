package mysql

import (
	"context"

	"gorm.io/gorm"

	"fanradar/internal/model"
)

type UserRepository struct {
	DB *gorm.DB
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return translate(conn(ctx, r.DB).Create(user).Error)
}

// FindByUsername 用户名或邮箱均可登录
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := conn(ctx, r.DB).Where("username = ? OR email = ?", username, username).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	var user model.User
	if err := conn(ctx, r.DB).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}
