package service

import (
	"context"

	"fanradar/internal/model"
)

// 服务依赖的存储接口，由 repository/mysql 与 repository/redis 实现

type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	// WithFandomLock 同一 fandom 的成员变更串行执行，fandom 不存在时返回 repository.ErrNotFound
	WithFandomLock(ctx context.Context, fandomID uint64, fn func(ctx context.Context) error) error
}

type UserDirectory interface {
	Create(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id uint64) (*model.User, error)
}

type SubcategoryCatalog interface {
	Exists(ctx context.Context, subcategoryID uint64) (bool, error)
	CategoryExists(ctx context.Context, categoryID uint64) (bool, error)
	CreateSubcategory(ctx context.Context, s *model.Subcategory) error
	ListSubcategories(ctx context.Context, categoryID uint64) ([]model.Subcategory, error)
}

type FandomStore interface {
	Create(ctx context.Context, f *model.Fandom) error
	FindByID(ctx context.Context, id uint64) (*model.Fandom, error)
	List(ctx context.Context, subcategoryID uint64, offset, limit int) ([]model.Fandom, int64, error)
	Save(ctx context.Context, f *model.Fandom) error
}

type MemberStore interface {
	Create(ctx context.Context, m *model.Member) error
	Find(ctx context.Context, fandomID, userID uint64) (*model.Member, error)
	Delete(ctx context.Context, id uint64) error
	UpdateRole(ctx context.Context, id uint64, role model.Role) error
	CountByRole(ctx context.Context, fandomID uint64, role model.Role) (int64, error)
	ListByFandom(ctx context.Context, fandomID uint64, offset, limit int) ([]model.Member, int64, error)
}

type EventLog interface {
	Append(ctx context.Context, ev *model.MembershipOutbox) error
}

type PostStore interface {
	Create(ctx context.Context, post *model.Post) error
	FindByID(ctx context.Context, id uint64) (*model.Post, error)
	BelongsToFandom(ctx context.Context, postID, fandomID uint64) (bool, error)
	ListByFandom(ctx context.Context, fandomID uint64, statuses []model.ContentStatus, offset, limit int) ([]model.Post, int64, error)
	Update(ctx context.Context, post *model.Post, tags []model.Tag) error
	AddMedia(ctx context.Context, postID uint64, paths []string) ([]model.PostMedia, error)
	Delete(ctx context.Context, post *model.Post) error
}

type TagStore interface {
	Ensure(ctx context.Context, names []string) ([]model.Tag, error)
}

type SessionStore interface {
	Save(ctx context.Context, userID uint64, token string) error
	Get(ctx context.Context, userID uint64) (string, error)
	Extend(ctx context.Context, userID uint64) error
	Delete(ctx context.Context, userID uint64) error
}

// FandomCache Get 未命中返回 (nil, nil)
type FandomCache interface {
	Get(ctx context.Context, id uint64) (*model.Fandom, error)
	Set(ctx context.Context, f *model.Fandom) error
	Invalidate(ctx context.Context, id uint64) error
}

// Page 页码从 1 开始，size 超出范围时取默认值
func Page(page, size int) (offset, limit int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 50 {
		size = 20
	}
	return (page - 1) * size, size
}
