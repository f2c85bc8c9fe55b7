package mysql

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fanradar/internal/model"
)

type PostRepository struct {
	DB *gorm.DB
}

// Create 同时写入 media 和 post_tags
func (r *PostRepository) Create(ctx context.Context, post *model.Post) error {
	return translate(conn(ctx, r.DB).Create(post).Error)
}

func (r *PostRepository) FindByID(ctx context.Context, id uint64) (*model.Post, error) {
	var post model.Post
	err := conn(ctx, r.DB).Preload("Tags").Preload("Media").First(&post, id).Error
	if err != nil {
		return nil, translate(err)
	}
	normalize(&post)
	return &post, nil
}

func (r *PostRepository) BelongsToFandom(ctx context.Context, postID, fandomID uint64) (bool, error) {
	var n int64
	err := conn(ctx, r.DB).Model(&model.Post{}).Where("id = ? AND fandom_id = ?", postID, fandomID).Count(&n).Error
	return n > 0, err
}

// ListByFandom statuses 为空时不过滤状态
func (r *PostRepository) ListByFandom(ctx context.Context, fandomID uint64, statuses []model.ContentStatus, offset, limit int) ([]model.Post, int64, error) {
	q := conn(ctx, r.DB).Model(&model.Post{}).Where("fandom_id = ?", fandomID)
	if len(statuses) > 0 {
		q = q.Where("content_status IN ?", statuses)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Post
	err := q.Preload("Tags").Preload("Media").
		Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&list).Error
	for i := range list {
		normalize(&list[i])
	}
	return list, total, err
}

// Update 写回标量字段；tags 非 nil 时整体替换
func (r *PostRepository) Update(ctx context.Context, post *model.Post, tags []model.Tag) error {
	db := conn(ctx, r.DB)
	err := db.Model(post).
		Select("description", "content_status", "schedule_at").
		Updates(post).Error
	if err != nil {
		return err
	}
	if tags == nil {
		return nil
	}
	if err := db.Model(post).Association("Tags").Replace(tags); err != nil {
		return err
	}
	post.Tags = tags
	return nil
}

func (r *PostRepository) AddMedia(ctx context.Context, postID uint64, paths []string) ([]model.PostMedia, error) {
	if len(paths) == 0 {
		return []model.PostMedia{}, nil
	}
	media := make([]model.PostMedia, 0, len(paths))
	for _, p := range paths {
		media = append(media, model.PostMedia{PostID: postID, Path: p})
	}
	err := conn(ctx, r.DB).Create(&media).Error
	return media, err
}

// Delete 连同 media 行和 post_tags 关联一起删除
func (r *PostRepository) Delete(ctx context.Context, post *model.Post) error {
	return conn(ctx, r.DB).Select(clause.Associations).Delete(post).Error
}

type TagRepository struct {
	DB *gorm.DB
}

// Ensure 按名称取标签，不存在则创建
func (r *TagRepository) Ensure(ctx context.Context, names []string) ([]model.Tag, error) {
	uniq := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		uniq = append(uniq, n)
	}
	if len(uniq) == 0 {
		return []model.Tag{}, nil
	}

	db := conn(ctx, r.DB)
	rows := make([]model.Tag, 0, len(uniq))
	for _, n := range uniq {
		rows = append(rows, model.Tag{Name: n})
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&rows).Error; err != nil {
		return nil, err
	}

	var tags []model.Tag
	err := db.Where("name IN ?", uniq).Order("name ASC").Find(&tags).Error
	return tags, err
}

// normalize 保证切片非 nil，序列化为 []
func normalize(p *model.Post) {
	if p.Tags == nil {
		p.Tags = []model.Tag{}
	}
	if p.Media == nil {
		p.Media = []model.PostMedia{}
	}
}
