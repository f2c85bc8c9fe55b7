package service

import (
	"context"
	"errors"
	"io"
	"time"

	"fanradar/internal/model"
	"fanradar/internal/pkg"
	"fanradar/internal/policy"
)

const postMediaFolder = "posts/media"

type FileInput struct {
	Reader   io.Reader
	Filename string
}

type CreatePostInput struct {
	Description string
	Status      model.ContentStatus
	ScheduleAt  *time.Time
	Tags        []string
	Media       []FileInput
}

// UpdatePostInput nil 字段保持不变；Tags 非 nil 时整体替换，Media 为追加
type UpdatePostInput struct {
	Description   *string
	Status        *model.ContentStatus
	ScheduleAt    *time.Time
	ClearSchedule bool
	Tags          *[]string
	Media         []FileInput
}

type PostService struct {
	tx      Transactor
	gate    *PostGate
	posts   PostStore
	tags    TagStore
	fandoms FandomStore
	members MemberStore
	storage pkg.FileStorage
}

func NewPostService(tx Transactor, gate *PostGate, posts PostStore, tags TagStore, fandoms FandomStore,
	members MemberStore, storage pkg.FileStorage) *PostService {
	return &PostService{
		tx:      tx,
		gate:    gate,
		posts:   posts,
		tags:    tags,
		fandoms: fandoms,
		members: members,
		storage: storage,
	}
}

// Create 只有成员可以在 fandom 内发帖，状态默认 draft
func (s *PostService) Create(ctx context.Context, actorID, fandomID uint64, in CreatePostInput) (*model.Post, error) {
	fandom, err := s.fandoms.FindByID(ctx, fandomID)
	if err != nil {
		return nil, entityErr(err, "fandom")
	}
	if !fandom.IsActive {
		return nil, forbidden(policy.ActionCreatePost)
	}
	status := in.Status
	if status == "" {
		status = model.ContentDraft
	}
	if !status.Valid() {
		return nil, invalid("content_status", "must be one of draft, published, archived")
	}

	post := &model.Post{
		FandomID:      fandomID,
		UserID:        actorID,
		Description:   pkg.Sanitize(in.Description),
		ContentStatus: status,
		ScheduleAt:    in.ScheduleAt,
		Media:         []model.PostMedia{},
	}
	if err := s.gate.Authorize(ctx, actorID, post, policy.ActionCreatePost); err != nil {
		return nil, err
	}

	stored, err := s.storeMedia(ctx, in.Media)
	if err != nil {
		return nil, err
	}
	for _, p := range stored {
		post.Media = append(post.Media, model.PostMedia{Path: p})
	}

	err = s.tx.WithFandomLock(ctx, fandomID, func(ctx context.Context) error {
		if err := s.gate.Authorize(ctx, actorID, post, policy.ActionCreatePost); err != nil {
			return err
		}
		tags, err := s.tags.Ensure(ctx, in.Tags)
		if err != nil {
			return err
		}
		post.Tags = tags
		return s.posts.Create(ctx, post)
	})
	if err != nil {
		removeFiles(s.storage, stored)
		return nil, entityErr(err, "fandom")
	}
	return post, nil
}

// Get 非 published 的帖子只对 fandom 成员可见
func (s *PostService) Get(ctx context.Context, viewerID, postID uint64) (*model.Post, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, entityErr(err, "post")
	}
	if post.ContentStatus != model.ContentPublished {
		role, err := roleOf(ctx, s.members, post.FandomID, viewerID)
		if err != nil {
			return nil, err
		}
		if role == "" {
			return nil, notFound("post")
		}
	}
	return post, nil
}

// GetInFandom 帖子不属于该 fandom 时按不存在处理
func (s *PostService) GetInFandom(ctx context.Context, viewerID, fandomID, postID uint64) (*model.Post, error) {
	ok, err := s.posts.BelongsToFandom(ctx, postID, fandomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("post")
	}
	return s.Get(ctx, viewerID, postID)
}

func (s *PostService) ListByFandom(ctx context.Context, viewerID, fandomID uint64, page, size int) ([]model.Post, int64, error) {
	if _, err := s.fandoms.FindByID(ctx, fandomID); err != nil {
		return nil, 0, entityErr(err, "fandom")
	}
	role, err := roleOf(ctx, s.members, fandomID, viewerID)
	if err != nil {
		return nil, 0, err
	}
	var statuses []model.ContentStatus
	if role == "" {
		statuses = []model.ContentStatus{model.ContentPublished}
	}
	offset, limit := Page(page, size)
	return s.posts.ListByFandom(ctx, fandomID, statuses, offset, limit)
}

func (s *PostService) Update(ctx context.Context, actorID, postID uint64, in UpdatePostInput) (*model.Post, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, entityErr(err, "post")
	}
	if err := s.gate.Authorize(ctx, actorID, post, policy.ActionEditPost); err != nil {
		return nil, err
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, invalid("content_status", "must be one of draft, published, archived")
	}

	stored, err := s.storeMedia(ctx, in.Media)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithFandomLock(ctx, post.FandomID, func(ctx context.Context) error {
		if err := s.gate.Authorize(ctx, actorID, post, policy.ActionEditPost); err != nil {
			return err
		}
		if in.Description != nil {
			post.Description = pkg.Sanitize(*in.Description)
		}
		if in.Status != nil {
			post.ContentStatus = *in.Status
		}
		if in.ClearSchedule {
			post.ScheduleAt = nil
		} else if in.ScheduleAt != nil {
			post.ScheduleAt = in.ScheduleAt
		}

		var tags []model.Tag
		if in.Tags != nil {
			t, err := s.tags.Ensure(ctx, *in.Tags)
			if err != nil {
				return err
			}
			tags = t
		}
		if err := s.posts.Update(ctx, post, tags); err != nil {
			return err
		}
		media, err := s.posts.AddMedia(ctx, post.ID, stored)
		if err != nil {
			return err
		}
		post.Media = append(post.Media, media...)
		return nil
	})
	if err != nil {
		removeFiles(s.storage, stored)
		return nil, entityErr(err, "post")
	}
	return post, nil
}

// Delete 提交后尽力删除附件文件
func (s *PostService) Delete(ctx context.Context, actorID, postID uint64) error {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return entityErr(err, "post")
	}
	if err := s.gate.Authorize(ctx, actorID, post, policy.ActionDeletePost); err != nil {
		return err
	}

	err = s.tx.WithFandomLock(ctx, post.FandomID, func(ctx context.Context) error {
		if err := s.gate.Authorize(ctx, actorID, post, policy.ActionDeletePost); err != nil {
			return err
		}
		return s.posts.Delete(ctx, post)
	})
	if err != nil {
		return entityErr(err, "post")
	}

	paths := make([]string, 0, len(post.Media))
	for _, m := range post.Media {
		paths = append(paths, m.Path)
	}
	removeFiles(s.storage, paths)
	return nil
}

func (s *PostService) storeMedia(ctx context.Context, files []FileInput) ([]string, error) {
	stored := make([]string, 0, len(files))
	for _, f := range files {
		p, err := s.storage.Store(ctx, f.Reader, f.Filename, postMediaFolder)
		if err != nil {
			removeFiles(s.storage, stored)
			if errors.Is(err, pkg.ErrFileTooLarge) {
				return nil, invalid("media", "file too large")
			}
			return nil, err
		}
		stored = append(stored, p)
	}
	return stored, nil
}
