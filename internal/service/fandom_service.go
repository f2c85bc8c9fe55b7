package service

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"fanradar/internal/model"
	"fanradar/internal/pkg"
	"fanradar/internal/policy"
	"fanradar/internal/repository"
)

const (
	fandomCoverFolder = "fandoms/covers"
	fandomLogoFolder  = "fandoms/logos"
	maxFandomName     = 64
)

// ImageInput 上传文件优先，其次是已托管的 URL
type ImageInput struct {
	File     io.Reader
	Filename string
	URL      string
}

func (in *ImageInput) empty() bool {
	return in == nil || (in.File == nil && strings.TrimSpace(in.URL) == "")
}

type CreateFandomInput struct {
	Name          string
	Description   string
	SubcategoryID uint64
	Cover         *ImageInput
	Logo          *ImageInput
}

// UpdateFandomInput nil 字段保持不变
type UpdateFandomInput struct {
	Name          *string
	Description   *string
	SubcategoryID *uint64
	IsActive      *bool
	Cover         *ImageInput
	Logo          *ImageInput
}

type FandomService struct {
	tx      Transactor
	fandoms FandomStore
	members MemberStore
	catalog SubcategoryCatalog
	events  EventLog
	storage pkg.FileStorage
	cache   FandomCache
}

func NewFandomService(tx Transactor, fandoms FandomStore, members MemberStore, catalog SubcategoryCatalog,
	events EventLog, storage pkg.FileStorage, cache FandomCache) *FandomService {
	return &FandomService{
		tx:      tx,
		fandoms: fandoms,
		members: members,
		catalog: catalog,
		events:  events,
		storage: storage,
		cache:   cache,
	}
}

// Create 创建 fandom，创建者在同一事务内成为 admin
func (s *FandomService) Create(ctx context.Context, creatorID uint64, in CreateFandomInput) (*model.Fandom, error) {
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := s.checkSubcategory(ctx, in.SubcategoryID); err != nil {
		return nil, err
	}

	var stored []string
	cover, err := s.resolveImage(ctx, in.Cover, "cover_image", fandomCoverFolder, &stored)
	if err != nil {
		return nil, err
	}
	logo, err := s.resolveImage(ctx, in.Logo, "logo_image", fandomLogoFolder, &stored)
	if err != nil {
		s.discard(stored)
		return nil, err
	}

	fandom := &model.Fandom{
		Name:          name,
		Description:   pkg.Sanitize(in.Description),
		SubcategoryID: in.SubcategoryID,
		CoverImage:    cover,
		LogoImage:     logo,
		IsActive:      true,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.fandoms.Create(ctx, fandom); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return invalid("name", "already taken")
			}
			return err
		}
		admin := &model.Member{FandomID: fandom.ID, UserID: creatorID, Role: model.RoleAdmin}
		if err := s.members.Create(ctx, admin); err != nil {
			return err
		}
		return appendEvent(ctx, s.events, model.EventFandomCreated, fandom.ID, creatorID, creatorID, map[string]any{
			"name": fandom.Name,
		})
	})
	if err != nil {
		s.discard(stored)
		return nil, err
	}
	return fandom, nil
}

// Update 部分更新；新图片替换旧图片，旧的本地文件在提交后删除
func (s *FandomService) Update(ctx context.Context, actorID, fandomID uint64, in UpdateFandomInput) (*model.Fandom, error) {
	if _, err := s.fandoms.FindByID(ctx, fandomID); err != nil {
		return nil, entityErr(err, "fandom")
	}
	if err := s.authorize(ctx, actorID, fandomID); err != nil {
		return nil, err
	}

	var name string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
	}
	if in.SubcategoryID != nil {
		if err := s.checkSubcategory(ctx, *in.SubcategoryID); err != nil {
			return nil, err
		}
	}

	var stored []string
	var cover, logo string
	var err error
	if !in.Cover.empty() {
		if cover, err = s.resolveImage(ctx, in.Cover, "cover_image", fandomCoverFolder, &stored); err != nil {
			return nil, err
		}
	}
	if !in.Logo.empty() {
		if logo, err = s.resolveImage(ctx, in.Logo, "logo_image", fandomLogoFolder, &stored); err != nil {
			s.discard(stored)
			return nil, err
		}
	}

	var fandom *model.Fandom
	var replaced []string
	err = s.tx.WithFandomLock(ctx, fandomID, func(ctx context.Context) error {
		// 拿到锁后重新校验，角色可能已被并发修改
		if err := s.authorize(ctx, actorID, fandomID); err != nil {
			return err
		}
		f, err := s.fandoms.FindByID(ctx, fandomID)
		if err != nil {
			return err
		}
		if in.Name != nil {
			f.Name = name
		}
		if in.Description != nil {
			f.Description = pkg.Sanitize(*in.Description)
		}
		if in.SubcategoryID != nil {
			f.SubcategoryID = *in.SubcategoryID
		}
		if in.IsActive != nil {
			f.IsActive = *in.IsActive
		}
		if cover != "" && cover != f.CoverImage {
			replaced = append(replaced, f.CoverImage)
			f.CoverImage = cover
		}
		if logo != "" && logo != f.LogoImage {
			replaced = append(replaced, f.LogoImage)
			f.LogoImage = logo
		}
		if err := s.fandoms.Save(ctx, f); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return invalid("name", "already taken")
			}
			return err
		}
		fandom = f
		return nil
	})
	if err != nil {
		s.discard(stored)
		return nil, entityErr(err, "fandom")
	}

	s.discard(replaced)
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, fandomID); err != nil {
			pkg.Logger.Warn("invalidate fandom cache", zap.Uint64("fandom_id", fandomID), zap.Error(err))
		}
	}
	return fandom, nil
}

// Get 先读缓存，缓存异常时回源
func (s *FandomService) Get(ctx context.Context, id uint64) (*model.Fandom, error) {
	if s.cache != nil {
		f, err := s.cache.Get(ctx, id)
		if err != nil {
			pkg.Logger.Warn("read fandom cache", zap.Uint64("fandom_id", id), zap.Error(err))
		}
		if f != nil {
			return f, nil
		}
	}

	f, err := s.fandoms.FindByID(ctx, id)
	if err != nil {
		return nil, entityErr(err, "fandom")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, f); err != nil {
			pkg.Logger.Warn("write fandom cache", zap.Uint64("fandom_id", id), zap.Error(err))
		}
	}
	return f, nil
}

func (s *FandomService) List(ctx context.Context, subcategoryID uint64, page, size int) ([]model.Fandom, int64, error) {
	offset, limit := Page(page, size)
	return s.fandoms.List(ctx, subcategoryID, offset, limit)
}

func (s *FandomService) authorize(ctx context.Context, actorID, fandomID uint64) error {
	role, err := roleOf(ctx, s.members, fandomID, actorID)
	if err != nil {
		return err
	}
	if !policy.CanAct(policy.Actor{UserID: actorID, Role: role}, policy.ActionUpdateFandom, policy.Target{}) {
		return forbidden(policy.ActionUpdateFandom)
	}
	return nil
}

func (s *FandomService) checkSubcategory(ctx context.Context, id uint64) error {
	if id == 0 {
		return invalid("subcategory_id", "required")
	}
	ok, err := s.catalog.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return invalid("subcategory_id", "does not exist")
	}
	return nil
}

// resolveImage 写入文件存储的路径追加到 stored，便于失败时清理
func (s *FandomService) resolveImage(ctx context.Context, in *ImageInput, field, folder string, stored *[]string) (string, error) {
	if in.empty() {
		return "", nil
	}
	if in.File != nil {
		p, err := s.storage.Store(ctx, in.File, in.Filename, folder)
		if err != nil {
			if errors.Is(err, pkg.ErrFileTooLarge) {
				return "", invalid(field, "file too large")
			}
			return "", err
		}
		*stored = append(*stored, p)
		return p, nil
	}
	raw := strings.TrimSpace(in.URL)
	if !isHTTPURL(raw) {
		return "", invalid(field, "must be an http(s) url")
	}
	return raw, nil
}

// discard 尽力删除，失败只记日志
func (s *FandomService) discard(paths []string) {
	removeFiles(s.storage, paths)
}

func removeFiles(storage pkg.FileStorage, paths []string) {
	for _, p := range paths {
		if p == "" || !storage.Owns(p) {
			continue
		}
		if err := storage.Delete(context.Background(), p); err != nil {
			pkg.Logger.Warn("delete stored file", zap.String("path", p), zap.Error(err))
		}
	}
}

func validateName(name string) error {
	if name == "" {
		return invalid("name", "required")
	}
	if utf8.RuneCountInString(name) > maxFandomName {
		return invalid("name", "too long")
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
