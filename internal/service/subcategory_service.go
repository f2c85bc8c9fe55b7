package service

import (
	"context"
	"errors"
	"strings"

	"fanradar/internal/model"
	"fanradar/internal/repository"
)

type CategoryStore interface {
	CreateCategory(ctx context.Context, c *model.Category) error
}

type SubcategoryService struct {
	catalog    SubcategoryCatalog
	categories CategoryStore
}

func NewSubcategoryService(catalog SubcategoryCatalog, categories CategoryStore) *SubcategoryService {
	return &SubcategoryService{catalog: catalog, categories: categories}
}

func (s *SubcategoryService) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "required")
	}
	c := &model.Category{Name: name}
	if err := s.categories.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, invalid("name", "already taken")
		}
		return nil, err
	}
	return c, nil
}

func (s *SubcategoryService) Create(ctx context.Context, categoryID uint64, name string) (*model.Subcategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "required")
	}
	ok, err := s.catalog.CategoryExists(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("category")
	}
	sub := &model.Subcategory{CategoryID: categoryID, Name: name}
	if err := s.catalog.CreateSubcategory(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// List categoryID 为 0 时返回全部
func (s *SubcategoryService) List(ctx context.Context, categoryID uint64) ([]model.Subcategory, error) {
	return s.catalog.ListSubcategories(ctx, categoryID)
}
