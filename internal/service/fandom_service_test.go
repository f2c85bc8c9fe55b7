package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanradar/internal/model"
)

func TestCreateFandomValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u1 := h.user(t, "u1")
	sub := h.subcategory(t)

	cases := []struct {
		name  string
		in    CreateFandomInput
		field string
	}{
		{"missing name", CreateFandomInput{Name: "  ", SubcategoryID: sub}, "name"},
		{"long name", CreateFandomInput{Name: strings.Repeat("x", 65), SubcategoryID: sub}, "name"},
		{"missing subcategory", CreateFandomInput{Name: "A"}, "subcategory_id"},
		{"unknown subcategory", CreateFandomInput{Name: "A", SubcategoryID: 9999}, "subcategory_id"},
		{"bad cover url", CreateFandomInput{Name: "A", SubcategoryID: sub, Cover: &ImageInput{URL: "ftp://x/y.png"}}, "cover_image"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.fandoms.Create(ctx, u1, tc.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestCreateFandomImagesAndSanitize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u1 := h.user(t, "u1")

	f, err := h.fandoms.Create(ctx, u1, CreateFandomInput{
		Name:          "Jujutsu",
		Description:   `<p>hello</p><script>alert(1)</script>`,
		SubcategoryID: h.subcategory(t),
		Cover:         &ImageInput{File: strings.NewReader("png"), Filename: "cover.png", URL: "https://cdn.example.com/ignored.png"},
		Logo:          &ImageInput{URL: "https://cdn.example.com/logo.png"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.CoverImage, "/static/fandoms/covers/"))
	assert.Equal(t, "https://cdn.example.com/logo.png", f.LogoImage)
	assert.Equal(t, "<p>hello</p>", f.Description)
	assert.True(t, f.IsActive)
}

func TestCreateFandomDuplicateNameDiscardsUpload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u1 := h.user(t, "u1")
	h.fandom(t, u1, "Dune")

	_, err := h.fandoms.Create(ctx, u1, CreateFandomInput{
		Name:          "Dune",
		SubcategoryID: h.subcategory(t),
		Cover:         &ImageInput{File: strings.NewReader("png"), Filename: "c.png"},
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)
	assert.Equal(t, 0, h.storage.live())
}

func TestCreateFandomIsAtomic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u1 := h.user(t, "u1")
	sub := h.subcategory(t)
	h.db.failMemberCreate = errors.New("insert member: connection reset")

	_, err := h.fandoms.Create(ctx, u1, CreateFandomInput{Name: "Orphan", SubcategoryID: sub})
	require.Error(t, err)

	h.db.failMemberCreate = nil
	list, total, err := h.fandoms.List(ctx, 0, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
	assert.Empty(t, h.db.eventTypes())
}

func TestUpdateFandom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin, mod := h.user(t, "admin"), h.user(t, "mod")
	f, err := h.fandoms.Create(ctx, admin, CreateFandomInput{
		Name:          "Berserk",
		SubcategoryID: h.subcategory(t),
		Cover:         &ImageInput{File: strings.NewReader("old"), Filename: "old.png"},
	})
	require.NoError(t, err)
	oldCover := f.CoverImage
	h.join(t, mod, f.ID, model.RoleModerator)

	// 先读一次让缓存生效
	_, err = h.fandoms.Get(ctx, f.ID)
	require.NoError(t, err)

	t.Run("moderator forbidden", func(t *testing.T) {
		name := "Mod Edit"
		_, err := h.fandoms.Update(ctx, mod, f.ID, UpdateFandomInput{Name: &name})
		var fe *ForbiddenError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "update_fandom", fe.Action)
	})

	t.Run("missing fandom", func(t *testing.T) {
		_, err := h.fandoms.Update(ctx, admin, 4242, UpdateFandomInput{})
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("admin partial update replaces cover", func(t *testing.T) {
		desc := "<b>dark</b> fantasy"
		updated, err := h.fandoms.Update(ctx, admin, f.ID, UpdateFandomInput{
			Description: &desc,
			Cover:       &ImageInput{File: strings.NewReader("new"), Filename: "new.png"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Berserk", updated.Name)
		assert.Equal(t, "<b>dark</b> fantasy", updated.Description)
		assert.NotEqual(t, oldCover, updated.CoverImage)
		assert.Contains(t, h.storage.deleted, oldCover)
		assert.Contains(t, h.cache.invalidated, f.ID)

		got, err := h.fandoms.Get(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, updated.CoverImage, got.CoverImage)
	})
}

func TestGetFandomUsesCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u1 := h.user(t, "u1")
	f := h.fandom(t, u1, "Cached")

	_, err := h.fandoms.Get(ctx, f.ID)
	require.NoError(t, err)

	// 直接改底层数据，缓存命中时看不到
	h.db.mu.Lock()
	stored := h.db.fandoms[f.ID]
	stored.Description = "changed"
	h.db.fandoms[f.ID] = stored
	h.db.mu.Unlock()

	got, err := h.fandoms.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Description)

	_, err = h.fandoms.Get(ctx, 777)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
