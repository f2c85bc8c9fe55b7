package service

import (
	"context"
	"fmt"
	"io"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"fanradar/internal/model"
	"fanradar/internal/pkg"
	"fanradar/internal/repository"
	redisrepo "fanradar/internal/repository/redis"
)

// memDB 内存版存储；事务用快照回滚，同一时刻只有一个事务
type memDB struct {
	mu      sync.Mutex
	txMu    sync.Mutex
	seq     uint64
	users   map[uint64]model.User
	cats    map[uint64]model.Category
	subcats map[uint64]model.Subcategory
	fandoms map[uint64]model.Fandom
	members map[uint64]model.Member
	posts   map[uint64]model.Post
	tags    map[string]model.Tag
	events  []model.MembershipOutbox

	failMemberCreate error
}

func newMemDB() *memDB {
	return &memDB{
		users:   map[uint64]model.User{},
		cats:    map[uint64]model.Category{},
		subcats: map[uint64]model.Subcategory{},
		fandoms: map[uint64]model.Fandom{},
		members: map[uint64]model.Member{},
		posts:   map[uint64]model.Post{},
		tags:    map[string]model.Tag{},
	}
}

func (db *memDB) next() uint64 {
	db.seq++
	return db.seq
}

type memSnapshot struct {
	users   map[uint64]model.User
	cats    map[uint64]model.Category
	subcats map[uint64]model.Subcategory
	fandoms map[uint64]model.Fandom
	members map[uint64]model.Member
	posts   map[uint64]model.Post
	tags    map[string]model.Tag
	events  []model.MembershipOutbox
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	return memSnapshot{
		users:   maps.Clone(db.users),
		cats:    maps.Clone(db.cats),
		subcats: maps.Clone(db.subcats),
		fandoms: maps.Clone(db.fandoms),
		members: maps.Clone(db.members),
		posts:   maps.Clone(db.posts),
		tags:    maps.Clone(db.tags),
		events:  slices.Clone(db.events),
	}
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users, db.cats, db.subcats = s.users, s.cats, s.subcats
	db.fandoms, db.members, db.posts = s.fandoms, s.members, s.posts
	db.tags, db.events = s.tags, s.events
}

type memTxKey struct{}

func (db *memDB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()
	snap := db.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

func (db *memDB) WithFandomLock(ctx context.Context, fandomID uint64, fn func(ctx context.Context) error) error {
	return db.InTx(ctx, func(ctx context.Context) error {
		db.mu.Lock()
		_, ok := db.fandoms[fandomID]
		db.mu.Unlock()
		if !ok {
			return repository.ErrNotFound
		}
		return fn(ctx)
	})
}

func (db *memDB) adminCount(fandomID uint64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, m := range db.members {
		if m.FandomID == fandomID && m.Role == model.RoleAdmin {
			n++
		}
	}
	return n
}

func (db *memDB) memberCount(fandomID, userID uint64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, m := range db.members {
		if m.FandomID == fandomID && m.UserID == userID {
			n++
		}
	}
	return n
}

func (db *memDB) eventTypes() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, 0, len(db.events))
	for _, e := range db.events {
		out = append(out, e.EventType)
	}
	return out
}

type memUsers struct{ db *memDB }

func (r memUsers) Create(_ context.Context, user *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Username == user.Username || u.Email == user.Email {
			return fmt.Errorf("%w: users", repository.ErrDuplicate)
		}
	}
	user.ID = r.db.next()
	r.db.users[user.ID] = *user
	return nil
}

func (r memUsers) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Username == username || u.Email == username {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) FindByID(_ context.Context, id uint64) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

type memCatalog struct{ db *memDB }

func (r memCatalog) Exists(_ context.Context, id uint64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	_, ok := r.db.subcats[id]
	return ok, nil
}

func (r memCatalog) CategoryExists(_ context.Context, id uint64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	_, ok := r.db.cats[id]
	return ok, nil
}

func (r memCatalog) CreateCategory(_ context.Context, c *model.Category) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.cats {
		if existing.Name == c.Name {
			return repository.ErrDuplicate
		}
	}
	c.ID = r.db.next()
	r.db.cats[c.ID] = *c
	return nil
}

func (r memCatalog) CreateSubcategory(_ context.Context, s *model.Subcategory) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s.ID = r.db.next()
	r.db.subcats[s.ID] = *s
	return nil
}

func (r memCatalog) ListSubcategories(_ context.Context, categoryID uint64) ([]model.Subcategory, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Subcategory
	for _, s := range r.db.subcats {
		if categoryID == 0 || s.CategoryID == categoryID {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b model.Subcategory) int { return int(a.ID) - int(b.ID) })
	return out, nil
}

type memFandoms struct{ db *memDB }

func (r memFandoms) Create(_ context.Context, f *model.Fandom) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.fandoms {
		if existing.Name == f.Name {
			return fmt.Errorf("%w: fandoms.name", repository.ErrDuplicate)
		}
	}
	f.ID = r.db.next()
	f.CreatedAt = time.Now()
	r.db.fandoms[f.ID] = *f
	return nil
}

func (r memFandoms) FindByID(_ context.Context, id uint64) (*model.Fandom, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.fandoms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (r memFandoms) List(_ context.Context, subcategoryID uint64, offset, limit int) ([]model.Fandom, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var all []model.Fandom
	for _, f := range r.db.fandoms {
		if f.IsActive && (subcategoryID == 0 || f.SubcategoryID == subcategoryID) {
			all = append(all, f)
		}
	}
	slices.SortFunc(all, func(a, b model.Fandom) int { return int(b.ID) - int(a.ID) })
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Fandom{}, total, nil
	}
	return all[offset:min(offset+limit, len(all))], total, nil
}

func (r memFandoms) Save(_ context.Context, f *model.Fandom) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.fandoms {
		if existing.ID != f.ID && existing.Name == f.Name {
			return repository.ErrDuplicate
		}
	}
	r.db.fandoms[f.ID] = *f
	return nil
}

type memMembers struct{ db *memDB }

func (r memMembers) Create(_ context.Context, m *model.Member) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failMemberCreate != nil {
		return r.db.failMemberCreate
	}
	for _, existing := range r.db.members {
		if existing.FandomID == m.FandomID && existing.UserID == m.UserID {
			return fmt.Errorf("%w: uk_fandom_user", repository.ErrDuplicate)
		}
	}
	m.ID = r.db.next()
	r.db.members[m.ID] = *m
	return nil
}

func (r memMembers) Find(_ context.Context, fandomID, userID uint64) (*model.Member, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, m := range r.db.members {
		if m.FandomID == fandomID && m.UserID == userID {
			return &m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memMembers) Delete(_ context.Context, id uint64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.members, id)
	return nil
}

func (r memMembers) UpdateRole(_ context.Context, id uint64, role model.Role) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m := r.db.members[id]
	m.Role = role
	r.db.members[id] = m
	return nil
}

func (r memMembers) CountByRole(_ context.Context, fandomID uint64, role model.Role) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, m := range r.db.members {
		if m.FandomID == fandomID && m.Role == role {
			n++
		}
	}
	return n, nil
}

func (r memMembers) ListByFandom(_ context.Context, fandomID uint64, offset, limit int) ([]model.Member, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var all []model.Member
	for _, m := range r.db.members {
		if m.FandomID == fandomID {
			all = append(all, m)
		}
	}
	slices.SortFunc(all, func(a, b model.Member) int { return int(a.ID) - int(b.ID) })
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Member{}, total, nil
	}
	return all[offset:min(offset+limit, len(all))], total, nil
}

type memEvents struct{ db *memDB }

func (r memEvents) Append(_ context.Context, ev *model.MembershipOutbox) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ev.ID = r.db.next()
	r.db.events = append(r.db.events, *ev)
	return nil
}

type memPosts struct{ db *memDB }

func (r memPosts) Create(_ context.Context, post *model.Post) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	post.ID = r.db.next()
	for i := range post.Media {
		post.Media[i].ID = r.db.next()
		post.Media[i].PostID = post.ID
	}
	r.db.posts[post.ID] = clonePost(*post)
	return nil
}

func (r memPosts) FindByID(_ context.Context, id uint64) (*model.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p = clonePost(p)
	return &p, nil
}

func (r memPosts) BelongsToFandom(_ context.Context, postID, fandomID uint64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.posts[postID]
	return ok && p.FandomID == fandomID, nil
}

func (r memPosts) ListByFandom(_ context.Context, fandomID uint64, statuses []model.ContentStatus, offset, limit int) ([]model.Post, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var all []model.Post
	for _, p := range r.db.posts {
		if p.FandomID != fandomID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, p.ContentStatus) {
			continue
		}
		all = append(all, clonePost(p))
	}
	slices.SortFunc(all, func(a, b model.Post) int { return int(b.ID) - int(a.ID) })
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Post{}, total, nil
	}
	return all[offset:min(offset+limit, len(all))], total, nil
}

func (r memPosts) Update(_ context.Context, post *model.Post, tags []model.Tag) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored := r.db.posts[post.ID]
	stored.Description = post.Description
	stored.ContentStatus = post.ContentStatus
	stored.ScheduleAt = post.ScheduleAt
	if tags != nil {
		stored.Tags = slices.Clone(tags)
		post.Tags = tags
	}
	r.db.posts[post.ID] = stored
	return nil
}

func (r memPosts) AddMedia(_ context.Context, postID uint64, paths []string) ([]model.PostMedia, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored := r.db.posts[postID]
	added := make([]model.PostMedia, 0, len(paths))
	for _, p := range paths {
		added = append(added, model.PostMedia{ID: r.db.next(), PostID: postID, Path: p})
	}
	stored.Media = append(slices.Clone(stored.Media), added...)
	r.db.posts[postID] = stored
	return added, nil
}

func (r memPosts) Delete(_ context.Context, post *model.Post) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.posts, post.ID)
	return nil
}

func clonePost(p model.Post) model.Post {
	p.Tags = slices.Clone(p.Tags)
	p.Media = slices.Clone(p.Media)
	if p.Tags == nil {
		p.Tags = []model.Tag{}
	}
	if p.Media == nil {
		p.Media = []model.PostMedia{}
	}
	return p
}

type memTags struct{ db *memDB }

func (r memTags) Ensure(_ context.Context, names []string) ([]model.Tag, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.Tag{}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		t, ok := r.db.tags[n]
		if !ok {
			t = model.Tag{ID: r.db.next(), Name: n}
			r.db.tags[n] = t
		}
		if !slices.ContainsFunc(out, func(x model.Tag) bool { return x.ID == t.ID }) {
			out = append(out, t)
		}
	}
	return out, nil
}

// memStorage 以 /static/ 开头的路径视为本存储所有
type memStorage struct {
	mu      sync.Mutex
	n       int
	files   map[string]bool
	deleted []string
	maxSize int
}

func newMemStorage() *memStorage {
	return &memStorage{files: map[string]bool{}, maxSize: 1 << 20}
}

func (s *memStorage) Store(_ context.Context, r io.Reader, filename, folder string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if len(b) > s.maxSize {
		return "", pkg.ErrFileTooLarge
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	p := fmt.Sprintf("/static/%s/%d%s", folder, s.n, path.Ext(filename))
	s.files[p] = true
	return p, nil
}

func (s *memStorage) Delete(_ context.Context, stored string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, stored)
	s.deleted = append(s.deleted, stored)
	return nil
}

func (s *memStorage) Owns(stored string) bool {
	return strings.HasPrefix(stored, "/static/")
}

func (s *memStorage) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

type memCache struct {
	mu          sync.Mutex
	items       map[uint64]model.Fandom
	invalidated []uint64
}

func newMemCache() *memCache {
	return &memCache{items: map[uint64]model.Fandom{}}
}

func (c *memCache) Get(_ context.Context, id uint64) (*model.Fandom, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.items[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (c *memCache) Set(_ context.Context, f *model.Fandom) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[f.ID] = *f
	return nil
}

func (c *memCache) Invalidate(_ context.Context, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type memSessions struct {
	mu     sync.Mutex
	tokens map[uint64]string
}

func newMemSessions() *memSessions {
	return &memSessions{tokens: map[uint64]string{}}
}

func (s *memSessions) Save(_ context.Context, userID uint64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = token
	return nil
}

func (s *memSessions) Get(_ context.Context, userID uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[userID]
	if !ok {
		return "", redisrepo.ErrTokenNotFound
	}
	return t, nil
}

func (s *memSessions) Extend(context.Context, uint64) error { return nil }

func (s *memSessions) Delete(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

// harness 组装好的服务和底层内存存储
type harness struct {
	db         *memDB
	storage    *memStorage
	cache      *memCache
	members    *MembershipService
	fandoms    *FandomService
	posts      *PostService
	categories *SubcategoryService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := newMemDB()
	storage := newMemStorage()
	cache := newMemCache()
	members := memMembers{db}
	fandoms := memFandoms{db}
	catalog := memCatalog{db}
	return &harness{
		db:         db,
		storage:    storage,
		cache:      cache,
		members:    NewMembershipService(db, memUsers{db}, fandoms, members, memEvents{db}),
		fandoms:    NewFandomService(db, fandoms, members, catalog, memEvents{db}, storage, cache),
		posts:      NewPostService(db, NewPostGate(members), memPosts{db}, memTags{db}, fandoms, members, storage),
		categories: NewSubcategoryService(catalog, catalog),
	}
}

func (h *harness) user(t *testing.T, name string) uint64 {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", Password: "x"}
	if err := (memUsers{h.db}).Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u.ID
}

func (h *harness) subcategory(t *testing.T) uint64 {
	t.Helper()
	catalog := memCatalog{h.db}
	c := &model.Category{Name: fmt.Sprintf("cat-%d", time.Now().UnixNano())}
	if err := catalog.CreateCategory(context.Background(), c); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	s := &model.Subcategory{CategoryID: c.ID, Name: "anime"}
	if err := catalog.CreateSubcategory(context.Background(), s); err != nil {
		t.Fatalf("seed subcategory: %v", err)
	}
	return s.ID
}

// fandom 创建一个 fandom，creator 为 admin
func (h *harness) fandom(t *testing.T, creator uint64, name string) *model.Fandom {
	t.Helper()
	f, err := h.fandoms.Create(context.Background(), creator, CreateFandomInput{
		Name:          name,
		SubcategoryID: h.subcategory(t),
	})
	if err != nil {
		t.Fatalf("seed fandom: %v", err)
	}
	return f
}

func (h *harness) join(t *testing.T, userID, fandomID uint64, role model.Role) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.members.Join(ctx, userID, fandomID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if role == model.RoleMember {
		return
	}
	m, err := (memMembers{h.db}).Find(ctx, fandomID, userID)
	if err != nil {
		t.Fatalf("find member: %v", err)
	}
	if err := (memMembers{h.db}).UpdateRole(ctx, m.ID, role); err != nil {
		t.Fatalf("set role: %v", err)
	}
}
