package businessflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/url-shortener/app/services"
	"github.com/amirphl/url-shortener/models"
	"github.com/amirphl/url-shortener/repository"
)

// fakeUserRepo is an in-memory UserRepository with a unique email constraint
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]models.User

	// skipLookup makes ByEmail miss so Save hits the unique constraint
	skipLookup bool
	lookupErr  error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{rows: map[uint]models.User{}}
}

func (r *fakeUserRepo) ByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *fakeUserRepo) ByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	if r.skipLookup {
		return nil, nil
	}
	for _, u := range r.rows {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) ByFilter(_ context.Context, f models.UserFilter, _ string, _, _ int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.rows {
		if f.Email != nil && u.Email != *f.Email {
			continue
		}
		if f.ID != nil && u.ID != *f.ID {
			continue
		}
		u := u
		out = append(out, &u)
	}
	return out, nil
}

func (r *fakeUserRepo) Save(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if u.Email == user.Email {
			return fmt.Errorf("failed to save entity: %w", repository.ErrDuplicateKey)
		}
	}
	r.nextID++
	user.ID = r.nextID
	r.rows[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Count(ctx context.Context, f models.UserFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), err
}

func (r *fakeUserRepo) Exists(ctx context.Context, f models.UserFilter) (bool, error) {
	c, err := r.Count(ctx, f)
	return c > 0, err
}

// fakeShortLinkRepo is an in-memory ShortLinkRepository with a global unique alias constraint
type fakeShortLinkRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]models.ShortLink

	byAliasCalls   int
	saveDuplicates int // number of upcoming Save calls that fail with ErrDuplicateKey
	lookupErr      error
}

func newFakeShortLinkRepo() *fakeShortLinkRepo {
	return &fakeShortLinkRepo{rows: map[uint]models.ShortLink{}}
}

// seed inserts a row directly, bypassing Save accounting
func (r *fakeShortLinkRepo) seed(link models.ShortLink) models.ShortLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	link.ID = r.nextID
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	r.rows[link.ID] = link
	return link
}

func (r *fakeShortLinkRepo) get(id uint) models.ShortLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

func (r *fakeShortLinkRepo) all() []models.ShortLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ShortLink, 0, len(r.rows))
	for _, l := range r.rows {
		out = append(out, l)
	}
	return out
}

func (r *fakeShortLinkRepo) ByID(_ context.Context, id uint) (*models.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *fakeShortLinkRepo) ByAlias(_ context.Context, alias string) (*models.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAliasCalls++
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	for _, l := range r.rows {
		if l.Alias == alias {
			l := l
			return &l, nil
		}
	}
	return nil, nil
}

func (r *fakeShortLinkRepo) ActiveByAlias(_ context.Context, alias string) (*models.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	for _, l := range r.rows {
		if l.Alias == alias && l.IsActive() {
			l := l
			return &l, nil
		}
	}
	return nil, nil
}

func (r *fakeShortLinkRepo) ActiveByIDAndOwner(_ context.Context, id, ownerID uint) (*models.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok || !l.IsActive() || !l.IsOwnedBy(ownerID) {
		return nil, nil
	}
	return &l, nil
}

func (r *fakeShortLinkRepo) ListActiveByOwner(_ context.Context, ownerID uint) ([]*models.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ShortLink
	for _, l := range r.rows {
		if l.IsActive() && l.IsOwnedBy(ownerID) {
			l := l
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *fakeShortLinkRepo) IncrementClicks(_ context.Context, id uint) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok || !l.IsActive() {
		return "", false, nil
	}
	l.Clicks++
	r.rows[id] = l
	return l.OriginalURL, true, nil
}

func (r *fakeShortLinkRepo) UpdateOriginalURL(_ context.Context, id, ownerID uint, originalURL string, updatedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok || !l.IsActive() || !l.IsOwnedBy(ownerID) {
		return false, nil
	}
	l.OriginalURL = originalURL
	l.UpdatedAt = &updatedAt
	r.rows[id] = l
	return true, nil
}

func (r *fakeShortLinkRepo) SoftDelete(_ context.Context, id, ownerID uint, deletedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok || !l.IsActive() || !l.IsOwnedBy(ownerID) {
		return false, nil
	}
	l.DeletedAt = &deletedAt
	r.rows[id] = l
	return true, nil
}

func (r *fakeShortLinkRepo) ByFilter(_ context.Context, f models.ShortLinkFilter, _ string, _, _ int) ([]*models.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ShortLink
	for _, l := range r.rows {
		if f.Alias != nil && l.Alias != *f.Alias {
			continue
		}
		if f.UserID != nil && !l.IsOwnedBy(*f.UserID) {
			continue
		}
		if f.OnlyActive && !l.IsActive() {
			continue
		}
		l := l
		out = append(out, &l)
	}
	return out, nil
}

func (r *fakeShortLinkRepo) Save(_ context.Context, link *models.ShortLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveDuplicates > 0 {
		r.saveDuplicates--
		return fmt.Errorf("failed to save entity: %w", repository.ErrDuplicateKey)
	}
	for _, l := range r.rows {
		if l.Alias == link.Alias {
			return fmt.Errorf("failed to save entity: %w", repository.ErrDuplicateKey)
		}
	}
	r.nextID++
	link.ID = r.nextID
	r.rows[link.ID] = *link
	return nil
}

func (r *fakeShortLinkRepo) Count(ctx context.Context, f models.ShortLinkFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), err
}

func (r *fakeShortLinkRepo) Exists(ctx context.Context, f models.ShortLinkFilter) (bool, error) {
	c, err := r.Count(ctx, f)
	return c > 0, err
}

// fakeLinkCache is an in-memory LinkCache
type fakeLinkCache struct {
	mu          sync.Mutex
	entries     map[string]services.CachedLink
	invalidated []string
	getErr      error
	// beforeSet runs once ahead of the next Set, outside the lock
	beforeSet func()
}

func newFakeLinkCache() *fakeLinkCache {
	return &fakeLinkCache{entries: map[string]services.CachedLink{}}
}

func (c *fakeLinkCache) Get(_ context.Context, alias string) (*services.CachedLink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	e, ok := c.entries[alias]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (c *fakeLinkCache) Set(_ context.Context, alias string, link services.CachedLink) error {
	c.mu.Lock()
	hook := c.beforeSet
	c.beforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[alias] = link
	return nil
}

func (c *fakeLinkCache) Invalidate(_ context.Context, alias string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, alias)
	c.invalidated = append(c.invalidated, alias)
	return nil
}

func (c *fakeLinkCache) has(alias string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[alias]
	return ok
}

// sequenceAliasGenerator hands out fixed aliases in order
type sequenceAliasGenerator struct {
	mu      sync.Mutex
	aliases []string
	calls   int
}

func (g *sequenceAliasGenerator) GenerateUniqueAlias(context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls >= len(g.aliases) {
		return "", errors.New("alias sequence exhausted")
	}
	a := g.aliases[g.calls]
	g.calls++
	return a, nil
}

// countingHasher records how many hashes and comparisons were made
type countingHasher struct {
	inner    services.PasswordHasher
	mu       sync.Mutex
	hashes   int
	compares int
	hashErr  error
}

func (h *countingHasher) Hash(plaintext string) (string, error) {
	h.mu.Lock()
	h.hashes++
	err := h.hashErr
	h.mu.Unlock()
	if err != nil {
		return "", err
	}
	return h.inner.Hash(plaintext)
}

func (h *countingHasher) hashCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hashes
}

func (h *countingHasher) Compare(plaintext, hash string) (bool, error) {
	h.mu.Lock()
	h.compares++
	h.mu.Unlock()
	return h.inner.Compare(plaintext, hash)
}

func (h *countingHasher) compareCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.compares
}
