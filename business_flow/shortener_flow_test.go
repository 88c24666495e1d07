package businessflow

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/url-shortener/app/dto"
	"github.com/amirphl/url-shortener/app/services"
	"github.com/amirphl/url-shortener/models"
	"github.com/amirphl/url-shortener/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testBaseURL = "http://localhost:8080"

type shortenerFixture struct {
	flow  ShortenerFlow
	repo  *fakeShortLinkRepo
	cache *fakeLinkCache
}

func newShortenerFixture(baseURL string) *shortenerFixture {
	repo := newFakeShortLinkRepo()
	cache := newFakeLinkCache()
	return &shortenerFixture{
		flow:  NewShortenerFlow(repo, NewAliasGenerator(repo), cache, baseURL),
		repo:  repo,
		cache: cache,
	}
}

func TestShortenerFlowCreateShortURL(t *testing.T) {
	ctx := context.Background()

	t.Run("owned link", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		owner := uint(7)

		resp, err := f.flow.CreateShortURL(ctx, &dto.CreateShortURLRequest{OriginalURL: "https://www.google.com"}, &owner)
		require.NoError(t, err)
		assert.Regexp(t, `^http://localhost:8080/[0-9a-f]{6}$`, resp.ShortURL)

		rows := f.repo.all()
		require.Len(t, rows, 1)
		assert.Equal(t, "https://www.google.com", rows[0].OriginalURL)
		assert.Equal(t, int64(0), rows[0].Clicks)
		assert.True(t, rows[0].IsOwnedBy(owner))
		assert.Equal(t, testBaseURL+"/"+rows[0].Alias, resp.ShortURL)
	})

	t.Run("anonymous link", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		_, err := f.flow.CreateShortURL(ctx, &dto.CreateShortURLRequest{OriginalURL: "https://example.com"}, nil)
		require.NoError(t, err)

		rows := f.repo.all()
		require.Len(t, rows, 1)
		assert.Nil(t, rows[0].UserID)
	})

	t.Run("trailing slash on base", func(t *testing.T) {
		repo := newFakeShortLinkRepo()
		gen := &sequenceAliasGenerator{aliases: []string{"abc123"}}
		flow := NewShortenerFlow(repo, gen, nil, "https://sho.rt/")

		resp, err := flow.CreateShortURL(ctx, &dto.CreateShortURLRequest{OriginalURL: "https://example.com"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "https://sho.rt/abc123", resp.ShortURL)
	})

	t.Run("missing base url", func(t *testing.T) {
		f := newShortenerFixture("")
		_, err := f.flow.CreateShortURL(ctx, &dto.CreateShortURLRequest{OriginalURL: "https://example.com"}, nil)
		assert.True(t, IsBaseURLNotConfigured(err))
		assert.Empty(t, f.repo.all())
	})

	t.Run("insert race regenerates alias", func(t *testing.T) {
		repo := newFakeShortLinkRepo()
		repo.saveDuplicates = 1
		gen := &sequenceAliasGenerator{aliases: []string{"aaaaaa", "bbbbbb"}}
		flow := NewShortenerFlow(repo, gen, nil, testBaseURL)

		resp, err := flow.CreateShortURL(ctx, &dto.CreateShortURLRequest{OriginalURL: "https://example.com"}, nil)
		require.NoError(t, err)
		assert.Equal(t, testBaseURL+"/bbbbbb", resp.ShortURL)
		assert.Equal(t, 2, gen.calls)
	})

	t.Run("generator failure", func(t *testing.T) {
		repo := newFakeShortLinkRepo()
		flow := NewShortenerFlow(repo, &sequenceAliasGenerator{}, nil, testBaseURL)

		_, err := flow.CreateShortURL(ctx, &dto.CreateShortURLRequest{OriginalURL: "https://example.com"}, nil)
		var be *BusinessError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, "ALIAS_GENERATION_FAILED", be.Code)
	})
}

func TestShortenerFlowResolveAndCount(t *testing.T) {
	ctx := context.Background()

	t.Run("found increments clicks", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		link := f.repo.seed(models.ShortLink{Alias: "abc123", OriginalURL: "https://www.google.com"})

		url, found, err := f.flow.ResolveAndCount(ctx, "abc123")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "https://www.google.com", url)
		assert.Equal(t, int64(1), f.repo.get(link.ID).Clicks)
		assert.True(t, f.cache.has("abc123"))

		// Served from cache, still counted
		url, found, err = f.flow.ResolveAndCount(ctx, "abc123")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "https://www.google.com", url)
		assert.Equal(t, int64(2), f.repo.get(link.ID).Clicks)
	})

	t.Run("unknown alias", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		url, found, err := f.flow.ResolveAndCount(ctx, "nope00")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, url)
	})

	t.Run("deleted alias", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		deletedAt := time.Now().UTC()
		link := f.repo.seed(models.ShortLink{Alias: "gone00", OriginalURL: "https://example.com", DeletedAt: &deletedAt})

		_, found, err := f.flow.ResolveAndCount(ctx, "gone00")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, int64(0), f.repo.get(link.ID).Clicks)
	})

	t.Run("stale cache entry for a deleted link", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		owner := uint(1)
		link := f.repo.seed(models.ShortLink{Alias: "stale0", OriginalURL: "https://example.com", UserID: &owner})

		_, found, err := f.flow.ResolveAndCount(ctx, "stale0")
		require.NoError(t, err)
		require.True(t, found)

		// Deleted behind the cache's back
		_, err = f.repo.SoftDelete(ctx, link.ID, owner, time.Now().UTC())
		require.NoError(t, err)

		_, found, err = f.flow.ResolveAndCount(ctx, "stale0")
		require.NoError(t, err)
		assert.False(t, found)
		assert.False(t, f.cache.has("stale0"))
		assert.Equal(t, int64(1), f.repo.get(link.ID).Clicks)
	})

	t.Run("update between lookup and cache fill", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		owner := uint(1)
		link := f.repo.seed(models.ShortLink{Alias: "race00", OriginalURL: "https://old.example", UserID: &owner})

		// The owner's update commits and invalidates after the row was read but before the cache is filled
		f.cache.beforeSet = func() {
			require.NoError(t, f.flow.UpdateOwned(ctx, link.ID, owner, &dto.UpdateShortURLRequest{OriginalURL: "https://new.example"}))
		}

		url, found, err := f.flow.ResolveAndCount(ctx, "race00")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "https://new.example", url)
		assert.True(t, f.cache.has("race00"))

		url, found, err = f.flow.ResolveAndCount(ctx, "race00")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "https://new.example", url)
		assert.Equal(t, int64(2), f.repo.get(link.ID).Clicks)
	})

	t.Run("delete between lookup and cache fill", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		owner := uint(1)
		link := f.repo.seed(models.ShortLink{Alias: "race01", OriginalURL: "https://example.com", UserID: &owner})

		f.cache.beforeSet = func() {
			require.NoError(t, f.flow.SoftDeleteOwned(ctx, link.ID, owner))
		}

		_, found, err := f.flow.ResolveAndCount(ctx, "race01")
		require.NoError(t, err)
		assert.False(t, found)
		assert.False(t, f.cache.has("race01"))
		assert.Equal(t, int64(0), f.repo.get(link.ID).Clicks)
	})

	t.Run("cache failure falls back to store", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		f.cache.getErr = errors.New("redis down")
		link := f.repo.seed(models.ShortLink{Alias: "abc123", OriginalURL: "https://example.com"})

		url, found, err := f.flow.ResolveAndCount(ctx, "abc123")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "https://example.com", url)
		assert.Equal(t, int64(1), f.repo.get(link.ID).Clicks)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		f.repo.lookupErr = errors.New("db down")

		_, found, err := f.flow.ResolveAndCount(ctx, "abc123")
		assert.Error(t, err)
		assert.False(t, found)
	})
}

func TestShortenerFlowConcurrentResolutions(t *testing.T) {
	ctx := context.Background()
	f := newShortenerFixture(testBaseURL)
	link := f.repo.seed(models.ShortLink{Alias: "hot000", OriginalURL: "https://example.com"})

	const visits = 100
	var wg sync.WaitGroup
	for i := 0; i < visits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, found, err := f.flow.ResolveAndCount(ctx, "hot000")
			assert.NoError(t, err)
			assert.True(t, found)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(visits), f.repo.get(link.ID).Clicks)
}

func TestShortenerFlowListOwned(t *testing.T) {
	ctx := context.Background()
	f := newShortenerFixture(testBaseURL)
	owner, other := uint(1), uint(2)
	base := time.Date(2025, 7, 26, 14, 0, 0, 0, time.UTC)
	deletedAt := base.Add(time.Hour)

	f.repo.seed(models.ShortLink{Alias: "old000", OriginalURL: "https://a.com", UserID: &owner, CreatedAt: base, Clicks: 3})
	f.repo.seed(models.ShortLink{Alias: "new000", OriginalURL: "https://b.com", UserID: &owner, CreatedAt: base.Add(time.Minute)})
	f.repo.seed(models.ShortLink{Alias: "del000", OriginalURL: "https://c.com", UserID: &owner, CreatedAt: base.Add(2 * time.Minute), DeletedAt: &deletedAt})
	f.repo.seed(models.ShortLink{Alias: "oth000", OriginalURL: "https://d.com", UserID: &other, CreatedAt: base})
	f.repo.seed(models.ShortLink{Alias: "anon00", OriginalURL: "https://e.com", CreatedAt: base})

	links, err := f.flow.ListOwned(ctx, owner)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "https://b.com", links[0].OriginalURL)
	assert.Equal(t, testBaseURL+"/new000", links[0].ShortURL)
	assert.Equal(t, "https://a.com", links[1].OriginalURL)
	assert.Equal(t, int64(3), links[1].Clicks)
	assert.Equal(t, base, links[1].CreatedAt)

	empty, err := f.flow.ListOwned(ctx, 99)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestShortenerFlowUpdateOwned(t *testing.T) {
	ctx := context.Background()
	owner, other := uint(1), uint(2)

	t.Run("owner updates target", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		link := f.repo.seed(models.ShortLink{Alias: "abc123", OriginalURL: "https://old.com", UserID: &owner})
		require.NoError(t, f.cache.Set(ctx, "abc123", cachedOf(link)))

		err := f.flow.UpdateOwned(ctx, link.ID, owner, &dto.UpdateShortURLRequest{OriginalURL: "https://new.com"})
		require.NoError(t, err)

		got := f.repo.get(link.ID)
		assert.Equal(t, "https://new.com", got.OriginalURL)
		assert.Equal(t, "abc123", got.Alias)
		assert.NotNil(t, got.UpdatedAt)
		assert.False(t, f.cache.has("abc123"))

		url, found, err := f.flow.ResolveAndCount(ctx, "abc123")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "https://new.com", url)
	})

	t.Run("non-owner is not found and nothing changes", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		link := f.repo.seed(models.ShortLink{Alias: "abc123", OriginalURL: "https://old.com", UserID: &owner})

		err := f.flow.UpdateOwned(ctx, link.ID, other, &dto.UpdateShortURLRequest{OriginalURL: "https://evil.com"})
		assert.True(t, IsShortLinkNotFound(err))
		assert.Equal(t, "https://old.com", f.repo.get(link.ID).OriginalURL)
	})

	t.Run("deleted link is not found", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		deletedAt := time.Now().UTC()
		link := f.repo.seed(models.ShortLink{Alias: "abc123", OriginalURL: "https://old.com", UserID: &owner, DeletedAt: &deletedAt})

		err := f.flow.UpdateOwned(ctx, link.ID, owner, &dto.UpdateShortURLRequest{OriginalURL: "https://new.com"})
		assert.True(t, IsShortLinkNotFound(err))
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		err := f.flow.UpdateOwned(ctx, 404, owner, &dto.UpdateShortURLRequest{OriginalURL: "https://new.com"})
		assert.True(t, IsShortLinkNotFound(err))
	})
}

func TestShortenerFlowSoftDeleteOwned(t *testing.T) {
	ctx := context.Background()
	owner, other := uint(1), uint(2)

	t.Run("owner deletes once", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		link := f.repo.seed(models.ShortLink{Alias: "abc123", OriginalURL: "https://example.com", UserID: &owner})
		require.NoError(t, f.cache.Set(ctx, "abc123", cachedOf(link)))

		require.NoError(t, f.flow.SoftDeleteOwned(ctx, link.ID, owner))
		assert.False(t, f.repo.get(link.ID).IsActive())
		assert.False(t, f.cache.has("abc123"))

		_, found, err := f.flow.ResolveAndCount(ctx, "abc123")
		require.NoError(t, err)
		assert.False(t, found)

		err = f.flow.SoftDeleteOwned(ctx, link.ID, owner)
		assert.True(t, IsShortLinkNotFound(err))

		links, err := f.flow.ListOwned(ctx, owner)
		require.NoError(t, err)
		assert.Empty(t, links)
	})

	t.Run("non-owner is not found", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		link := f.repo.seed(models.ShortLink{Alias: "abc123", OriginalURL: "https://example.com", UserID: &owner})

		err := f.flow.SoftDeleteOwned(ctx, link.ID, other)
		assert.True(t, IsShortLinkNotFound(err))
		assert.True(t, f.repo.get(link.ID).IsActive())
	})

	t.Run("anonymous links cannot be deleted", func(t *testing.T) {
		f := newShortenerFixture(testBaseURL)
		link := f.repo.seed(models.ShortLink{Alias: "anon00", OriginalURL: "https://example.com"})

		err := f.flow.SoftDeleteOwned(ctx, link.ID, owner)
		assert.True(t, IsShortLinkNotFound(err))
	})

	t.Run("deleted alias is never reissued", func(t *testing.T) {
		repo := newFakeShortLinkRepo()
		deletedAt := time.Now().UTC()
		repo.seed(models.ShortLink{Alias: "abc123", OriginalURL: "https://example.com", UserID: &owner, DeletedAt: &deletedAt})
		gen := &AliasGeneratorImpl{repo: repo, random: bytes.NewReader([]byte{0xab, 0xc1, 0x23, 0xab, 0xc1, 0x24})}
		flow := NewShortenerFlow(repo, gen, nil, testBaseURL)

		resp, err := flow.CreateShortURL(ctx, &dto.CreateShortURLRequest{OriginalURL: "https://example.com"}, &owner)
		require.NoError(t, err)
		assert.Equal(t, testBaseURL+"/abc124", resp.ShortURL)
	})
}

func TestShortenerFlowExportOwned(t *testing.T) {
	ctx := context.Background()
	f := newShortenerFixture(testBaseURL)
	owner := uint(3)
	f.repo.seed(models.ShortLink{Alias: "aaa111", OriginalURL: "https://a.com", UserID: &owner, Clicks: 5, CreatedAt: utils.UTCNow().Add(-time.Hour)})
	f.repo.seed(models.ShortLink{Alias: "bbb222", OriginalURL: "https://b.com", UserID: &owner})

	filename, content, err := f.flow.ExportOwned(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "short_links_user_3.xlsx", filename)
	require.NotEmpty(t, content)

	xl, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows("links")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "original_url", "short_url", "clicks", "created_at"}, rows[0])
	assert.Equal(t, "https://b.com", rows[1][1])
	assert.Equal(t, testBaseURL+"/aaa111", rows[2][2])
	assert.Equal(t, "5", rows[2][3])
}

func cachedOf(link models.ShortLink) services.CachedLink {
	return services.CachedLink{ID: link.ID}
}
