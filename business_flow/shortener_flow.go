package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/url-shortener/app/dto"
	"github.com/amirphl/url-shortener/app/services"
	"github.com/amirphl/url-shortener/models"
	"github.com/amirphl/url-shortener/repository"
	"github.com/amirphl/url-shortener/utils"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// ShortenerFlow provides the link use cases: create, resolve, and owner-scoped management.
// Owner-scoped operations only see active links whose owner matches the caller;
// anything else is reported as not found.
type ShortenerFlow interface {
	CreateShortURL(ctx context.Context, request *dto.CreateShortURLRequest, ownerID *uint) (*dto.CreateShortURLResponse, error)
	ResolveAndCount(ctx context.Context, alias string) (originalURL string, found bool, err error)
	ListOwned(ctx context.Context, ownerID uint) ([]dto.LinkSummary, error)
	UpdateOwned(ctx context.Context, id, ownerID uint, request *dto.UpdateShortURLRequest) error
	SoftDeleteOwned(ctx context.Context, id, ownerID uint) error
	ExportOwned(ctx context.Context, ownerID uint) (string, []byte, error)
}

type ShortenerFlowImpl struct {
	repo     repository.ShortLinkRepository
	aliasGen AliasGenerator
	cache    services.LinkCache
	baseURL  string
}

func NewShortenerFlow(
	repo repository.ShortLinkRepository,
	aliasGen AliasGenerator,
	cache services.LinkCache,
	baseURL string,
) ShortenerFlow {
	if cache == nil {
		cache = services.NoopLinkCache{}
	}
	return &ShortenerFlowImpl{
		repo:     repo,
		aliasGen: aliasGen,
		cache:    cache,
		baseURL:  baseURL,
	}
}

func (f *ShortenerFlowImpl) CreateShortURL(ctx context.Context, request *dto.CreateShortURLRequest, ownerID *uint) (*dto.CreateShortURLResponse, error) {
	if f.baseURL == "" {
		return nil, NewBusinessError("BASE_URL_NOT_CONFIGURED", "Short URL base is not configured", ErrBaseURLNotConfigured)
	}

	for {
		alias, err := f.aliasGen.GenerateUniqueAlias(ctx)
		if err != nil {
			return nil, NewBusinessError("ALIAS_GENERATION_FAILED", "Failed to generate alias", err)
		}

		link := &models.ShortLink{
			Alias:       alias,
			OriginalURL: request.OriginalURL,
			UserID:      ownerID,
			Clicks:      0,
			CreatedAt:   utils.UTCNow(),
		}
		if err := f.repo.Save(ctx, link); err != nil {
			if repository.IsDuplicateKey(err) {
				// Lost the race for this alias after the lookup
				aliasCollisionsTotal.Inc()
				continue
			}
			return nil, NewBusinessError("CREATE_SHORT_URL_FAILED", "Failed to create short URL", err)
		}

		linksCreatedTotal.Inc()
		event := log.Info().Uint("short_link_id", link.ID).Str("alias", alias)
		if ownerID != nil {
			event = event.Uint("user_id", *ownerID)
		}
		event.Msg("short link created")

		return &dto.CreateShortURLResponse{ShortURL: utils.JoinURL(f.baseURL, alias)}, nil
	}
}

// ResolveAndCount returns the target of an active alias and adds one click.
// The cache only maps alias to id; the target comes back from the guarded increment,
// so a concurrent update is always visible and a deleted link is reported as not found.
func (f *ShortenerFlowImpl) ResolveAndCount(ctx context.Context, alias string) (string, bool, error) {
	var linkID uint

	cached, err := f.cache.Get(ctx, alias)
	if err != nil {
		linkCacheLookupsTotal.WithLabelValues(resultError).Inc()
		log.Warn().Err(err).Str("alias", alias).Msg("link cache lookup failed")
	}

	if cached != nil {
		linkCacheLookupsTotal.WithLabelValues(resultHit).Inc()
		linkID = cached.ID
	} else {
		if err == nil {
			linkCacheLookupsTotal.WithLabelValues(resultMiss).Inc()
		}
		row, err := f.repo.ActiveByAlias(ctx, alias)
		if err != nil {
			resolutionsTotal.WithLabelValues(resultError).Inc()
			return "", false, NewBusinessError("SHORT_LINK_LOOKUP_FAILED", "Failed to lookup short link", err)
		}
		if row == nil {
			resolutionsTotal.WithLabelValues(resultNotFound).Inc()
			return "", false, nil
		}
		linkID = row.ID
		if err := f.cache.Set(ctx, alias, services.CachedLink{ID: row.ID}); err != nil {
			log.Warn().Err(err).Str("alias", alias).Msg("failed to cache short link")
		}
	}

	originalURL, counted, err := f.repo.IncrementClicks(ctx, linkID)
	if err != nil {
		resolutionsTotal.WithLabelValues(resultError).Inc()
		return "", false, NewBusinessError("SHORT_LINK_TRACK_FAILED", "Failed to track short link click", err)
	}
	if !counted {
		f.invalidate(ctx, alias)
		resolutionsTotal.WithLabelValues(resultNotFound).Inc()
		return "", false, nil
	}

	resolutionsTotal.WithLabelValues(resultFound).Inc()
	return originalURL, true, nil
}

func (f *ShortenerFlowImpl) ListOwned(ctx context.Context, ownerID uint) ([]dto.LinkSummary, error) {
	if f.baseURL == "" {
		return nil, NewBusinessError("BASE_URL_NOT_CONFIGURED", "Short URL base is not configured", ErrBaseURLNotConfigured)
	}

	rows, err := f.repo.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, NewBusinessError("LIST_SHORT_URLS_FAILED", "Failed to list short URLs", err)
	}

	out := make([]dto.LinkSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToLinkSummary(*row, f.baseURL))
	}
	return out, nil
}

func (f *ShortenerFlowImpl) UpdateOwned(ctx context.Context, id, ownerID uint, request *dto.UpdateShortURLRequest) error {
	row, err := f.ownedActive(ctx, id, ownerID)
	if err != nil {
		return err
	}

	updated, err := f.repo.UpdateOriginalURL(ctx, id, ownerID, request.OriginalURL, utils.UTCNow())
	if err != nil {
		return NewBusinessError("UPDATE_SHORT_URL_FAILED", "Failed to update short URL", err)
	}
	if !updated {
		return NewBusinessError("SHORT_LINK_NOT_FOUND", "Short URL not found", ErrShortLinkNotFound)
	}

	f.invalidate(ctx, row.Alias)
	log.Info().Uint("short_link_id", id).Uint("user_id", ownerID).Msg("short link updated")
	return nil
}

func (f *ShortenerFlowImpl) SoftDeleteOwned(ctx context.Context, id, ownerID uint) error {
	row, err := f.ownedActive(ctx, id, ownerID)
	if err != nil {
		return err
	}

	deleted, err := f.repo.SoftDelete(ctx, id, ownerID, utils.UTCNow())
	if err != nil {
		return NewBusinessError("DELETE_SHORT_URL_FAILED", "Failed to delete short URL", err)
	}
	if !deleted {
		return NewBusinessError("SHORT_LINK_NOT_FOUND", "Short URL not found", ErrShortLinkNotFound)
	}

	f.invalidate(ctx, row.Alias)
	log.Info().Uint("short_link_id", id).Uint("user_id", ownerID).Msg("short link deleted")
	return nil
}

// ExportOwned renders the caller's active links as an xlsx workbook
func (f *ShortenerFlowImpl) ExportOwned(ctx context.Context, ownerID uint) (string, []byte, error) {
	links, err := f.ListOwned(ctx, ownerID)
	if err != nil {
		return "", nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "links"
	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare Excel sheet", err)
	}

	header := []string{"id", "original_url", "short_url", "clicks", "created_at"}
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel header", err)
	}

	for i, l := range links {
		record := []any{
			l.ID,
			l.OriginalURL,
			l.ShortURL,
			l.Clicks,
			utils.FormatRFC3339(l.CreatedAt),
		}
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to address Excel row", err)
		}
		if err := xl.SetSheetRow(sheet, cellRef, &record); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel row", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("short_links_user_%d.xlsx", ownerID)
	return filename, buf.Bytes(), nil
}

func (f *ShortenerFlowImpl) ownedActive(ctx context.Context, id, ownerID uint) (*models.ShortLink, error) {
	row, err := f.repo.ActiveByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, NewBusinessError("SHORT_LINK_LOOKUP_FAILED", "Failed to lookup short link", err)
	}
	if row == nil {
		return nil, NewBusinessError("SHORT_LINK_NOT_FOUND", "Short URL not found", ErrShortLinkNotFound)
	}
	return row, nil
}

func (f *ShortenerFlowImpl) invalidate(ctx context.Context, alias string) {
	if err := f.cache.Invalidate(ctx, alias); err != nil {
		log.Warn().Err(err).Str("alias", alias).Msg("failed to invalidate cached short link")
	}
}
