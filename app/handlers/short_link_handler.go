package handlers

import (
	"strconv"

	"github.com/amirphl/url-shortener/app/dto"
	"github.com/amirphl/url-shortener/app/middleware"
	businessflow "github.com/amirphl/url-shortener/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// ShortLinkHandlerInterface defines the contract for short link endpoints
type ShortLinkHandlerInterface interface {
	Create(c fiber.Ctx) error
	Resolve(c fiber.Ctx) error
	ListMine(c fiber.Ctx) error
	ExportMine(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
}

type ShortLinkHandler struct {
	flow      businessflow.ShortenerFlow
	validator *validator.Validate
}

func NewShortLinkHandler(flow businessflow.ShortenerFlow) *ShortLinkHandler {
	return &ShortLinkHandler{
		flow:      flow,
		validator: newValidator(),
	}
}

// Create shortens a URL
// @Summary Create Short URL
// @Tags ShortLinks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateShortURLRequest true "URL to shorten"
// @Success 201 {object} dto.APIResponse{data=dto.CreateShortURLResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /shorten [post]
func (h *ShortLinkHandler) Create(c fiber.Ctx) error {
	var req dto.CreateShortURLRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	var ownerID *uint
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		ownerID = &userID
	}

	ctx, cancel := createRequestContext(c, "/shorten")
	defer cancel()

	result, err := h.flow.CreateShortURL(ctx, &req, ownerID)
	if err != nil {
		log.Error().Err(err).Msg("create short url failed")
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to create short URL", "CREATE_SHORT_URL_FAILED", nil)
	}

	return successResponse(c, fiber.StatusCreated, "Short URL created successfully", result)
}

// Resolve redirects an alias to its target and counts the visit
// @Summary Visit Short Link
// @Tags ShortLinks
// @Param alias path string true "Short link alias"
// @Success 302 {string} string "Redirect"
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /shorten/{alias} [get]
func (h *ShortLinkHandler) Resolve(c fiber.Ctx) error {
	alias := c.Params("alias")
	if alias == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Alias is required", "INVALID_ALIAS", nil)
	}

	ctx, cancel := createRequestContext(c, "/shorten/:alias")
	defer cancel()

	originalURL, found, err := h.flow.ResolveAndCount(ctx, alias)
	if err != nil {
		log.Error().Err(err).Str("alias", alias).Msg("resolve short url failed")
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to resolve short URL", "RESOLVE_FAILED", nil)
	}
	if !found {
		return errorResponse(c, fiber.StatusNotFound, "Short URL not found", "SHORT_LINK_NOT_FOUND", nil)
	}

	return c.Redirect().Status(fiber.StatusFound).To(originalURL)
}

// ListMine returns the caller's active links, newest first
// @Summary List My Short URLs
// @Tags ShortLinks
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.LinkSummary}
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /shorten/me [get]
func (h *ShortLinkHandler) ListMine(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	ctx, cancel := createRequestContext(c, "/shorten/me")
	defer cancel()

	links, err := h.flow.ListOwned(ctx, userID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("list short urls failed")
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list short URLs", "LIST_SHORT_URLS_FAILED", nil)
	}

	return successResponse(c, fiber.StatusOK, "Short URLs retrieved successfully", links)
}

// ExportMine downloads the caller's active links as an xlsx workbook
// @Summary Export My Short URLs
// @Tags ShortLinks
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /shorten/me/export [get]
func (h *ShortLinkHandler) ExportMine(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	ctx, cancel := createRequestContext(c, "/shorten/me/export")
	defer cancel()

	filename, content, err := h.flow.ExportOwned(ctx, userID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("export short urls failed")
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to export short URLs", "EXPORT_SHORT_URLS_FAILED", nil)
	}

	c.Attachment(filename)
	return c.Status(fiber.StatusOK).Send(content)
}

// Update replaces the target of an owned link
// @Summary Update Short URL
// @Tags ShortLinks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Short link ID"
// @Param request body dto.UpdateShortURLRequest true "New target"
// @Success 200 {object} dto.MessageResponse
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Not found"
// @Router /shorten/{id} [patch]
func (h *ShortLinkHandler) Update(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	id, err := parseLinkID(c)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid short URL id", "INVALID_ID", nil)
	}

	var req dto.UpdateShortURLRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/shorten/:id")
	defer cancel()

	if err := h.flow.UpdateOwned(ctx, id, userID, &req); err != nil {
		if businessflow.IsShortLinkNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Short URL not found", "SHORT_LINK_NOT_FOUND", nil)
		}
		log.Error().Err(err).Uint("short_link_id", id).Msg("update short url failed")
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to update short URL", "UPDATE_SHORT_URL_FAILED", nil)
	}

	return c.Status(fiber.StatusOK).JSON(dto.MessageResponse{Message: "URL updated successfully"})
}

// Delete soft-deletes an owned link
// @Summary Delete Short URL
// @Tags ShortLinks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Short link ID"
// @Success 200 {object} dto.MessageResponse
// @Failure 400 {object} dto.APIResponse "Invalid id"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Not found"
// @Router /shorten/{id} [delete]
func (h *ShortLinkHandler) Delete(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	id, err := parseLinkID(c)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid short URL id", "INVALID_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/shorten/:id")
	defer cancel()

	if err := h.flow.SoftDeleteOwned(ctx, id, userID); err != nil {
		if businessflow.IsShortLinkNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Short URL not found", "SHORT_LINK_NOT_FOUND", nil)
		}
		log.Error().Err(err).Uint("short_link_id", id).Msg("delete short url failed")
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to delete short URL", "DELETE_SHORT_URL_FAILED", nil)
	}

	return c.Status(fiber.StatusOK).JSON(dto.MessageResponse{Message: "URL deleted successfully"})
}

func parseLinkID(c fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.ErrBadRequest
	}
	return uint(id), nil
}
