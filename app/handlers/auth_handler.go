package handlers

import (
	"github.com/amirphl/url-shortener/app/dto"
	businessflow "github.com/amirphl/url-shortener/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	Register(c fiber.Ctx) error
	Login(c fiber.Ctx) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authFlow  businessflow.AuthFlow
	validator *validator.Validate
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authFlow businessflow.AuthFlow) *AuthHandler {
	return &AuthHandler{
		authFlow:  authFlow,
		validator: newValidator(),
	}
}

// Register handles account creation
// @Summary User Registration
// @Description Create an account identified by email
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration data"
// @Success 201 {object} dto.APIResponse{data=dto.RegisterResponse} "Account created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Email already exists"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/auth/register")
	defer cancel()

	result, err := h.authFlow.Register(ctx, &req)
	if err != nil {
		if businessflow.IsEmailAlreadyExists(err) {
			return errorResponse(c, fiber.StatusConflict, "Email already exists", "EMAIL_EXISTS", nil)
		}

		log.Error().Err(err).Msg("register failed")
		return errorResponse(c, fiber.StatusInternalServerError, "Registration failed", "REGISTER_FAILED", nil)
	}

	return successResponse(c, fiber.StatusCreated, "Account created successfully", result)
}

// Login authenticates a user and issues an access token
// @Summary User Login
// @Description Exchange email and password for a bearer token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponse} "Login successful"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/auth/login")
	defer cancel()

	result, err := h.authFlow.Login(ctx, &req)
	if err != nil {
		if businessflow.IsInvalidCredentials(err) {
			return errorResponse(c, fiber.StatusUnauthorized, "Invalid email or password", "INVALID_CREDENTIALS", nil)
		}

		log.Error().Err(err).Msg("login failed")
		return errorResponse(c, fiber.StatusInternalServerError, "Login failed", "LOGIN_FAILED", nil)
	}

	return successResponse(c, fiber.StatusOK, "Login successful", result)
}
