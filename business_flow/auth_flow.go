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
)

// AuthFlow handles account registration and password login
type AuthFlow interface {
	Register(ctx context.Context, request *dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(ctx context.Context, request *dto.LoginRequest) (*dto.LoginResponse, error)
}

// AuthFlowImpl implements the authentication business flow
type AuthFlowImpl struct {
	userRepo     repository.UserRepository
	hasher       services.PasswordHasher
	tokenService services.TokenService

	// dummyHash is compared against on unknown emails
	dummyHash string
}

// NewAuthFlow creates a new auth flow instance. It hashes the dummy password up front
// so no login pays for it.
func NewAuthFlow(
	userRepo repository.UserRepository,
	hasher services.PasswordHasher,
	tokenService services.TokenService,
) (AuthFlow, error) {
	dummyHash, err := hasher.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy password hash: %w", err)
	}

	return &AuthFlowImpl{
		userRepo:     userRepo,
		hasher:       hasher,
		tokenService: tokenService,
		dummyHash:    dummyHash,
	}, nil
}

// Register creates an account. The unique index on email decides concurrent registrations.
func (af *AuthFlowImpl) Register(ctx context.Context, request *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	existing, err := af.userRepo.ByEmail(ctx, request.Email)
	if err != nil {
		registrationsTotal.WithLabelValues(resultError).Inc()
		return nil, NewBusinessError("REGISTER_FAILED", "Failed to look up account", err)
	}
	if existing != nil {
		registrationsTotal.WithLabelValues(resultConflict).Inc()
		return nil, NewBusinessError("EMAIL_EXISTS", "Email is already registered", ErrEmailAlreadyExists)
	}

	hash, err := af.hasher.Hash(request.Password)
	if err != nil {
		registrationsTotal.WithLabelValues(resultError).Inc()
		return nil, NewBusinessError("REGISTER_FAILED", "Failed to hash password", err)
	}

	user := &models.User{
		Email:        request.Email,
		PasswordHash: hash,
		CreatedAt:    utils.UTCNow(),
	}
	if err := af.userRepo.Save(ctx, user); err != nil {
		if repository.IsDuplicateKey(err) {
			registrationsTotal.WithLabelValues(resultConflict).Inc()
			return nil, NewBusinessError("EMAIL_EXISTS", "Email is already registered", ErrEmailAlreadyExists)
		}
		registrationsTotal.WithLabelValues(resultError).Inc()
		return nil, NewBusinessError("REGISTER_FAILED", "Failed to create account", err)
	}

	registrationsTotal.WithLabelValues(resultSuccess).Inc()
	log.Info().Uint("user_id", user.ID).Msg("user registered")

	return ToRegisterResponse(*user), nil
}

// Login verifies credentials and issues an access token.
// Unknown emails are compared against a dummy hash so both failure paths cost one bcrypt comparison.
func (af *AuthFlowImpl) Login(ctx context.Context, request *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := af.userRepo.ByEmail(ctx, request.Email)
	if err != nil {
		loginsTotal.WithLabelValues(resultError).Inc()
		return nil, NewBusinessError("LOGIN_FAILED", "Failed to look up account", err)
	}

	hash := af.dummyHash
	if user != nil {
		hash = user.PasswordHash
	}

	match, err := af.hasher.Compare(request.Password, hash)
	if err != nil {
		loginsTotal.WithLabelValues(resultError).Inc()
		return nil, NewBusinessError("LOGIN_FAILED", "Failed to verify credentials", err)
	}
	if user == nil || !match {
		loginsTotal.WithLabelValues(resultRejected).Inc()
		return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid credentials", ErrInvalidCredentials)
	}

	token, err := af.tokenService.GenerateToken(user.ID, user.Email)
	if err != nil {
		loginsTotal.WithLabelValues(resultError).Inc()
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to issue access token", err)
	}

	loginsTotal.WithLabelValues(resultSuccess).Inc()
	log.Info().Uint("user_id", user.ID).Msg("user logged in")

	return &dto.LoginResponse{AccessToken: token}, nil
}
