// Package services provides technical concerns like tokens, password hashing and caching
package services

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/url-shortener/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenService handles JWT token generation and validation
type TokenService interface {
	GenerateToken(userID uint, email string) (string, error)
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims in an access token
type TokenClaims struct {
	UserID    uint      `json:"sub"`
	Email     string    `json:"email"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	accessTokenTTL time.Duration
	signingMethod  jwt.SigningMethod
	privateKey     *rsa.PrivateKey
	publicKey      *rsa.PublicKey
	secretKey      []byte
	useRSAKeys     bool
	issuer         string
	audience       string
}

// NewTokenService creates a new token service
func NewTokenService(accessTokenTTL time.Duration, issuer, audience string, useRSAKeys bool, privateKeyPEM, publicKeyPEM, secretKey string) (TokenService, error) {
	var privateKey *rsa.PrivateKey
	var publicKey *rsa.PublicKey
	var secretKeyBytes []byte
	var signingMethod jwt.SigningMethod

	if accessTokenTTL <= 0 {
		return nil, fmt.Errorf("access token TTL must be positive")
	}

	if useRSAKeys {
		var err error
		privateKey, publicKey, err = parseRSAKeys(privateKeyPEM, publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA keys: %w", err)
		}
		signingMethod = jwt.SigningMethodRS256
	} else {
		if secretKey == "" {
			return nil, fmt.Errorf("secret key is required when not using RSA keys")
		}
		secretKeyBytes = []byte(secretKey)
		signingMethod = jwt.SigningMethodHS256
	}

	return &TokenServiceImpl{
		accessTokenTTL: accessTokenTTL,
		signingMethod:  signingMethod,
		privateKey:     privateKey,
		publicKey:      publicKey,
		secretKey:      secretKeyBytes,
		useRSAKeys:     useRSAKeys,
		issuer:         issuer,
		audience:       audience,
	}, nil
}

// parseRSAKeys parses RSA private and public keys from PEM format
func parseRSAKeys(privateKeyPEM, publicKeyPEM string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, nil, fmt.Errorf("both private and public keys are required")
	}

	privateKeyBlock, _ := pem.Decode([]byte(privateKeyPEM))
	if privateKeyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode private key")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(privateKeyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicKeyBlock, _ := pem.Decode([]byte(publicKeyPEM))
	if publicKeyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode public key")
	}

	publicKey, err := x509.ParsePKIXPublicKey(publicKeyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPublicKey, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("public key is not RSA")
	}

	return privateKey, rsaPublicKey, nil
}

// GenerateToken issues an access token whose subject is the decimal user id
func (s *TokenServiceImpl) GenerateToken(userID uint, email string) (string, error) {
	now := utils.UTCNow()

	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(userID), 10),
		"email": email,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(s.accessTokenTTL).Unix(),
		"iss":   s.issuer,
		"aud":   s.audience,
	}

	return s.generateToken(claims)
}

// ValidateToken validates a JWT token and returns claims
func (s *TokenServiceImpl) ValidateToken(token string) (*TokenClaims, error) {
	parsedToken, err := jwt.Parse(token, s.keyFunc, jwt.WithExpirationRequired(), jwt.WithIssuedAt())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}
	userID, err := strconv.ParseUint(sub, 10, 0)
	if err != nil || userID == 0 {
		return nil, ErrTokenInvalid
	}

	email, ok := claims["email"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}

	tokenID, ok := claims["jti"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}

	issuedAt, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	expiresAt, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	return &TokenClaims{
		UserID:    uint(userID),
		Email:     email,
		TokenID:   tokenID,
		IssuedAt:  time.Unix(int64(issuedAt), 0).UTC(),
		ExpiresAt: time.Unix(int64(expiresAt), 0).UTC(),
	}, nil
}

func (s *TokenServiceImpl) keyFunc(token *jwt.Token) (any, error) {
	if s.useRSAKeys {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	}

	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secretKey, nil
}

// generateToken creates a signed JWT token
func (s *TokenServiceImpl) generateToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(s.signingMethod, claims)

	var signedString string
	var err error

	if s.useRSAKeys {
		signedString, err = token.SignedString(s.privateKey)
	} else {
		signedString, err = token.SignedString(s.secretKey)
	}

	if err != nil {
		return "", err
	}

	return signedString, nil
}
