package testing

import (
	"fmt"

	"github.com/amirphl/url-shortener/models"
	"github.com/amirphl/url-shortener/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext password of every fixture user
const TestPassword = "TestPass123!"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates a user with a unique email and TestPassword
func (tf *TestFixtures) CreateTestUser() (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        fmt.Sprintf("user.%s@example.com", uuid.NewString()[:8]),
		PasswordHash: string(hashedPassword),
		CreatedAt:    utils.UTCNow(),
	}
	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestShortLink creates an active link; ownerID may be nil for anonymous links
func (tf *TestFixtures) CreateTestShortLink(ownerID *uint, originalURL string) (*models.ShortLink, error) {
	link := &models.ShortLink{
		Alias:       uuid.NewString()[:6],
		OriginalURL: originalURL,
		UserID:      ownerID,
		CreatedAt:   utils.UTCNow(),
	}
	if err := tf.DB.DB.Create(link).Error; err != nil {
		return nil, fmt.Errorf("failed to create test short link: %w", err)
	}
	return link, nil
}
