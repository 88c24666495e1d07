package businessflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/amirphl/url-shortener/repository"
	"github.com/amirphl/url-shortener/utils"
)

// AliasGenerator produces aliases not held by any link, active or deleted
type AliasGenerator interface {
	GenerateUniqueAlias(ctx context.Context) (string, error)
}

// AliasGeneratorImpl draws random candidates until the store reports one free.
// Aliases are AliasRandomBytes random bytes hex-encoded to AliasLength lowercase characters.
type AliasGeneratorImpl struct {
	repo   repository.ShortLinkRepository
	random io.Reader
}

func NewAliasGenerator(repo repository.ShortLinkRepository) AliasGenerator {
	return &AliasGeneratorImpl{repo: repo, random: rand.Reader}
}

func (g *AliasGeneratorImpl) GenerateUniqueAlias(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate, err := g.newCandidate()
		if err != nil {
			return "", err
		}

		existing, err := g.repo.ByAlias(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check alias availability: %w", err)
		}
		if existing == nil {
			return candidate, nil
		}
		aliasCollisionsTotal.Inc()
	}
}

func (g *AliasGeneratorImpl) newCandidate() (string, error) {
	buf := make([]byte, utils.AliasRandomBytes)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
