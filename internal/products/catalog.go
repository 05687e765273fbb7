package products

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/wacart-backend/pkg/db/models"
)

type productFinder interface {
	FindActiveByCodes(ctx context.Context, tenantID uuid.UUID, codes []string) ([]models.Product, error)
}

// Catalog resolves chat codes to active tenant products.
type Catalog struct {
	repo productFinder
}

func NewCatalog(repo productFinder) (*Catalog, error) {
	if repo == nil {
		return nil, errors.New("product repository required")
	}
	return &Catalog{repo: repo}, nil
}

// Resolve returns the product for code, or nil when nothing matches. An exact
// case-insensitive match wins over the tolerant variants.
func (c *Catalog) Resolve(ctx context.Context, tenantID uuid.UUID, code string) (*models.Product, error) {
	candidates := CodeVariants(code)
	if len(candidates) == 0 {
		return nil, nil
	}
	products, err := c.repo.FindActiveByCodes(ctx, tenantID, candidates)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		for i := range products {
			if strings.ToUpper(strings.TrimSpace(products[i].Code)) == candidate {
				return &products[i], nil
			}
		}
	}
	return nil, nil
}

// CodeVariants lists the normalized spellings a stored code may use for the
// chat code, most specific first: "c0100" yields C0100, 0100, C100, 100.
func CodeVariants(code string) []string {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil
	}
	variants := []string{normalized}
	add := func(v string) {
		if v == "" {
			return
		}
		for _, existing := range variants {
			if existing == v {
				return
			}
		}
		variants = append(variants, v)
	}

	digits, hasPrefix := strings.CutPrefix(normalized, "C")
	if !hasPrefix || !isDigits(digits) {
		return variants
	}
	add(digits)
	if trimmed := strings.TrimLeft(digits, "0"); trimmed != "" {
		add("C" + trimmed)
		add(trimmed)
	}
	return variants
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
