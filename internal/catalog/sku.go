package catalog

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/utafrali/catalog-sync/pkg/slug"
)

// ErrSKUExhausted is returned when no unused SKU could be generated.
var ErrSKUExhausted = errors.New("could not generate a unique sku")

const (
	skuStemMax      = 24
	skuMaxAttempts  = 16
	skuFallbackStem = "item"
)

// SKUGenerator produces retailer IDs of the form "<name-slug>-<random>".
type SKUGenerator struct {
	random func() string
}

// NewSKUGenerator returns a generator with an 8-hex-digit random suffix.
func NewSKUGenerator() *SKUGenerator {
	return &SKUGenerator{random: func() string {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}}
}

// NewSKUGeneratorWithSource uses random for suffixes. Intended for tests.
func NewSKUGeneratorWithSource(random func() string) *SKUGenerator {
	return &SKUGenerator{random: random}
}

// Generate returns one candidate SKU for name.
func (g *SKUGenerator) Generate(name string) string {
	stem := slug.Generate(name)
	if len(stem) > skuStemMax {
		stem = strings.TrimRight(stem[:skuStemMax], "-")
	}
	if stem == "" {
		stem = skuFallbackStem
	}
	return stem + "-" + g.random()
}

// Assign picks one SKU per name, re-rolling on collision with known SKUs
// and with SKUs already assigned in this call.
func (g *SKUGenerator) Assign(names []string, known map[string]struct{}) ([]string, error) {
	taken := make(map[string]struct{}, len(known)+len(names))
	for k := range known {
		taken[k] = struct{}{}
	}

	skus := make([]string, len(names))
	for i, name := range names {
		sku, err := g.unique(name, taken)
		if err != nil {
			return nil, err
		}
		taken[sku] = struct{}{}
		skus[i] = sku
	}
	return skus, nil
}

func (g *SKUGenerator) unique(name string, taken map[string]struct{}) (string, error) {
	for attempt := 0; attempt < skuMaxAttempts; attempt++ {
		sku := g.Generate(name)
		if _, dup := taken[sku]; !dup {
			return sku, nil
		}
	}
	return "", ErrSKUExhausted
}
