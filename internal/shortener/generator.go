package shortener

import (
	"fmt"

	"github.com/dsemenov/linkshrink/internal/entity"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// codeAlphabet is the 62-character alphabet used for generated short codes.
const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	minAliasLength = 1
	maxAliasLength = 50
)

// reservedAliases are path segments claimed by the HTTP surface. A link
// allocated under one of them would be shadowed by a static route and could
// never resolve.
var reservedAliases = map[string]struct{}{
	"api":     {},
	"docs":    {},
	"health":  {},
	"swagger": {},
}

// Generator produces candidate short codes and validates caller-supplied aliases.
// It is pure: uniqueness is the allocation loop's responsibility, not the generator's.
type Generator struct {
	length int
}

func NewGenerator(length int) *Generator {
	return &Generator{length: length}
}

// Generate returns a random candidate short code of the configured length.
func (g *Generator) Generate() (string, error) {
	const op = "shortener.Generator.Generate"

	code, err := gonanoid.Generate(codeAlphabet, g.length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}

// ValidateAlias checks a caller-supplied alias against the allowed charset,
// the length policy and the reserved path segments. It does not check
// uniqueness.
func (g *Generator) ValidateAlias(alias string) error {
	const op = "shortener.Generator.ValidateAlias"

	if len(alias) < minAliasLength || len(alias) > maxAliasLength {
		return fmt.Errorf("%s: %w", op, entity.ErrInvalidAlias)
	}

	if _, ok := reservedAliases[alias]; ok {
		return fmt.Errorf("%s: %w", op, entity.ErrInvalidAlias)
	}

	for _, r := range alias {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r == '-' || r == '_':
		default:
			return fmt.Errorf("%s: %w", op, entity.ErrInvalidAlias)
		}
	}

	return nil
}
