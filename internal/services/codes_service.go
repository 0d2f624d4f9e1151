package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/vitrine/internal/models"
	"github.com/example/vitrine/internal/utils"
)

// GTINPrefix is the GS1 Brasil country prefix.
const GTINPrefix = "789"

const gtinAttempts = 10

var ErrGTINExhausted = errors.New("could not allocate a unique GTIN")

// CodeService allocates product SKUs and EAN-13 barcodes.
type CodeService struct {
	db *gorm.DB
}

func NewCodeService(db *gorm.DB) *CodeService {
	return &CodeService{db: db}
}

// SKUPrefix builds the "CAT-BRA" part of a SKU from category and brand names.
func SKUPrefix(category, brand string) string {
	return namePart(category, "GEN") + "-" + namePart(brand, "GEN")
}

func namePart(name, fallback string) string {
	plain := utils.StripAccents(name)

	var b strings.Builder
	for _, r := range strings.ToUpper(plain) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == 3 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

// FormatSKU renders the sequence number of a prefix.
func FormatSKU(prefix string, seq int) string {
	return fmt.Sprintf("%s-%04d", prefix, seq)
}

// GenerateSKU returns the next free SKU for the category and brand.
func (s *CodeService) GenerateSKU(ctx context.Context, category, brand string) (string, error) {
	prefix := SKUPrefix(category, brand)
	seq := models.CodeSequence{Prefix: prefix, Last: 1}

	err := s.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "prefix"}},
			DoUpdates: clause.Assignments(map[string]any{"last": gorm.Expr("code_sequences.last + 1")}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "last"}}},
	).Create(&seq).Error
	if err != nil {
		return "", fmt.Errorf("allocate sku: %w", err)
	}
	return FormatSKU(prefix, seq.Last), nil
}

// EAN13CheckDigit computes the GS1 check digit for a 12-digit body.
func EAN13CheckDigit(body string) (byte, error) {
	if len(body) != 12 {
		return 0, fmt.Errorf("ean-13 body must have 12 digits, got %d", len(body))
	}
	sum := 0
	for i := 0; i < 12; i++ {
		d := body[i]
		if d < '0' || d > '9' {
			return 0, fmt.Errorf("ean-13 body contains %q", d)
		}
		weight := 1
		if i%2 == 1 {
			weight = 3
		}
		sum += int(d-'0') * weight
	}
	return byte('0' + (10-sum%10)%10), nil
}

// ValidGTIN reports whether code is a well-formed EAN-13.
func ValidGTIN(code string) bool {
	if len(code) != 13 {
		return false
	}
	check, err := EAN13CheckDigit(code[:12])
	return err == nil && check == code[12]
}

func randomGTIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000_000))
	if err != nil {
		return "", err
	}
	body := fmt.Sprintf("%s%09d", GTINPrefix, n.Int64())
	check, err := EAN13CheckDigit(body)
	if err != nil {
		return "", err
	}
	return body + string(check), nil
}

// GenerateGTIN returns an EAN-13 not used by any stored product.
func (s *CodeService) GenerateGTIN(ctx context.Context) (string, error) {
	for i := 0; i < gtinAttempts; i++ {
		code, err := randomGTIN()
		if err != nil {
			return "", err
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("gtin = ?", code).Count(&count).Error; err != nil {
			return "", fmt.Errorf("check gtin: %w", err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", ErrGTINExhausted
}
