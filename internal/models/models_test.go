package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.Open("host=localhost user=vitrine dbname=vitrine sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Discard,
	})
	require.NoError(t, err)
	return db
}

// insertedValue returns the value bound for column in a single-row INSERT.
func insertedValue(t *testing.T, stmt *gorm.Statement, column string) (any, bool) {
	t.Helper()
	sql := stmt.SQL.String()
	open, end := strings.Index(sql, "("), strings.Index(sql, ")")
	require.True(t, open >= 0 && end > open, sql)

	for i, name := range strings.Split(sql[open+1:end], ",") {
		if strings.Trim(name, `" `) == column {
			require.Less(t, i, len(stmt.Vars), sql)
			return stmt.Vars[i], true
		}
	}
	return nil, false
}

func TestCreateKeepsInactiveFlag(t *testing.T) {
	db := dryRunDB(t)

	rows := map[string]any{
		"product":           &Product{Name: "oculto"},
		"category":          &Category{Name: "Bolsas"},
		"subcategory":       &Subcategory{Name: "Couro"},
		"homepage category": &HomepageCategory{Title: "Destaques"},
		"featured product":  &FeaturedProduct{},
		"testimonial":       &Testimonial{CustomerName: "Ana"},
		"shipping method":   &ShippingMethod{Name: "PAC"},
		"knowledge base":    &KnowledgeBaseEntry{Question: "Prazo?"},
	}

	for name, row := range rows {
		stmt := db.Session(&gorm.Session{}).Create(row).Statement
		value, ok := insertedValue(t, stmt, "active")
		require.True(t, ok, "%s: active column missing from %s", name, stmt.SQL.String())
		assert.Equal(t, false, value, name)
	}
}

func TestApplyDefaultsStartsActive(t *testing.T) {
	testimonial := &Testimonial{}
	testimonial.ApplyDefaults()
	assert.True(t, testimonial.Active)

	shipping := &ShippingMethod{}
	shipping.ApplyDefaults()
	assert.True(t, shipping.Active)
}
