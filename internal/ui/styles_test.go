package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amoca-labs/amoca/internal/catalog"
)

func TestFormattersKeepMessage(t *testing.T) {
	formatters := map[string]func(string) string{
		"Success": Success,
		"Warn":    Warn,
		"Err":     Err,
		"Info":    Info,
		"Hint":    Hint,
		"Addr":    Addr,
		"Val":     Val,
		"Meta":    Meta,
	}
	for name, fn := range formatters {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, fn("test"), "test")
		})
	}
}

func TestPrefixes(t *testing.T) {
	assert.Contains(t, Success("done"), "✓")
	assert.Contains(t, Warn("careful"), "⚠")
	assert.Contains(t, Err("failed"), "✗")
	assert.NotEqual(t, Info("m"), Hint("m"))
}

// ---------------------------------------------------------------------------
// TruncateAddr
// ---------------------------------------------------------------------------

func TestTruncateAddrBase58(t *testing.T) {
	assert.Equal(t, "vine...KPTg", TruncateAddr("vines1vzrYbzLMRdu58ou5XTby4qAqVRLmqo36NKPTg"))
	assert.Equal(t, "ABCD...WXYZ", TruncateAddr("ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
}

func TestTruncateAddrShort(t *testing.T) {
	assert.Equal(t, "", TruncateAddr(""))
	assert.Equal(t, "ABCDEFGHIJK", TruncateAddr("ABCDEFGHIJK"))
}

// ---------------------------------------------------------------------------
// Category colours
// ---------------------------------------------------------------------------

func TestCategoryColor(t *testing.T) {
	assert.Equal(t, ColorSolar, CategoryColor(catalog.CategorySolar))
	assert.Equal(t, ColorWind, CategoryColor(catalog.CategoryWind))
	for _, c := range []catalog.Category{catalog.CategoryHydro, catalog.CategoryConservation, catalog.CategoryAgriculture, catalog.CategoryOther} {
		assert.Equal(t, ColorGreen, CategoryColor(c), string(c))
	}
}

func TestBadgeShowsCategory(t *testing.T) {
	assert.Contains(t, Badge(catalog.CategoryHydro), "hydro")
}
