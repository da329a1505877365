package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funnel-readiness/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFunnel_YAML(t *testing.T) {
	f, err := LoadFunnel("testdata/launch.yaml")
	require.NoError(t, err)

	assert.Equal(t, "launch", f.ID)
	require.Len(t, f.Steps, 4)
	assert.Equal(t, model.PageConfig{Path: "/free-guide"}, f.Steps[0].Config)

	checkout := f.Steps[1].Config.(model.CheckoutConfig)
	assert.Equal(t, []model.LineItem{{PriceID: "course", Quantity: 1}, {PriceID: "club", Quantity: 1}}, checkout.Items)
	assert.Equal(t, 2, checkout.ScreensMode)
	assert.Equal(t, "upsell", checkout.OnSuccessStepID)

	offer := f.Steps[2].Config.(model.OfferConfig)
	assert.Equal(t, "coaching", offer.PriceID())
	assert.False(t, offer.Routing.Complete())

	assert.Equal(t, model.ThankYouConfig{}, f.Steps[3].Config)
}

func TestLoadPrices_YAML(t *testing.T) {
	prices, err := LoadPrices("testdata/prices.yaml")
	require.NoError(t, err)
	require.Len(t, prices, 4)

	assert.Equal(t, model.Price{
		ID: "course", ProductID: "prod_course", UnitAmount: 19700, Currency: "usd",
		Billing: model.Billing{Type: model.BillingOneTime}, StripePriceID: "price_course",
	}, prices[0])
	assert.Equal(t, model.Billing{Type: model.BillingRecurring, Interval: "month"}, prices[1].Billing)
}

func TestLoadFunnel_JSON(t *testing.T) {
	path := writeFile(t, "f.json", `{"id":"f1","steps":[{"id":"o1","kind":"offer","config":{"catalogPriceId":null}}]}`)

	f, err := LoadFunnel(path)
	require.NoError(t, err)
	require.Len(t, f.Steps, 1)
	assert.Equal(t, "", f.Steps[0].Config.(model.OfferConfig).PriceID())
}

func TestLoadFunnel_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing id", `{"steps":[]}`},
		{"unknown kind", `{"id":"f","steps":[{"id":"s","kind":"upsell_video"}]}`},
		{"step without id", `{"id":"f","steps":[{"kind":"page"}]}`},
		{"bad screens mode", `{"id":"f","steps":[{"id":"c","kind":"checkout","config":{"screensMode":3}}]}`},
		{"zero quantity", `{"id":"f","steps":[{"id":"c","kind":"checkout","config":{"items":[{"priceId":"p","quantity":0}]}}]}`},
		{"item without price", `{"id":"f","steps":[{"id":"c","kind":"checkout","config":{"items":[{"quantity":1}]}}]}`},
		{"numeric offer price", `{"id":"f","steps":[{"id":"o","kind":"offer","config":{"catalogPriceId":42}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFunnel(writeFile(t, "f.json", tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid funnel document")
		})
	}
}

func TestLoadFunnel_RepeatedStepID(t *testing.T) {
	doc := `
id: f
steps:
  - id: s1
    kind: offer
  - id: s1
    kind: page
`
	_, err := LoadFunnel(writeFile(t, "dup.yaml", doc))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDuplicateStepID))
	assert.Contains(t, err.Error(), "step s1")
}

func TestLoadPrices_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no prices key", `{}`},
		{"bad billing type", `{"prices":[{"id":"p","billing":{"type":"lifetime"}}]}`},
		{"recurring without interval", `{"prices":[{"id":"p","billing":{"type":"recurring"}}]}`},
		{"negative amount", `{"prices":[{"id":"p","unitAmount":-1,"billing":{"type":"one_time"}}]}`},
		{"fractional amount", `{"prices":[{"id":"p","unitAmount":9.5,"billing":{"type":"one_time"}}]}`},
		{"upper-case currency", `{"prices":[{"id":"p","currency":"USD","billing":{"type":"one_time"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPrices(writeFile(t, "p.json", tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid prices document")
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := LoadFunnel(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadFunnel(writeFile(t, "bad.yaml", "id: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse yaml")

	_, err = LoadFunnel(writeFile(t, "bad.json", "{"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse json")
}

func TestDecode_UnknownKind(t *testing.T) {
	var out map[string]any
	err := Decode("coupons", []byte(`{}`), false, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown document kind")
}

func TestIsYAML(t *testing.T) {
	assert.True(t, isYAML("a.yaml"))
	assert.True(t, isYAML("a.YML"))
	assert.False(t, isYAML("a.json"))
	assert.False(t, isYAML("a"))
}
