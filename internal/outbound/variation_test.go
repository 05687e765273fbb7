package outbound

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wacart-backend/pkg/enums"
)

type constRandom struct {
	f float64
	n int64
}

func (r constRandom) Float64() float64 { return r.f }

func (r constRandom) Int63n(n int64) int64 {
	if r.n >= n {
		return n - 1
	}
	return r.n
}

var alwaysVary = VariationConfig{GreetingProbability: 1, EmojiSwapProbability: 1, ZeroWidthProbability: 1}

func TestVaryKeepsSignificantTokens(t *testing.T) {
	text := "✅ C0100 - Blusa (R$ 49,90) https://loja.example.com/checkout?o=1"
	v := NewVariator(alwaysVary, NewRandom(3))

	for i := 0; i < 50; i++ {
		out := v.Vary(text, enums.ChannelBatch)
		plain := StripVariation(out)
		for _, token := range []string{"C0100", "R$ 49,90", "https://loja.example.com/checkout?o=1"} {
			require.Contains(t, plain, token)
		}
		require.NotContains(t, plain, "✅", "emoji is swapped")
	}
}

func TestVaryGreetingOnlyForBatch(t *testing.T) {
	cfg := VariationConfig{GreetingProbability: 1}
	v := NewVariator(cfg, constRandom{f: 0, n: 0})

	assert.Equal(t, "Oi! Seu pedido", v.Vary("Seu pedido", enums.ChannelBatch))
	assert.Equal(t, "Seu pedido", v.Vary("Seu pedido", enums.ChannelLive))
}

func TestVaryZeroProbabilitiesIsIdentity(t *testing.T) {
	v := NewVariator(VariationConfig{}, constRandom{f: 0})
	assert.Equal(t, "✅ C1 ok", v.Vary("✅ C1 ok", enums.ChannelBatch))
}

func TestZeroWidthPlacement(t *testing.T) {
	v := NewVariator(VariationConfig{ZeroWidthProbability: 1}, constRandom{f: 0, n: 0})
	assert.Equal(t, "a \u200bb c", v.Vary("a b c", enums.ChannelLive))
	assert.Equal(t, "C100\u200b", v.Vary("C100", enums.ChannelLive))
}

func TestSwapEmoji(t *testing.T) {
	assert.Equal(t, "🙂 oi 😊", swapEmoji("😊 oi 😊"))
	assert.Equal(t, "sem emoji", swapEmoji("sem emoji"))
}

func TestFormatMoney(t *testing.T) {
	cases := map[string]string{
		"0":          "R$ 0,00",
		"10.5":       "R$ 10,50",
		"999.99":     "R$ 999,99",
		"1234.5":     "R$ 1.234,50",
		"1234567.89": "R$ 1.234.567,89",
		"-3.25":      "-R$ 3,25",
	}
	for raw, want := range cases {
		assert.Equal(t, want, FormatMoney(decimal.RequireFromString(raw)), raw)
	}
}

func TestTemplatesCarryOrderData(t *testing.T) {
	text := ItemAddedText("C100", "Blusa", decimal.RequireFromString("49.90"), 2, decimal.RequireFromString("99.80"))
	assert.True(t, strings.Contains(text, "C100 - Blusa (R$ 49,90)"))
	assert.Contains(t, text, "Quantidade: 2")
	assert.Contains(t, text, "R$ 99,80")

	assert.Contains(t, CheckoutLinkText(decimal.RequireFromString("10"), "https://x.test/c"), "https://x.test/c")
	assert.Contains(t, ProductUnavailableText("C9", "Saia"), "C9 - Saia")
}
