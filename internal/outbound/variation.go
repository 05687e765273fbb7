package outbound

import (
	"strings"
	"unicode/utf8"

	"github.com/angelmondragon/wacart-backend/pkg/enums"
)

const zeroWidthSpace = "\u200b"

var greetings = []string{
	"Oi! ",
	"Olá! ",
	"Oi, tudo bem? ",
	"Olá, tudo bom? ",
	"Ei! ",
}

// emojiSwaps pairs emojis with a look-alike. Lookups run in slice order so
// results are reproducible for a given seed.
var emojiSwaps = [][2]string{
	{"✅", "✔️"},
	{"😊", "🙂"},
	{"🛒", "🛍️"},
	{"❤️", "💖"},
	{"👍", "👌"},
	{"😔", "😕"},
	{"🎉", "🥳"},
	{"💳", "💰"},
}

// VariationConfig holds the probability of each transform, in [0, 1].
type VariationConfig struct {
	GreetingProbability  float64
	EmojiSwapProbability float64
	ZeroWidthProbability float64
}

// Variator applies small probabilistic transforms to outgoing text so bulk
// sends are not byte-identical. Transforms only touch whitespace boundaries,
// known emojis and the start of the text: codes, URLs and prices survive.
type Variator struct {
	cfg VariationConfig
	rnd Random
}

func NewVariator(cfg VariationConfig, rnd Random) *Variator {
	return &Variator{cfg: cfg, rnd: rnd}
}

func (v *Variator) Vary(text string, channel enums.Channel) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	out := text
	if channel == enums.ChannelBatch && v.roll(v.cfg.GreetingProbability) {
		out = greetings[v.rnd.Int63n(int64(len(greetings)))] + out
	}
	if v.roll(v.cfg.EmojiSwapProbability) {
		out = swapEmoji(out)
	}
	if v.roll(v.cfg.ZeroWidthProbability) {
		out = v.insertZeroWidth(out)
	}
	return out
}

func (v *Variator) roll(p float64) bool {
	return p > 0 && v.rnd.Float64() < p
}

// swapEmoji replaces the first occurrence of the first known emoji found.
func swapEmoji(text string) string {
	for _, pair := range emojiSwaps {
		if strings.Contains(text, pair[0]) {
			return strings.Replace(text, pair[0], pair[1], 1)
		}
	}
	return text
}

// insertZeroWidth places the marker right after a random space, or at the
// end when there is none, so no token is ever split.
func (v *Variator) insertZeroWidth(text string) string {
	var positions []int
	for i, r := range text {
		if r == ' ' {
			positions = append(positions, i+utf8.RuneLen(r))
		}
	}
	if len(positions) == 0 {
		return text + zeroWidthSpace
	}
	at := positions[v.rnd.Int63n(int64(len(positions)))]
	return text[:at] + zeroWidthSpace + text[at:]
}

// StripVariation removes the invisible markers added by Vary.
func StripVariation(text string) string {
	return strings.ReplaceAll(text, zeroWidthSpace, "")
}
