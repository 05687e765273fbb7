package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractCodes(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{name: "single", text: "quero o C100", want: []string{"C100"}},
		{name: "lowercase and repeats collapse", text: "c100, C100 e c205!", want: []string{"C100", "C205"}},
		{name: "word bounded", text: "XC100 C100a C1234567 (C7)", want: []string{"C7"}},
		{name: "six digits max", text: "C123456", want: []string{"C123456"}},
		{name: "none", text: "bom dia grupo", want: nil},
		{name: "emoji adjacent", text: "🔥C42🔥", want: []string{"C42"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ExtractCodes(tc.text))
		})
	}
}
