package chart

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseBracketed(t *testing.T) {
	text := "Here you go:\n```json\n[\n" +
		`{"type": "Scatter", "x": "price", "y": "units", "hue": "null", "title": "Price vs units", "bins": 15},` + "\n" +
		`{"Type": "bar", "X": "city", "Y": "price", "hue": "none"}` + "\n" +
		"]\n```\nHope this helps."

	cands, err := ParseResponse(text)
	require.NoError(t, err)
	require.Len(t, cands, 2)

	assert.Equal(t, "Scatter", cands[0]["type"])
	assert.Equal(t, "price", cands[0]["x"])
	assert.Nil(t, cands[0]["hue"])
	assert.Equal(t, 15, bins(cands[0]["bins"]))

	assert.Equal(t, "bar", cands[1]["type"])
	assert.Equal(t, "city", cands[1]["x"])
	assert.Nil(t, cands[1]["hue"])
}

func TestParseResponseMalformedBrackets(t *testing.T) {
	_, err := ParseResponse(`[{"type": "bar", "x": }]`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedModelOutput)

	var mo *MalformedOutputError
	require.ErrorAs(t, err, &mo)
	assert.NotEmpty(t, mo.Snippet)
}

func TestParseResponseLines(t *testing.T) {
	text := `Suggestions:
1. type: bar, x: city, y: price, title: Prices, by city, justification: compare cities, palette: muted
- type: histogram, x: price, y: null, bins: 10
* type: heatmap, x: N/A, y: none, hue: ""
this line has no type at all
x: price, y: units`

	cands, err := ParseResponse(text)
	require.NoError(t, err)
	require.Len(t, cands, 3)

	assert.Equal(t, "bar", cands[0]["type"])
	assert.Equal(t, "Prices, by city", cands[0]["title"])
	assert.Equal(t, "muted", cands[0]["palette"])

	assert.Equal(t, "histogram", cands[1]["type"])
	assert.Nil(t, cands[1]["y"])
	assert.Equal(t, "10", cands[1]["bins"])

	for _, k := range []string{"x", "y", "hue"} {
		v, ok := cands[2][k]
		assert.True(t, ok, k)
		assert.Nil(t, v, k)
	}
}

func TestParseResponseLinesWithBracketsInTitle(t *testing.T) {
	text := "type: bar, x: region, y: sales, title: Sales [EUR] by region\ntype: histogram, x: price, y: null"
	cands, err := ParseResponse(text)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "Sales [EUR] by region", cands[0]["title"])
	assert.Equal(t, "histogram", cands[1]["type"])

	// An array of objects still wins over bracketed prose before it.
	cands, err = ParseResponse("Units [EUR] below:\n[ {\"type\": \"count\", \"x\": \"region\"} ]")
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "count", cands[0]["type"])
}

func TestSnippetKeepsRunes(t *testing.T) {
	s := snippet(strings.Repeat("ß", 100))
	assert.True(t, utf8.ValidString(s))
	assert.Equal(t, 60, utf8.RuneCountInString(s))
}

func TestParseResponseEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "no charts here", "```\n```"} {
		cands, err := ParseResponse(in)
		require.NoError(t, err, in)
		assert.Empty(t, cands, in)
	}
}

func TestParseBracketedSkipsNonObjects(t *testing.T) {
	cands, err := ParseBracketed(`[1, "bar", {"type": "count", "x": "city"}]`)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "count", cands[0]["type"])
}

func TestIsNullToken(t *testing.T) {
	for _, s := range []string{"", "null", "NULL", " None ", "n/a", "N/A", `""`} {
		assert.True(t, IsNullToken(s), s)
	}
	for _, s := range []string{"price", "0", "nullable"} {
		assert.False(t, IsNullToken(s), s)
	}
}
