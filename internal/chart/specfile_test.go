package chart

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestReadSpecsFormats(t *testing.T) {
	cases := map[string]string{
		"json list": `[{"type":"bar","x":"region","y":"sales","hue":null,"bins":12}]`,
		"json run":  `{"run_id":"r1","specs":[{"type":"bar","x":"region","y":"sales","hue":"None","bins":12}]}`,
		"yaml list": "- type: bar\n  x: region\n  y: sales\n  hue: null\n  bins: 12\n",
		"yaml run":  "run_id: r1\nspecs:\n  - Type: bar\n    X: region\n    Y: sales\n    bins: 12\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cs, err := ReadSpecs([]byte(body))
			require.NoError(t, err)
			require.Len(t, cs, 1)
			assert.Equal(t, "bar", cs[0]["type"])
			assert.Equal(t, "region", cs[0]["x"])
			assert.Nil(t, cs[0]["hue"])
			assert.Equal(t, 12, bins(cs[0]["bins"]))
		})
	}
}

func TestReadSpecsEmpty(t *testing.T) {
	for _, body := range []string{"[]", "{}", "specs: 3", "[1, 2]"} {
		_, err := ReadSpecs([]byte(body))
		assert.ErrorIs(t, err, ErrNoSpecs, body)
	}
	_, err := ReadSpecs([]byte("[{"))
	assert.Error(t, err)
}

func TestWrittenSpecsReadBack(t *testing.T) {
	tbl := loadTable(t, salesCSV)
	n := NewNormalizer(tbl, DefaultConfig())
	in, err := n.Normalize(Candidate{"type": "scatter", "x": "price", "y": "units", "hue": "region"}, Strict)
	require.NoError(t, err)

	j, err := json.Marshal([]Spec{in})
	require.NoError(t, err)
	y, err := yaml.Marshal(map[string]any{"specs": []Spec{in}})
	require.NoError(t, err)

	for _, data := range [][]byte{j, y} {
		cs, err := ReadSpecs(data)
		require.NoError(t, err)
		require.Len(t, cs, 1)
		out := n.NormalizeAll(cs)
		assert.Equal(t, in.Signature(), out[0].Signature())
		assert.Equal(t, in.Hue, out[0].Hue)
		assert.Equal(t, in.Title, out[0].Title)
	}
}
