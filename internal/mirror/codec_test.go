package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpatata/scrapers/internal/record"
)

func questionDoc() record.Doc {
	return record.Doc{
		"_sources":   []any{"http://x/1"},
		"answers":    []any{},
		"by":         []any{map[string]any{"mp_id": "m1"}},
		"date":       "2020-05-01",
		"heading":    "H",
		"identifier": "1",
		"text":       "T",
	}
}

func TestMarshalCanonicalBytes(t *testing.T) {
	t.Parallel()

	out, err := Marshal(questionDoc())
	require.NoError(t, err)
	assert.Equal(t, `_sources:
  - http://x/1
answers: []
by:
  - mp_id: m1
date: "2020-05-01"
heading: H
identifier: "1"
text: T
`, string(out))
}

func TestMarshalIsDeterministic(t *testing.T) {
	t.Parallel()

	first, err := Marshal(questionDoc())
	require.NoError(t, err)
	second, err := Marshal(questionDoc())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMarshalUsesLiteralBlocksForMultilineText(t *testing.T) {
	t.Parallel()

	out, err := Marshal(record.Doc{
		"text": "Πρώτη γραμμή\nΔεύτερη γραμμή",
	})
	require.NoError(t, err)
	assert.Equal(t, "text: |-\n  Πρώτη γραμμή\n  Δεύτερη γραμμή\n", string(out))
}

func TestRoundTripIdentity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		doc  record.Doc
	}{
		{"question", questionDoc()},
		{"empty optionals", record.Doc{
			"answers":  []any{},
			"date":     "2014-01-30",
			"answered": nil,
		}},
		{"nested multilingual names", record.Doc{
			"name": map[string]any{
				"el": "Βουλή των Αντιπροσώπων",
				"en": "House of Representatives",
			},
			"other_name": nil,
		}},
		{"nested lists of objects", record.Doc{
			"agenda": map[string]any{
				"cap1": []any{"23.06.010.02.337", "23.06.010.02.338"},
				"cap2": []any{},
			},
			"links": []any{
				map[string]any{"type": "agenda", "url": "http://x/a"},
				map[string]any{"type": "transcript", "url": "http://x/t"},
			},
		}},
		{"scalar types", record.Doc{
			"attendees": 42,
			"concluded": true,
			"ratio":     0.5,
			"slug":      "q1",
			"date":      "2020-05-01",
			"text":      "Α\nΒ\nΓ",
		}},
		{"whole floats stay floats", record.Doc{
			"quorum": 2.0,
			"share":  56.0,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Marshal(tc.doc)
			require.NoError(t, err)
			back, err := Unmarshal(out)
			require.NoError(t, err)
			assert.Equal(t, tc.doc, back)
		})
	}
}

func TestMarshalKeepsDecimalPointOnWholeFloats(t *testing.T) {
	t.Parallel()

	out, err := Marshal(record.Doc{"quorum": 2.0})
	require.NoError(t, err)
	assert.Equal(t, "quorum: 2.0\n", string(out))
}

func TestRoundTripIsStableAcrossReserialization(t *testing.T) {
	t.Parallel()

	first, err := Marshal(questionDoc())
	require.NoError(t, err)
	back, err := Unmarshal(first)
	require.NoError(t, err)
	second, err := Marshal(back)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestUnmarshalRejectsNonMappingBody(t *testing.T) {
	t.Parallel()

	_, err := Unmarshal([]byte("- a\n- b\n"))
	assert.Error(t, err)

	_, err = Unmarshal([]byte("just a scalar\n"))
	assert.Error(t, err)
}

func TestUnmarshalKeepsUnquotedDatesAsStrings(t *testing.T) {
	t.Parallel()

	doc, err := Unmarshal([]byte("date: 2020-05-01\nsitting: 7\n"))
	require.NoError(t, err)
	assert.Equal(t, "2020-05-01", doc["date"])
	assert.Equal(t, 7, doc["sitting"])
}
