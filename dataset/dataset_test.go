package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h4rr9/palette/collate"
)

func TestDecode(t *testing.T) {
	input := `
{"palette_images": "[012][045]", "captions": "a cat"}

{"palette_images": "[003][099]", "captions": ["a dog", "a puppy"]}
`

	d, err := Decode(strings.NewReader(strings.TrimLeft(input, "\n")))
	require.NoError(t, err)

	expected := []collate.Example{
		{Image: "[012][045]", Captions: []string{"a cat"}},
		{Image: "[003][099]", Captions: []string{"a dog", "a puppy"}},
	}

	assert.Equal(t, expected, d.Examples)
}

func TestDecodeBadCaptions(t *testing.T) {
	input := `{"palette_images": "[000]", "captions": 42}`

	_, err := Decode(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestBatches(t *testing.T) {
	d := &Dataset{}
	for i := 0; i < 5; i++ {
		d.Examples = append(d.Examples, collate.Example{Image: "[000]", Captions: []string{"x"}})
	}

	batches := d.Batches(2)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	// the remainder is yielded, not dropped
	assert.Len(t, batches[2], 1)

	assert.Nil(t, d.Batches(0))
	assert.Nil(t, (&Dataset{}).Batches(2))
}

func TestShuffle(t *testing.T) {
	build := func() *Dataset {
		d := &Dataset{}
		for _, image := range []string{"[000]", "[001]", "[002]", "[003]", "[004]", "[005]"} {
			d.Examples = append(d.Examples, collate.Example{Image: image, Captions: []string{"x"}})
		}
		return d
	}

	first := build()
	first.Shuffle(collate.NewSource(7))

	second := build()
	second.Shuffle(collate.NewSource(7))

	// the same seed yields the same permutation
	assert.Equal(t, first.Examples, second.Examples)

	// every example survives the shuffle
	images := make(map[string]bool)
	for _, example := range first.Examples {
		images[example.Image] = true
	}
	assert.Len(t, images, 6)
}
