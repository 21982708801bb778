// Package collate merges palette-encoded images and captions into tokenized
// training batches, randomly choosing which modality leads and marking the
// token positions the image occupies.
package collate

import (
	"fmt"
	"log/slog"

	"github.com/h4rr9/palette/model"
	"github.com/h4rr9/palette/palette"
)

const imageLen = palette.ImageLen

// leadingTokens is the number of sequence-start tokens the processor prepends
// to every encoded prompt. The image start offsets are computed from this, so
// it must match the processor's actual behavior.
const leadingTokens = 1

// Kind reports which modality leads an example's prompt.
type Kind int32

const (
	KindImageFirst Kind = iota
	KindTextFirst
)

func (k Kind) String() string {
	switch k {
	case KindImageFirst:
		return "image-first"
	case KindTextFirst:
		return "text-first"
	default:
		return fmt.Sprintf("Kind(%d)", int32(k))
	}
}

// Example is one training record: a palette-encoded image and one or more
// equivalent captions. A single-caption example uses its caption verbatim;
// a multi-caption example has one caption drawn per collation.
type Example struct {
	Image    string
	Captions []string
}

// Record is one collated batch. Rows are padded to the longest sequence in
// the batch, padding on the right; Kinds carries each example's Kind as an
// integer for downstream numeric consumers.
type Record struct {
	InputIDs      [][]int32 `json:"input_ids"`
	AttentionMask [][]int32 `json:"attention_mask"`
	ImageMasks    [][]bool  `json:"image_masks"`
	Kinds         []int32   `json:"kinds"`
}

// Composer builds Records from batches of Examples. It holds no state beyond
// its collaborators: every Collate call is independent except for the draws
// it consumes from the Source.
type Composer struct {
	processor   model.TextProcessor
	source      Source
	p           float64
	checkBounds bool
}

type Option func(*Composer)

// WithBoundsCheck makes Collate fail with a ShapeMismatchError when an image
// span would extend past its row's real tokens, instead of silently masking
// into padding.
func WithBoundsCheck() Option {
	return func(c *Composer) {
		c.checkBounds = true
	}
}

// New returns a Composer that makes a fraction p of its prompts text-first.
// p must lie in [0.0, 1.0]; note that p is an approximate proportion, not an
// exact one, since each example draws its own coin.
func New(processor model.TextProcessor, source Source, p float64, opts ...Option) (*Composer, error) {
	if p < 0.0 || p > 1.0 {
		return nil, fmt.Errorf("%w, got %v", ErrProportion, p)
	}

	c := &Composer{
		processor: processor,
		source:    source,
		p:         p,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Collate tokenizes a batch. Each example keeps its batch position; none are
// skipped, reordered, or deduplicated. Tokenization failures propagate
// unmodified.
func (c *Composer) Collate(batch []Example) (*Record, error) {
	prompts := make([]string, len(batch))
	offsets := make([]int, len(batch))
	kinds := make([]int32, len(batch))

	for i, example := range batch {
		if len(example.Captions) == 0 {
			return nil, fmt.Errorf("example %d: %w", i, ErrNoCaptions)
		}

		// at p == 0 the draw lands in [0, 1) so this is never true; at
		// p == 1 it is true for everything but an exact zero draw
		textFirst := c.source.Float64() > 1.0-c.p
		caption := choose(c.source, example.Captions)

		if textFirst {
			prompts[i] = palette.TextFirstToken + caption + palette.ImageToken + example.Image

			// the image span starts after the sequence-start tokens, the
			// [TextFirst] marker, the caption, and the [Image] marker
			ids, err := c.processor.Encode(caption, false)
			if err != nil {
				return nil, fmt.Errorf("example %d: %w", i, err)
			}

			offsets[i] = leadingTokens + 2 + len(ids)
			kinds[i] = int32(KindTextFirst)
		} else {
			prompts[i] = palette.ImageFirstToken + example.Image + palette.TextToken + caption

			// only the sequence-start tokens and the [ImageFirst] marker
			// precede the image span
			offsets[i] = leadingTokens + 1
			kinds[i] = int32(KindImageFirst)
		}
	}

	rows := make([][]int32, len(batch))
	var width int
	for i, prompt := range prompts {
		ids, err := c.processor.Encode(prompt, true)
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}

		rows[i] = ids
		width = max(width, len(ids))
	}

	record := &Record{
		InputIDs:      make([][]int32, len(batch)),
		AttentionMask: make([][]int32, len(batch)),
		ImageMasks:    make([][]bool, len(batch)),
		Kinds:         kinds,
	}

	for i, ids := range rows {
		if c.checkBounds && offsets[i]+imageLen > len(ids) {
			return nil, &ShapeMismatchError{Row: i, Offset: offsets[i], Length: len(ids)}
		}

		record.InputIDs[i] = make([]int32, width)
		copy(record.InputIDs[i], ids)

		record.AttentionMask[i] = make([]int32, width)
		for j := range ids {
			record.AttentionMask[i][j] = 1
		}

		record.ImageMasks[i] = make([]bool, width)
		for j := offsets[i]; j < min(offsets[i]+imageLen, width); j++ {
			record.ImageMasks[i][j] = true
		}
	}

	slog.Debug("collated batch", "examples", len(batch), "width", width)
	return record, nil
}
