// Package palette defines the token vocabulary of palette-encoded images: one
// bracketed color-index token per pixel, plus the structural markers that
// frame an image and its caption inside a single prompt.
package palette

import (
	"fmt"

	"github.com/h4rr9/palette/model"
)

const (
	// ImageDim is the side length every palette image is encoded at.
	ImageDim = 32

	// ImageLen is the number of pixel tokens a palette image occupies.
	ImageLen = ImageDim * ImageDim

	// NumColors is the size of the fixed color palette.
	NumColors = 512
)

const (
	ImageFirstToken = "[ImageFirst]"
	TextFirstToken  = "[TextFirst]"
	ImageToken      = "[Image]"
	TextToken       = "[Text]"
)

// PixelToken formats a color index as its zero-padded bracketed token,
// [000] through [511].
func PixelToken(index int) string {
	return fmt.Sprintf("[%03d]", index)
}

// Tokens returns the full marker vocabulary: NumColors pixel tokens followed
// by the four structural tokens.
func Tokens() []string {
	tokens := make([]string, 0, NumColors+4)
	for i := 0; i < NumColors; i++ {
		tokens = append(tokens, PixelToken(i))
	}

	return append(tokens, ImageFirstToken, TextFirstToken, ImageToken, TextToken)
}

// Prepare registers the marker vocabulary on the processor as atomic tokens
// and returns the processor for downstream use. Preparing an already-prepared
// processor changes nothing.
func Prepare(processor model.TextProcessor) model.TextProcessor {
	processor.Vocabulary().AddTokens(Tokens()...)
	return processor
}
