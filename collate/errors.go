package collate

import (
	"errors"
	"fmt"
)

// ErrProportion reports a text-first proportion outside the closed interval
// [0.0, 1.0].
var ErrProportion = errors.New("proportion must be in [0.0, 1.0]")

// ErrNoCaptions reports an example whose caption list is empty.
var ErrNoCaptions = errors.New("example has no captions")

// ShapeMismatchError reports an image span that does not fit inside its row's
// real tokens. It is only produced when bounds checking is enabled; the
// default behavior lets the mask run into padding, matching the layout
// formulas exactly.
type ShapeMismatchError struct {
	Row    int // batch index of the offending example
	Offset int // computed image start offset
	Length int // real token count of the row
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("image span [%d, %d) exceeds the %d real tokens of row %d",
		e.Offset, e.Offset+imageLen, e.Length, e.Row)
}
