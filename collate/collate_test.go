package collate

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/stat"

	"github.com/h4rr9/palette/model"
	"github.com/h4rr9/palette/palette"
)

// scriptedSource replays fixed draws so tests control every branch.
type scriptedSource struct {
	draws []float64
	picks []int
}

func (s *scriptedSource) Float64() float64 {
	v := s.draws[0]
	s.draws = s.draws[1:]
	return v
}

func (s *scriptedSource) Intn(n int) int {
	p := s.picks[0] % n
	s.picks = s.picks[1:]
	return p
}

// testProcessor builds a prepared byte pair encoder over a tiny word-level
// vocabulary. Ids 0..6 are the base entries; the pixel tokens follow from 7
// ([000] is id 7) and the four markers take the last four ids.
func testProcessor(t *testing.T) model.TextProcessor {
	t.Helper()

	vocab := &model.Vocabulary{
		Values: []string{"<s>", "a", "cat", "dog", "Ġcat", "Ġdog", "Ġfeline"},
		Types: []int32{
			model.TOKEN_TYPE_CONTROL,
			model.TOKEN_TYPE_NORMAL,
			model.TOKEN_TYPE_NORMAL,
			model.TOKEN_TYPE_NORMAL,
			model.TOKEN_TYPE_NORMAL,
			model.TOKEN_TYPE_NORMAL,
			model.TOKEN_TYPE_NORMAL,
		},
		BOS:    []int32{0},
		AddBOS: true,
	}

	return palette.Prepare(model.NewBytePairEncoding(vocab))
}

func pixel(index int) int32 {
	return int32(7 + index)
}

func TestNewValidatesProportion(t *testing.T) {
	processor := testProcessor(t)

	for _, p := range []float64{0.0, 0.5, 1.0} {
		if _, err := New(processor, NewSource(0), p); err != nil {
			t.Errorf("New(p=%v) returned %v, want nil", p, err)
		}
	}

	for _, p := range []float64{-0.1, 1.1, 2.0} {
		if _, err := New(processor, NewSource(0), p); !errors.Is(err, ErrProportion) {
			t.Errorf("New(p=%v) returned %v, want ErrProportion", p, err)
		}
	}
}

func TestCollateImageFirst(t *testing.T) {
	composer, err := New(testProcessor(t), &scriptedSource{
		// drawn from [0, 1): with p == 0 no draw can force text-first
		draws: []float64{0.999999, 0.0},
	}, 0.0)
	if err != nil {
		t.Fatal(err)
	}

	record, err := composer.Collate([]Example{
		{Image: "[012][045]", Captions: []string{"cat"}},
		{Image: "[003][099]", Captions: []string{"dog"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]int32{0, 0}, record.Kinds); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}

	want := [][]int32{
		{0, 519, pixel(12), pixel(45), 522, 2},
		{0, 519, pixel(3), pixel(99), 522, 3},
	}
	if diff := cmp.Diff(want, record.InputIDs); diff != "" {
		t.Errorf("input ids mismatch (-want +got):\n%s", diff)
	}

	for row, mask := range record.ImageMasks {
		// the image span starts right after the sequence-start token and
		// the [ImageFirst] marker, and here spills over the short image
		// into the rest of the row
		for j, masked := range mask {
			if want := j >= 2; masked != want {
				t.Errorf("row %d mask[%d] = %v, want %v", row, j, masked, want)
			}
		}
	}
}

func TestCollateTextFirst(t *testing.T) {
	composer, err := New(testProcessor(t), &scriptedSource{
		draws: []float64{0.000001}, // any nonzero draw is text-first at p == 1
		picks: []int{1},
	}, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	record, err := composer.Collate([]Example{
		{Image: "[012][045]", Captions: []string{"a cat", "a feline"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]int32{1}, record.Kinds); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}

	// exactly the chosen caption appears, tokenized as "a" + "Ġfeline"
	want := [][]int32{{0, 520, 1, 6, 521, pixel(12), pixel(45)}}
	if diff := cmp.Diff(want, record.InputIDs); diff != "" {
		t.Errorf("input ids mismatch (-want +got):\n%s", diff)
	}

	// offset = sequence start + [TextFirst] + caption tokens + [Image]
	for j, masked := range record.ImageMasks[0] {
		if want := j >= 5; masked != want {
			t.Errorf("mask[%d] = %v, want %v", j, masked, want)
		}
	}
}

func TestCollatePadding(t *testing.T) {
	composer, err := New(testProcessor(t), &scriptedSource{
		draws: []float64{0.5, 0.5},
	}, 0.0)
	if err != nil {
		t.Fatal(err)
	}

	record, err := composer.Collate([]Example{
		{Image: "[000]", Captions: []string{"a cat"}},
		{Image: "[000]", Captions: []string{"cat"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	// first row has one more caption token; second row is padded up to it
	wantAttention := [][]int32{
		{1, 1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1, 0},
	}
	if diff := cmp.Diff(wantAttention, record.AttentionMask); diff != "" {
		t.Errorf("attention mismatch (-want +got):\n%s", diff)
	}

	if id := record.InputIDs[1][5]; id != 0 {
		t.Errorf("padding id = %d, want 0", id)
	}
}

func TestCollateFullImage(t *testing.T) {
	processor := testProcessor(t)

	composer, err := New(processor, &scriptedSource{
		draws: []float64{0.3},
	}, 0.0)
	if err != nil {
		t.Fatal(err)
	}

	image := strings.Repeat("[007]", palette.ImageLen)
	record, err := composer.Collate([]Example{
		{Image: image, Captions: []string{"a cat"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	var tokens int32
	for _, v := range record.AttentionMask[0] {
		tokens += v
	}

	// sequence start + [ImageFirst] + image + [Text] + "a" + "Ġcat"
	if want := int32(palette.ImageLen + 5); tokens != want {
		t.Errorf("attention sum = %d, want %d", tokens, want)
	}

	var masked []int32
	for j, m := range record.ImageMasks[0] {
		if m {
			masked = append(masked, record.InputIDs[0][j])
		}
	}

	if len(masked) != palette.ImageLen {
		t.Fatalf("masked %d positions, want %d", len(masked), palette.ImageLen)
	}

	// the masked span decodes back to the image string exactly
	decoded, err := processor.Decode(masked)
	if err != nil {
		t.Fatal(err)
	}

	if decoded != image {
		t.Errorf("masked span decodes to %d bytes, want the original image", len(decoded))
	}
}

func TestCollateBoundsCheck(t *testing.T) {
	processor := testProcessor(t)
	source := &scriptedSource{draws: []float64{0.5, 0.5}}

	composer, err := New(processor, source, 0.0, WithBoundsCheck())
	if err != nil {
		t.Fatal(err)
	}

	_, err = composer.Collate([]Example{
		{Image: "[012][045]", Captions: []string{"cat"}},
	})

	var mismatch *ShapeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Collate returned %v, want ShapeMismatchError", err)
	}

	if mismatch.Row != 0 || mismatch.Offset != 2 || mismatch.Length != 6 {
		t.Errorf("mismatch = %+v, want row 0 offset 2 length 6", mismatch)
	}

	// the same batch passes without the check, masking into the row
	composer, err = New(processor, source, 0.0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := composer.Collate([]Example{
		{Image: "[012][045]", Captions: []string{"cat"}},
	}); err != nil {
		t.Errorf("Collate without bounds check returned %v", err)
	}
}

func TestCollateNoCaptions(t *testing.T) {
	composer, err := New(testProcessor(t), NewSource(0), 0.0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := composer.Collate([]Example{{Image: "[000]"}}); !errors.Is(err, ErrNoCaptions) {
		t.Errorf("Collate returned %v, want ErrNoCaptions", err)
	}
}

func TestCollateProportionConverges(t *testing.T) {
	composer, err := New(testProcessor(t), NewSource(42), 0.7)
	if err != nil {
		t.Fatal(err)
	}

	batch := make([]Example, 8)
	for i := range batch {
		batch[i] = Example{Image: "[000]", Captions: []string{"cat"}}
	}

	var kinds []float64
	for i := 0; i < 250; i++ {
		record, err := composer.Collate(batch)
		if err != nil {
			t.Fatal(err)
		}

		for _, kind := range record.Kinds {
			if kind != 0 && kind != 1 {
				t.Fatalf("kind = %d, want 0 or 1", kind)
			}

			kinds = append(kinds, float64(kind))
		}
	}

	if mean := stat.Mean(kinds, nil); mean < 0.65 || mean > 0.75 {
		t.Errorf("text-first fraction = %.3f, want approximately 0.7", mean)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindImageFirst: "image-first",
		KindTextFirst:  "text-first",
		Kind(7):        "Kind(7)",
	}

	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int32(kind), got, want)
		}
	}
}
