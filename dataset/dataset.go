// Package dataset reads palette-captioning training data: JSON lines with a
// palette_images string and a captions field holding either one caption or a
// list of equivalent ones.
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/h4rr9/palette/collate"
)

// Captions decodes from either a single JSON string or an array of strings.
type Captions []string

func (c *Captions) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Captions{s}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("captions must be a string or an array of strings: %w", err)
	}

	*c = list
	return nil
}

type record struct {
	PaletteImage string   `json:"palette_images"`
	Captions     Captions `json:"captions"`
}

// Dataset is an ordered, in-memory collection of examples.
type Dataset struct {
	Examples []collate.Example
}

// Open reads a JSONL dataset from a file.
func Open(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a JSONL dataset. Blank lines are skipped; anything else that
// fails to parse is an error naming the line.
func Decode(r io.Reader) (*Dataset, error) {
	var d Dataset

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for line := 1; scanner.Scan(); line++ {
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		d.Examples = append(d.Examples, collate.Example{
			Image:    rec.PaletteImage,
			Captions: rec.Captions,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &d, nil
}

// Shuffle permutes the examples in place using draws from source.
func (d *Dataset) Shuffle(source collate.Source) {
	for i := len(d.Examples) - 1; i > 0; i-- {
		j := source.Intn(i + 1)
		d.Examples[i], d.Examples[j] = d.Examples[j], d.Examples[i]
	}
}

// Batches slices the dataset into consecutive batches of at most size
// examples. The final batch carries the remainder; it is never dropped.
func (d *Dataset) Batches(size int) [][]collate.Example {
	if size <= 0 || len(d.Examples) == 0 {
		return nil
	}

	batches := make([][]collate.Example, 0, (len(d.Examples)+size-1)/size)
	for start := 0; start < len(d.Examples); start += size {
		batches = append(batches, d.Examples[start:min(start+size, len(d.Examples))])
	}

	return batches
}
