package collate

import (
	"golang.org/x/exp/rand"
)

// Source supplies the randomness a Composer consumes: uniform draws in [0, 1)
// and uniform index choices. A Source is not locked by the composer; callers
// running parallel loaders must give each worker its own.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// NewSource returns a seeded Source. The same seed yields the same draw
// sequence, which is how tests and reproducible runs pin their batches.
func NewSource(seed uint64) Source {
	return rand.New(rand.NewSource(seed))
}

func choose(source Source, captions []string) string {
	if len(captions) == 1 {
		return captions[0]
	}

	return captions[source.Intn(len(captions))]
}
