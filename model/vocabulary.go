package model

import (
	"log/slog"
	"slices"
	"sync"
)

type Vocabulary struct {
	Values []string
	Types  []int32
	Merges []string

	BOS, EOS       []int32
	AddBOS, AddEOS bool

	specialOnce sync.Once
	special     []string

	valuesOnce sync.Once
	values     map[string]int32

	mergeOnce sync.Once
	merge     map[string]int32
}

func (v *Vocabulary) Is(id int32, special Special) bool {
	switch special {
	case SpecialBOS:
		return slices.Contains(v.BOS, id)
	case SpecialEOS:
		return slices.Contains(v.EOS, id)
	default:
		return false
	}
}

func (v *Vocabulary) addSpecials(ids []int32) []int32 {
	if v.AddBOS && len(v.BOS) > 0 {
		if len(ids) > 0 && slices.Contains(v.BOS, ids[0]) {
			slog.Warn("adding bos token to prompt which already has it", "id", v.BOS)
		}

		slog.Debug("adding bos token to prompt", "id", v.BOS[0])
		ids = append([]int32{v.BOS[0]}, ids...)
	}

	if v.AddEOS && len(v.EOS) > 0 {
		if len(ids) > 0 && slices.Contains(v.EOS, ids[len(ids)-1]) {
			slog.Warn("adding eos token to prompt which already has it", "id", v.EOS)
		}

		slog.Debug("adding eos token to prompt", "id", v.EOS[0])
		ids = append(ids, v.EOS[0])
	}

	return ids
}

func (v *Vocabulary) Encode(s string) int32 {
	v.valuesOnce.Do(func() {
		v.values = make(map[string]int32, len(v.Values))
		for i, value := range v.Values {
			v.values[value] = int32(i)
		}
	})

	if id, ok := v.values[s]; ok {
		return id
	}

	return -1
}

func (v *Vocabulary) Decode(id int32) string {
	return v.Values[id]
}

func (v *Vocabulary) SpecialVocabulary() []string {
	v.specialOnce.Do(func() {
		for i := range v.Values {
			if v.Types[i] == TOKEN_TYPE_CONTROL || v.Types[i] == TOKEN_TYPE_USER_DEFINED {
				v.special = append(v.special, v.Values[i])
			}
		}
	})

	return v.special
}

func (v *Vocabulary) Merge(left, right string) int {
	v.mergeOnce.Do(func() {
		v.merge = make(map[string]int32, len(v.Merges))
		for i, merge := range v.Merges {
			v.merge[merge] = int32(i)
		}
	})

	if id, ok := v.merge[left+" "+right]; ok {
		return int(id)
	}

	return -1
}

// AddTokens registers tokens as atomic user-defined vocabulary entries and
// returns their ids in request order. A token already in the vocabulary keeps
// its id and is otherwise untouched, so registering the same set twice leaves
// the vocabulary identical. Not safe for use concurrent with encoding; token
// registration is a one-time preparation step.
func (v *Vocabulary) AddTokens(tokens ...string) []int32 {
	// force the lazy lookup structures so they can be extended in place
	v.Encode("")
	v.SpecialVocabulary()

	ids := make([]int32, len(tokens))
	for i, token := range tokens {
		if id, ok := v.values[token]; ok {
			ids[i] = id
			continue
		}

		id := int32(len(v.Values))
		v.Values = append(v.Values, token)
		v.Types = append(v.Types, TOKEN_TYPE_USER_DEFINED)
		v.values[token] = id
		v.special = append(v.special, token)
		ids[i] = id

		slog.Debug("added token", "token", token, "id", id)
	}

	return ids
}
