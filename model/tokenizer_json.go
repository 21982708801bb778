package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
)

// tokenizerJSON is the subset of the HuggingFace tokenizer.json format
// needed to build a byte-level byte pair encoder.
type tokenizerJSON struct {
	AddedTokens []addedToken `json:"added_tokens"`

	Model struct {
		Type   string           `json:"type"`
		Vocab  map[string]int32 `json:"vocab"`
		Merges json.RawMessage  `json:"merges"`
	} `json:"model"`

	PreTokenizer  json.RawMessage `json:"pre_tokenizer"`
	PostProcessor json.RawMessage `json:"post_processor"`
}

type addedToken struct {
	ID      int32  `json:"id"`
	Content string `json:"content"`
	Special bool   `json:"special"`
}

// LoadTokenizer reads a HuggingFace tokenizer.json file and builds a
// byte pair encoder from its vocabulary, merges, added tokens, and
// pretokenizer pattern.
func LoadTokenizer(path string) (*BytePairEncoding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeTokenizer(f)
}

func DecodeTokenizer(r io.Reader) (*BytePairEncoding, error) {
	var spec tokenizerJSON
	if err := json.NewDecoder(r).Decode(&spec); err != nil {
		return nil, fmt.Errorf("parse tokenizer: %w", err)
	}

	if spec.Model.Type != "" && spec.Model.Type != "BPE" {
		return nil, fmt.Errorf("unsupported tokenizer model %q", spec.Model.Type)
	}

	merges, err := parseMerges(spec.Model.Merges)
	if err != nil {
		return nil, err
	}

	size := int32(len(spec.Model.Vocab))
	for _, t := range spec.AddedTokens {
		size = max(size, t.ID+1)
	}

	vocab := &Vocabulary{
		Values: make([]string, size),
		Types:  make([]int32, size),
		Merges: merges,
	}

	for value, id := range spec.Model.Vocab {
		vocab.Values[id] = value
		vocab.Types[id] = TOKEN_TYPE_NORMAL
	}

	for _, t := range spec.AddedTokens {
		vocab.Values[t.ID] = t.Content
		if t.Special {
			vocab.Types[t.ID] = TOKEN_TYPE_CONTROL
		} else {
			vocab.Types[t.ID] = TOKEN_TYPE_USER_DEFINED
		}
	}

	bos, eos := parseTemplate(spec.PostProcessor, vocab)
	vocab.BOS, vocab.EOS = bos, eos
	vocab.AddBOS = len(bos) > 0

	return NewBytePairEncoding(vocab, parsePretokenizers(spec.PreTokenizer)...), nil
}

// parseMerges accepts both merge encodings found in the wild:
// ["a b", ...] and [["a", "b"], ...].
func parseMerges(raw json.RawMessage) ([]string, error) {
	if raw == nil {
		return nil, nil
	}

	var merges []string
	if err := json.Unmarshal(raw, &merges); err == nil {
		return merges, nil
	}

	var pairs [][]string
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("parse merges: %w", err)
	}

	merges = make([]string, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("parse merges: pair %d has %d elements", i, len(pair))
		}

		merges[i] = pair[0] + " " + pair[1]
	}

	return merges, nil
}

// parsePretokenizers extracts Split regex patterns from the pre_tokenizer
// section. An absent or ByteLevel pretokenizer yields no patterns, leaving
// the encoder on its default byte-level pattern.
func parsePretokenizers(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}

	var single struct {
		Type    string `json:"type"`
		Pattern struct {
			Regex string `json:"Regex"`
		} `json:"pattern"`
	}
	if err := json.Unmarshal(raw, &single); err == nil && single.Pattern.Regex != "" {
		return []string{single.Pattern.Regex}
	}

	var seq struct {
		Type          string `json:"type"`
		Pretokenizers []struct {
			Type    string `json:"type"`
			Pattern struct {
				Regex string `json:"Regex"`
			} `json:"pattern"`
		} `json:"pretokenizers"`
	}
	if err := json.Unmarshal(raw, &seq); err == nil && seq.Type == "Sequence" {
		var patterns []string
		for _, pt := range seq.Pretokenizers {
			if pt.Type == "Split" && pt.Pattern.Regex != "" {
				patterns = append(patterns, pt.Pattern.Regex)
			}
		}

		return patterns
	}

	return nil
}

// parseTemplate reads a TemplateProcessing post_processor and returns the
// special tokens it places before and after the sequence.
func parseTemplate(raw json.RawMessage, vocab *Vocabulary) (bos, eos []int32) {
	if raw == nil {
		return nil, nil
	}

	var template struct {
		Type   string `json:"type"`
		Single []struct {
			SpecialToken *struct {
				ID string `json:"id"`
			} `json:"SpecialToken"`
			Sequence *struct {
				ID string `json:"id"`
			} `json:"Sequence"`
		} `json:"single"`
	}
	if err := json.Unmarshal(raw, &template); err != nil || template.Type != "TemplateProcessing" {
		return nil, nil
	}

	var after bool
	for _, entry := range template.Single {
		switch {
		case entry.Sequence != nil:
			after = true
		case entry.SpecialToken != nil:
			if id := vocab.Encode(entry.SpecialToken.ID); id >= 0 {
				if after {
					eos = append(eos, id)
				} else {
					bos = append(bos, id)
				}
			}
		}
	}

	return bos, eos
}

// ExtendTokenizer copies a tokenizer.json, registering tokens it does not
// already carry as added tokens. Sections the parser does not understand are
// passed through untouched, and extending an already-extended tokenizer
// writes an identical document.
func ExtendTokenizer(r io.Reader, w io.Writer, tokens ...string) error {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("parse tokenizer: %w", err)
	}

	var added []addedToken
	if raw, ok := doc["added_tokens"]; ok {
		if err := json.Unmarshal(raw, &added); err != nil {
			return fmt.Errorf("parse added_tokens: %w", err)
		}
	}

	var spec struct {
		Vocab map[string]int32 `json:"vocab"`
	}
	if raw, ok := doc["model"]; ok {
		if err := json.Unmarshal(raw, &spec); err != nil {
			return fmt.Errorf("parse model: %w", err)
		}
	}

	present := make(map[string]bool, len(spec.Vocab)+len(added))
	var next int32
	for value, id := range spec.Vocab {
		present[value] = true
		next = max(next, id+1)
	}

	for _, t := range added {
		present[t.Content] = true
		next = max(next, t.ID+1)
	}

	for _, token := range tokens {
		if present[token] {
			continue
		}

		added = append(added, addedToken{ID: next, Content: token, Special: true})
		present[token] = true
		next++
	}

	slices.SortFunc(added, func(a, b addedToken) int {
		return int(a.ID - b.ID)
	})

	raw, err := json.Marshal(added)
	if err != nil {
		return err
	}
	doc["added_tokens"] = raw

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
