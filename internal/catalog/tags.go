package catalog

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TagSet is an unordered set of tags. It marshals as a sorted list.
type TagSet map[string]struct{}

// Vocabulary is the set of every tag known to the catalog.
type Vocabulary = TagSet

// NewTagSet builds a set from tags. Duplicates collapse.
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether tag is in the set.
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Add inserts tags into the set.
func (s TagSet) Add(tags ...string) {
	for _, t := range tags {
		s[t] = struct{}{}
	}
}

// Equal reports whether both sets hold exactly the same tags.
func (s TagSet) Equal(other TagSet) bool {
	if len(s) != len(other) {
		return false
	}
	for t := range s {
		if !other.Has(t) {
			return false
		}
	}
	return true
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// String returns the sorted tags joined by commas.
func (s TagSet) String() string {
	return strings.Join(s.Sorted(), ",")
}

// MarshalYAML encodes the set as a sorted sequence.
func (s TagSet) MarshalYAML() (interface{}, error) {
	return s.Sorted(), nil
}

// UnmarshalYAML decodes a sequence of strings.
func (s *TagSet) UnmarshalYAML(value *yaml.Node) error {
	var tags []string
	if err := value.Decode(&tags); err != nil {
		return err
	}
	*s = NewTagSet(tags...)
	return nil
}

// MarshalJSON encodes the set as a sorted array.
func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of strings.
func (s *TagSet) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*s = NewTagSet(tags...)
	return nil
}

// wordPattern matches Unicode word runs; Go's \w alone is ASCII only.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// ExtractTags returns the tokens of prompt that are known to vocab.
//
// The prompt is lower-cased and split into runs of letters, digits and
// underscores. Only exact token matches count. The result is always a subset
// of vocab.
func ExtractTags(prompt string, vocab Vocabulary) TagSet {
	out := make(TagSet)
	for _, word := range wordPattern.FindAllString(strings.ToLower(prompt), -1) {
		if vocab.Has(word) {
			out[word] = struct{}{}
		}
	}
	return out
}
