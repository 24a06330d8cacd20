// Package catalog models the template catalog: entries, the index, the tag
// vocabulary, per-template metadata, and the exact-set resolver.
package catalog

import (
	"bytes"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fastertools/devlaunch/internal/apperr"
)

// Well-known storage keys and file names.
const (
	// IndexKey is the key of the catalog index document.
	IndexKey = "index.yaml"
	// VocabularyKey is the key of the tag vocabulary document.
	VocabularyKey = "tags.yaml"
	// MetadataFile is the per-template metadata file name.
	MetadataFile = "template.yaml"
	// BodyFile is the per-template compose template file name.
	BodyFile = "docker-compose.j2"
)

// Entry is one template in the catalog.
type Entry struct {
	Name           string   `yaml:"name,omitempty" json:"name,omitempty"`
	Description    string   `yaml:"description,omitempty" json:"description,omitempty"`
	RequiredInputs []string `yaml:"required_inputs,omitempty" json:"required_inputs,omitempty"`
	Tags           TagSet   `yaml:"tags" json:"tags"`
	// Location is the storage key of the entry's metadata file, or a
	// prefix ending in "/" under which the entry's files live.
	Location string `yaml:"url" json:"url"`
}

// Prefix returns the storage prefix holding the entry's file tree.
//
// A location ending in "/" is already a prefix. Otherwise the prefix is the
// parent directory of the location, with a trailing slash, or "" when the
// location has no parent.
func (e Entry) Prefix() string {
	if e.Location == "" || strings.HasSuffix(e.Location, "/") {
		return e.Location
	}
	dir := path.Dir(e.Location)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir + "/"
}

// DirName returns the local directory name for the entry: its declared name,
// or the last segment of its prefix.
func (e Entry) DirName() string {
	if e.Name != "" {
		return e.Name
	}
	p := strings.TrimSuffix(e.Prefix(), "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// Index is the ordered catalog.
type Index []Entry

// Match is the outcome of a resolution: either Found with an Entry, or not.
type Match struct {
	Entry Entry
	Found bool
}

// Resolve returns the first entry in index whose tag set equals tags exactly.
//
// Subsets and supersets never match: an entry tagged {docker, postgres} does
// not match {docker, postgres, backup}. Ties go to index order.
func Resolve(tags TagSet, index Index) Match {
	for _, e := range index {
		if e.Tags.Equal(tags) {
			return Match{Entry: e, Found: true}
		}
	}
	return Match{}
}

// Metadata is the content of a template.yaml file, and of the metadata block
// of an LLM response.
type Metadata struct {
	Name           string   `yaml:"name,omitempty"`
	Description    string   `yaml:"description,omitempty"`
	RequiredInputs []string `yaml:"required_inputs,omitempty"`
	Tags           []string `yaml:"tags,omitempty"`

	// HasTags reports whether the document declared a tags field at all.
	HasTags bool `yaml:"-"`
}

// ParseMetadata decodes a metadata document.
func ParseMetadata(data []byte) (Metadata, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return Metadata{}, apperr.Wrap(apperr.KindFormat, "metadata", "invalid YAML", err)
	}
	if len(node.Content) == 0 {
		return Metadata{}, apperr.Format("metadata", "document is empty")
	}
	doc := node.Content[0]
	if doc.Kind != yaml.MappingNode {
		return Metadata{}, apperr.Format("metadata", "document is not a mapping")
	}

	var m Metadata
	if err := doc.Decode(&m); err != nil {
		return Metadata{}, apperr.Wrap(apperr.KindFormat, "metadata", "invalid YAML", err)
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == "tags" {
			m.HasTags = true
			break
		}
	}
	return m, nil
}

// Encode renders the metadata as YAML.
func (m Metadata) Encode() ([]byte, error) {
	return encodeYAML(m)
}

// Entry builds a catalog entry located at key.
func (m Metadata) Entry(key string) Entry {
	return Entry{
		Name:           m.Name,
		Description:    m.Description,
		RequiredInputs: m.RequiredInputs,
		Tags:           NewTagSet(m.Tags...),
		Location:       key,
	}
}

// DecodeIndex parses an index document.
func DecodeIndex(data []byte) (Index, error) {
	var idx Index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, "index", "invalid index document", err)
	}
	return idx, nil
}

// EncodeIndex renders an index document.
func EncodeIndex(idx Index) ([]byte, error) {
	if idx == nil {
		idx = Index{}
	}
	return encodeYAML(idx)
}

// DecodeVocabulary parses a vocabulary document.
func DecodeVocabulary(data []byte) (Vocabulary, error) {
	var tags []string
	if err := yaml.Unmarshal(data, &tags); err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, "vocabulary", "invalid vocabulary document", err)
	}
	return NewTagSet(tags...), nil
}

// EncodeVocabulary renders a vocabulary document as a sorted list.
func EncodeVocabulary(v Vocabulary) ([]byte, error) {
	return encodeYAML(v.Sorted())
}

func encodeYAML(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
