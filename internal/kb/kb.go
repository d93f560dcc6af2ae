// Package kb provides the knowledge-base snapshot: slowly changing reference
// data (fees, financial thresholds, insurer requirements) that documents and
// guide prompts read as opaque key/value maps.
package kb

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/BTreeMap/DossierPipe/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed snapshot.yaml
var defaultSnapshot []byte

// Topics read by the assembler and the enricher.
const (
	TopicThresholds      = "thresholds"
	TopicFees            = "fees"
	TopicHealthInsurance = "health_insurance"
	TopicApostille       = "apostille"
	TopicRelocation      = "relocation"
)

// Snapshot is the read-only key/value map of one topic.
type Snapshot map[string]string

// Get returns the value stored under key, or "".
func (s Snapshot) Get(key string) string {
	return s[key]
}

// Float parses the value stored under key as an amount.
func (s Snapshot) Float(key string) (float64, bool) {
	v, ok := s[key]
	if !ok {
		return 0, false
	}
	n, err := models.ParseAmount(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Base holds every topic of a knowledge-base document.
type Base struct {
	AsOf   string              `yaml:"as_of"`
	Topics map[string]Snapshot `yaml:"topics"`
}

// Parse decodes a knowledge-base document.
func Parse(data []byte) (*Base, error) {
	var b Base
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("kb: decode: %w", err)
	}
	if len(b.Topics) == 0 {
		return nil, fmt.Errorf("kb: no topics defined")
	}
	return &b, nil
}

// Default returns the snapshot compiled into the binary.
func Default() *Base {
	b, err := Parse(defaultSnapshot)
	if err != nil {
		panic(fmt.Sprintf("kb: embedded snapshot is invalid: %v", err))
	}
	return b
}

// Load reads the knowledge base from path, or returns the embedded snapshot
// when path is empty.
func Load(path string) (*Base, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kb: read %s: %w", path, err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, err
	}
	slog.Info("Knowledge base loaded", "path", path, "as_of", b.AsOf, "topics", len(b.Topics))
	return b, nil
}

// Snapshot returns a copy of the topic's map. Unknown topics yield an empty
// snapshot.
func (b *Base) Snapshot(topic string) Snapshot {
	out := Snapshot{}
	if b == nil {
		return out
	}
	for k, v := range b.Topics[topic] {
		out[k] = v
	}
	return out
}

// TopicNames returns the defined topics in lexical order.
func (b *Base) TopicNames() []string {
	names := make([]string, 0, len(b.Topics))
	for name := range b.Topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
