package target

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed targets.yaml
var rawTargets []byte

// DefaultName is used when no target is selected
const DefaultName = "x86_64-linux-gnu"

var ErrUnknownTarget = errors.New("unknown target")

var targets Targets

// BitOrder is the fill order of bitfields within a packing word
type BitOrder string

const (
	LSBFirst BitOrder = "lsb"
	MSBFirst BitOrder = "msb"
)

// Primitive is a native scalar with a fixed size and alignment
type Primitive struct {
	Size  uint   `yaml:"size"`
	Align uint   `yaml:"align"`
	Go    string `yaml:"go"`
}

// Target describes the native ABI layouts are reconstructed for
type Target struct {
	Name        string               `yaml:"name"`
	PointerSize uint                 `yaml:"pointer_size"`
	WordSize    uint                 `yaml:"word_size"` // bitfield packing word in bytes
	BitOrder    BitOrder             `yaml:"bit_order"`
	Primitives  map[string]Primitive `yaml:"primitives"`
}

type Targets []*Target

// All returns the built-in targets
func All() Targets {
	return targets
}

// Default returns the built-in default target
func Default() *Target {
	t, err := targets.Find(DefaultName)
	if err != nil {
		panic(err)
	}
	return t
}

// Find looks up a built-in target by name
func Find(name string) (*Target, error) {
	return targets.Find(name)
}

func (ts Targets) Find(name string) (*Target, error) {
	for _, t := range ts {
		if t.Name == strings.ToLower(name) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
}

func (ts Targets) Names() []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name
	}
	sort.Strings(names)
	return names
}

// Load parses a targets document
func Load(data []byte) (Targets, error) {
	var doc struct {
		Elements []*Target `yaml:"targets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse targets: %w", err)
	}
	for _, t := range doc.Elements {
		if t.BitOrder == "" {
			t.BitOrder = LSBFirst
		}
		if t.WordSize == 0 {
			t.WordSize = 4
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Elements, nil
}

// LoadFile parses a user supplied targets file
func LoadFile(path string) (Targets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	return Load(data)
}

// Primitive looks up a scalar by its base name
func (t *Target) Primitive(name string) (Primitive, bool) {
	p, ok := t.Primitives[name]
	return p, ok
}

// Validate checks that every size and alignment is usable for layout
func (t *Target) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("target: missing name")
	}
	if !isPow2(t.PointerSize) {
		return fmt.Errorf("target %s: pointer size must be a power of 2, got: %d", t.Name, t.PointerSize)
	}
	if !isPow2(t.WordSize) {
		return fmt.Errorf("target %s: word size must be a power of 2, got: %d", t.Name, t.WordSize)
	}
	if t.BitOrder != LSBFirst && t.BitOrder != MSBFirst {
		return fmt.Errorf("target %s: bit order must be 'lsb' or 'msb', got: %s", t.Name, t.BitOrder)
	}
	for name, p := range t.Primitives {
		if p.Size == 0 || !isPow2(p.Align) {
			return fmt.Errorf("target %s: primitive %s: invalid size %d / align %d", t.Name, name, p.Size, p.Align)
		}
		if p.Size%p.Align != 0 {
			return fmt.Errorf("target %s: primitive %s: size %d not a multiple of align %d", t.Name, name, p.Size, p.Align)
		}
	}
	return nil
}

func isPow2(n uint) bool {
	return n > 0 && n&(n-1) == 0
}

func init() {
	t, err := Load(rawTargets)
	if err != nil {
		panic(err)
	}
	targets = t
}
