package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/indicator_monitor/models"
	"gopkg.in/yaml.v3"
)

// Binding maps one indicator code to the family that computes and evaluates it.
type Binding struct {
	Code   string                 `yaml:"code" validate:"required,max=50"`
	Family models.IndicatorFamily `yaml:"family" validate:"required"`
	// Period selects the fact window for period-based families; empty means monthly.
	Period string `yaml:"period" validate:"omitempty,oneof=monthly quarterly yearly all"`
	// CountAutoGenerated lets ratio families count the engine's own records.
	CountAutoGenerated bool `yaml:"count_auto_generated"`
	// HigherIsBad only applies to EXTERNAL; nil means true.
	HigherIsBad *bool `yaml:"higher_is_bad"`
}

type bindingFile struct {
	Indicators []Binding `yaml:"indicators" validate:"dive"`
}

// Bindings is the immutable code -> family table loaded at startup.
type Bindings struct {
	byCode map[string]Binding
}

var validate = validator.New()

func LoadBindings(path string) (*Bindings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read indicator families file: %w", err)
	}
	return ParseBindings(data)
}

func ParseBindings(data []byte) (*Bindings, error) {
	var file bindingFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse indicator families: %w", err)
	}
	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("invalid indicator families: %w", err)
	}
	return NewBindings(file.Indicators...)
}

func NewBindings(list ...Binding) (*Bindings, error) {
	b := &Bindings{byCode: make(map[string]Binding, len(list))}
	for _, item := range list {
		if err := validate.Struct(item); err != nil {
			return nil, fmt.Errorf("invalid binding %q: %w", item.Code, err)
		}
		if !item.Family.IsValid() {
			return nil, fmt.Errorf("invalid binding %q: unknown family %q", item.Code, item.Family)
		}
		if _, dup := b.byCode[item.Code]; dup {
			return nil, fmt.Errorf("indicator %q is bound more than once", item.Code)
		}
		b.byCode[item.Code] = item
	}
	return b, nil
}

func (b *Bindings) Lookup(code string) (Binding, bool) {
	if b == nil {
		return Binding{}, false
	}
	item, ok := b.byCode[code]
	return item, ok
}

func (b *Bindings) Len() int {
	if b == nil {
		return 0
	}
	return len(b.byCode)
}
