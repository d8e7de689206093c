package provider

import (
	"errors"
	"fmt"
	"strings"
)

// Feature names a model capability a request depends on.
type Feature string

const (
	FeatureTools    Feature = "tools"
	FeatureThinking Feature = "thinking"
)

// CompatibilityError reports that the selected model cannot serve the
// request shape, e.g. a local model without tool-calling support.
type CompatibilityError struct {
	Model   string
	Feature Feature
	Err     error
}

func (e *CompatibilityError) Error() string {
	return fmt.Sprintf("model %q does not support %s: %v", e.Model, e.Feature, e.Err)
}

func (e *CompatibilityError) Unwrap() error { return e.Err }

var compatibilityMarkers = []struct {
	fragment string
	feature  Feature
}{
	{"does not support tools", FeatureTools},
	{"tool use is not supported", FeatureTools},
	{"tools is not supported", FeatureTools},
	{"function calling is not supported", FeatureTools},
	{"does not support thinking", FeatureThinking},
	{"thinking is not supported", FeatureThinking},
}

// Classify turns known capability failures into a *CompatibilityError and
// returns every other error unchanged.
func Classify(model string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CompatibilityError
	if errors.As(err, &ce) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, m := range compatibilityMarkers {
		if strings.Contains(msg, m.fragment) {
			return &CompatibilityError{Model: model, Feature: m.feature, Err: err}
		}
	}
	return err
}
