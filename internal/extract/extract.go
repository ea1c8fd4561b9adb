// Package extract defines the upstream feature-extraction contract. Real
// deployments plug in an NLP extractor; the core only assumes "keys are
// attribute-type strings, values are non-empty strings".
package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/scrypster/tether/pkg/types"
)

// Extractor turns raw text into a feature bag. Implementations decide which
// attribute types they emit; duplicate types keep the first occurrence.
type Extractor interface {
	ExtractFeatures(ctx context.Context, rawText string) (types.FeatureBag, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, rawText string) (types.FeatureBag, error)

// ExtractFeatures calls f.
func (f ExtractorFunc) ExtractFeatures(ctx context.Context, rawText string) (types.FeatureBag, error) {
	return f(ctx, rawText)
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-\s().]{6,}[0-9]`)
)

// PatternExtractor is a minimal reference extractor recognizing EMAIL and
// PHONE attributes by pattern. It exists so the CLI works without an NLP
// service; entity-name extraction (PERSON/ORG/GPE) is expected to come from
// an external extractor.
type PatternExtractor struct{}

// NewPatternExtractor returns the reference pattern extractor.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

// ExtractFeatures scans the text for known patterns. First occurrence wins
// per attribute type.
func (e *PatternExtractor) ExtractFeatures(_ context.Context, rawText string) (types.FeatureBag, error) {
	bag := types.NewFeatureBag()
	if match := emailPattern.FindString(rawText); match != "" {
		bag.Add(types.AttrEmail, match)
	}
	if match := phonePattern.FindString(rawText); match != "" {
		bag.Add(types.AttrPhone, match)
	}
	return bag, nil
}

// FieldExtractor parses pre-extracted features from structured lines of the
// form "TYPE=value; TYPE=value", e.g.
//
//	ORG=Starbucks; GPE=New York
//
// It exists for feeding the output of an external NLP extractor into the
// pipeline. Pairs without an "=" or with an empty type or value are skipped;
// duplicate types keep the first occurrence.
type FieldExtractor struct{}

// NewFieldExtractor returns the structured-fields extractor.
func NewFieldExtractor() *FieldExtractor {
	return &FieldExtractor{}
}

// ExtractFeatures splits the line into TYPE=value pairs.
func (e *FieldExtractor) ExtractFeatures(_ context.Context, rawText string) (types.FeatureBag, error) {
	bag := types.NewFeatureBag()
	for _, pair := range strings.Split(rawText, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		attrType, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		bag.Add(strings.TrimSpace(attrType), strings.TrimSpace(value))
	}
	return bag, nil
}
