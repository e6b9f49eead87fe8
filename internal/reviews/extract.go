package reviews

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tappo/tappo/internal/apperr"
)

// Rating is the extracted pair. Either side may be missing, not both.
type Rating struct {
	Rating       *float64
	ReviewsCount *int
}

func (r Rating) empty() bool { return r.Rating == nil && r.ReviewsCount == nil }

// Strategy is one way of finding the rating in a rendered page.
type Strategy interface {
	Name() string
	Extract(html string, blocks []string) Rating
}

// Extractor runs strategies in order; the first one that finds anything wins.
type Extractor struct {
	strategies []Strategy
}

func NewExtractor(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// DefaultExtractor reads JSON-LD first and falls back to scanning raw HTML.
func DefaultExtractor() *Extractor {
	return NewExtractor(StructuredDataStrategy{}, RegexStrategy{})
}

// Extract returns the rating and the name of the strategy that produced it,
// or apperr.ErrNoDataFound.
func (e *Extractor) Extract(html string, blocks []string) (Rating, string, error) {
	for _, s := range e.strategies {
		if r := s.Extract(html, blocks); !r.empty() {
			return r, s.Name(), nil
		}
	}
	return Rating{}, "", apperr.ErrNoDataFound
}

// ===========================================
// STRUCTURED DATA
// ===========================================

// StructuredDataStrategy reads aggregateRating out of JSON-LD blocks. A block
// may hold one record, an array of records or a record with an @graph list.
type StructuredDataStrategy struct{}

func (StructuredDataStrategy) Name() string { return "structured" }

func (StructuredDataStrategy) Extract(_ string, blocks []string) Rating {
	for _, block := range blocks {
		var doc any
		if err := json.Unmarshal([]byte(block), &doc); err != nil {
			continue
		}
		if r := fromJSONLD(doc); !r.empty() {
			return r
		}
	}
	return Rating{}
}

func fromJSONLD(doc any) Rating {
	if items, ok := doc.([]any); ok {
		return firstRecord(items)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return Rating{}
	}
	if graph, ok := obj["@graph"].([]any); ok {
		if r := firstRecord(graph); !r.empty() {
			return r
		}
	}
	return fromRecord(obj)
}

func firstRecord(items []any) Rating {
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if r := fromRecord(obj); !r.empty() {
			return r
		}
	}
	return Rating{}
}

func fromRecord(obj map[string]any) Rating {
	agg, ok := obj["aggregateRating"].(map[string]any)
	if !ok {
		return Rating{}
	}

	var r Rating
	if v, ok := jsonNumber(agg["ratingValue"]); ok {
		r.Rating = &v
	}

	for _, key := range []string{"reviewCount", "ratingCount"} {
		v, ok := jsonNumber(agg[key])
		if !ok {
			continue
		}
		if n, ok := parseCount(v); ok {
			r.ReviewsCount = &n
			break
		}
	}
	return r
}

// jsonNumber accepts a JSON number or a numeric string with either decimal
// separator.
func jsonNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, finite(x)
	case string:
		return parseDecimal(x)
	}
	return 0, false
}

// ===========================================
// REGEX FALLBACK
// ===========================================

var (
	ratingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"ratingValue"\s*:\s*"?<?(\d+(?:[.,]\d+)?)"?`),
		regexp.MustCompile(`(?i)"rating"\s*:\s*"?<?(\d+(?:[.,]\d+)?)"?`),
	}
	countPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"reviewCount"\s*:\s*"?<?(\d+)"?`),
		regexp.MustCompile(`(?i)"ratingCount"\s*:\s*"?<?(\d+)"?`),
		regexp.MustCompile(`(?i)"reviewsCount"\s*:\s*"?<?(\d+)"?`),
	}
)

// RegexStrategy scans raw HTML for rating and count fields independently.
type RegexStrategy struct{}

func (RegexStrategy) Name() string { return "regex" }

func (RegexStrategy) Extract(html string, _ []string) Rating {
	var r Rating
	if v, ok := findNumber(html, ratingPatterns); ok {
		r.Rating = &v
	}
	if n, ok := findCount(html); ok {
		r.ReviewsCount = &n
	}
	return r
}

// findCount returns the first count pattern whose value is a valid count.
func findCount(src string) (int, bool) {
	for _, re := range countPatterns {
		m := re.FindStringSubmatch(src)
		if m == nil {
			continue
		}
		v, ok := parseDecimal(m[1])
		if !ok {
			continue
		}
		if n, ok := parseCount(v); ok {
			return n, true
		}
	}
	return 0, false
}

func findNumber(src string, patterns []*regexp.Regexp) (float64, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(src)
		if m == nil {
			continue
		}
		if v, ok := parseDecimal(m[1]); ok {
			return v, true
		}
	}
	return 0, false
}

func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, finite(v)
}

// parseCount accepts whole, non-negative counts that fit the INTEGER column.
func parseCount(v float64) (int, bool) {
	if !finite(v) || v < 0 || v > math.MaxInt32 || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
