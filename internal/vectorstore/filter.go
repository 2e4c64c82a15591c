package vectorstore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Predicate is a backend-neutral payload filter produced by TranslateFilter.
// A document matches when every Must condition holds and, if Should is not
// empty, at least one Should condition holds.
type Predicate struct {
	Must   []Condition
	Should []Condition
}

// Condition constrains one payload field, either by equality or by range.
type Condition struct {
	Field string
	Value string
	Range *Range
}

// Range bounds a numeric field. Nil bounds are open.
type Range struct {
	Gt  *float64
	Gte *float64
	Lt  *float64
	Lte *float64
}

// filterMatcher recognizes one form of filter expression.
type filterMatcher func(expr string) (*Predicate, bool)

// filterMatchers are tried in order; the first match wins. An expression that
// is nothing but one quoted equality is taken literally, so a value such as
// "docs/a in [b].md" is not read as a membership test.
var filterMatchers = []filterMatcher{
	matchExactEquality,
	matchMembership,
	matchEquality,
	matchComparison,
}

var (
	membershipPattern = regexp.MustCompile(`(\w+)\s+in\s+\[(.*?)\]`)
	equalityPattern   = regexp.MustCompile(`(\w+)\s*==\s*["'](.+?)["']`)
	exactEqualPattern = regexp.MustCompile(`^\s*(\w+)\s*==\s*(?:"([^"]+)"|'([^']+)')\s*$`)
	comparisonPattern = regexp.MustCompile(`(\w+)\s*(>=|<=|>|<)\s*(\d+)`)
)

// TranslateFilter parses expr into a Predicate.
//
// It returns nil for an empty expression and for anything outside the
// supported subset; the latter is logged as a warning so the caller's search
// can proceed unfiltered.
func TranslateFilter(expr string, logger *zap.Logger) *Predicate {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	for _, match := range filterMatchers {
		if p, ok := match(expr); ok {
			return p
		}
	}
	if logger != nil {
		logger.Warn("unable to parse filter expression, searching unfiltered", zap.String("filter", expr))
	}
	filterFallbacksTotal.Inc()
	return nil
}

// EqualityFilter renders field == value so that TranslateFilter reads it back
// as exactly that condition. Single quotes are used when value contains a
// double quote. ok is false when no quoting works.
func EqualityFilter(field, value string) (expr string, ok bool) {
	switch {
	case value == "":
		return "", false
	case !strings.Contains(value, `"`):
		expr = field + ` == "` + value + `"`
	case !strings.Contains(value, `'`):
		expr = field + ` == '` + value + `'`
	default:
		return "", false
	}
	p, matched := matchExactEquality(expr)
	if !matched || p.Must[0].Field != field || p.Must[0].Value != value {
		return "", false
	}
	return expr, true
}

func matchExactEquality(expr string) (*Predicate, bool) {
	m := exactEqualPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, false
	}
	value := m[2]
	if value == "" {
		value = m[3]
	}
	return &Predicate{Must: []Condition{{Field: m[1], Value: value}}}, true
}

func matchMembership(expr string) (*Predicate, bool) {
	m := membershipPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, false
	}
	var should []Condition
	for _, raw := range strings.Split(m[2], ",") {
		v := strings.NewReplacer(`"`, "", `'`, "").Replace(strings.TrimSpace(raw))
		if v == "" {
			continue
		}
		should = append(should, Condition{Field: m[1], Value: v})
	}
	if len(should) == 0 {
		return nil, false
	}
	return &Predicate{Should: should}, true
}

func matchEquality(expr string) (*Predicate, bool) {
	m := equalityPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, false
	}
	return &Predicate{Must: []Condition{{Field: m[1], Value: m[2]}}}, true
}

func matchComparison(expr string) (*Predicate, bool) {
	m := comparisonPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, false
	}
	n, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return nil, false
	}
	r := &Range{}
	switch m[2] {
	case ">":
		r.Gt = &n
	case ">=":
		r.Gte = &n
	case "<":
		r.Lt = &n
	case "<=":
		r.Lte = &n
	}
	return &Predicate{Must: []Condition{{Field: m[1], Range: r}}}, true
}

// Matches evaluates the predicate against a decoded payload. It is used by
// backends that cannot push filters down.
func (p *Predicate) Matches(payload map[string]any) bool {
	if p == nil {
		return true
	}
	for _, c := range p.Must {
		if !c.matches(payload) {
			return false
		}
	}
	if len(p.Should) == 0 {
		return true
	}
	for _, c := range p.Should {
		if c.matches(payload) {
			return true
		}
	}
	return false
}

func (c Condition) matches(payload map[string]any) bool {
	v, ok := payload[c.Field]
	if !ok || v == nil {
		return false
	}
	if c.Range == nil {
		return fmt.Sprint(v) == c.Value
	}
	f, ok := toFloat(v)
	if !ok {
		return false
	}
	r := c.Range
	return (r.Gt == nil || f > *r.Gt) &&
		(r.Gte == nil || f >= *r.Gte) &&
		(r.Lt == nil || f < *r.Lt) &&
		(r.Lte == nil || f <= *r.Lte)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
