package rules

import (
	"strings"
	"sync"

	"github.com/dlclark/regexp2"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// regexCache compiles each rule's regex_match pattern once; a rule whose
// pattern fails to compile is disabled (not fatal to the whole engine) and
// a warning is logged by the caller.
type regexCache struct {
	mu    sync.Mutex
	cache map[string]*regexp2.Regexp
}

func newRegexCache() *regexCache {
	return &regexCache{cache: make(map[string]*regexp2.Regexp)}
}

func (c *regexCache) compile(pattern string, caseSensitive bool) (*regexp2.Regexp, error) {
	key := pattern
	if !caseSensitive {
		key = "i:" + pattern
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.cache[key]; ok {
		return re, nil
	}
	opts := regexp2.RE2
	if !caseSensitive {
		opts |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, err
	}
	c.cache[key] = re
	return re, nil
}

// evalCondition evaluates one condition against doc. A type mismatch
// resolves to false with no error. An unknown field returns an
// InvalidInput error; the engine logs it and treats the condition as
// false, so it is not fatal to the evaluation.
func evalCondition(doc *domain.Document, c domain.Condition, rc *regexCache) (bool, error) {
	raw, err := resolveField(doc, c.Field)
	if err != nil {
		return false, err
	}

	switch c.Operator {
	case domain.OpContains:
		return evalContains(raw, c)
	case domain.OpRegexMatch:
		return evalRegexMatch(raw, c, rc)
	case domain.OpWordCountGT:
		return evalWordCount(raw, c, true)
	case domain.OpWordCountLT:
		return evalWordCount(raw, c, false)
	default:
		return false, nil
	}
}

func evalContains(raw interface{}, c domain.Condition) (bool, error) {
	s, ok := fieldAsString(raw)
	if !ok {
		return false, nil
	}
	needle, _ := c.Value.(string)
	if c.CaseSensitive {
		return strings.Contains(s, needle), nil
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(needle)), nil
}

func evalRegexMatch(raw interface{}, c domain.Condition, rc *regexCache) (bool, error) {
	s, ok := fieldAsString(raw)
	if !ok {
		return false, nil
	}
	pattern, _ := c.Value.(string)
	re, err := rc.compile(pattern, c.CaseSensitive)
	if err != nil {
		return false, err
	}
	return re.MatchString(s)
}

func evalWordCount(raw interface{}, c domain.Condition, greaterThan bool) (bool, error) {
	s, ok := fieldAsString(raw)
	if !ok {
		return false, nil
	}
	count := len(strings.Fields(s))
	threshold, ok := asInt(c.Value)
	if !ok {
		return false, nil
	}
	if greaterThan {
		return count > threshold, nil
	}
	return count < threshold, nil
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
