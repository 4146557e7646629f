// rules.go - Umbenennungsregeln fuer Parameter-Namen
// Eine Regel besteht aus einem regulaeren Ausdruck und einer Ersetzungsvorlage.
// Regeln werden in Deklarationsreihenfolge geprueft, die erste passende gewinnt.
package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/sis-k/executorch/internal/orderedmap"
)

var ErrInvalidRule = errors.New("invalid rename rule")

// Rule rewrites every match of Pattern in a parameter name using Replacement.
type Rule struct {
	Pattern     string
	Replacement string

	re       *regexp2.Regexp
	template string
}

// Rules is an ordered list of rename rules. Order is significant.
type Rules []Rule

// ParseRules compiles (pattern, replacement) pairs. Replacements may use
// either $1 / ${1} or \1 style back-references.
func ParseRules(pairs ...string) (Rules, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of pattern/replacement arguments", ErrInvalidRule)
	}

	rules := make(Rules, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		r, err := NewRule(pairs[i], pairs[i+1])
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}

	return rules, nil
}

// MustParseRules is like ParseRules but panics on error.
func MustParseRules(pairs ...string) Rules {
	rules, err := ParseRules(pairs...)
	if err != nil {
		panic(err)
	}
	return rules
}

// NewRule compiles a single rule.
func NewRule(pattern, replacement string) (Rule, error) {
	if pattern == "" {
		return Rule{}, fmt.Errorf("%w: empty pattern", ErrInvalidRule)
	}

	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %q: %v", ErrInvalidRule, pattern, err)
	}

	return Rule{
		Pattern:     pattern,
		Replacement: replacement,
		re:          re,
		template:    translateTemplate(replacement),
	}, nil
}

// apply reports whether the rule's pattern occurs in name and, if so, returns
// name with every occurrence substituted.
func (r Rule) apply(name string) (string, bool) {
	if r.re == nil {
		panic(fmt.Errorf("%w: rule %q was not compiled", ErrInvalidRule, r.Pattern))
	}

	// regexp2 only fails on MatchTimeout, which is never set
	if ok, err := r.re.MatchString(name); err != nil || !ok {
		return name, false
	}

	out, err := r.re.Replace(name, r.template, -1, -1)
	if err != nil {
		return name, false
	}

	return out, true
}

// Rename applies the first rule whose pattern occurs in name. Names no rule
// matches are returned unchanged with false.
func (rs Rules) Rename(name string) (string, bool) {
	for _, r := range rs {
		if out, ok := r.apply(name); ok {
			return out, true
		}
	}

	return name, false
}

// LoadRules reads a JSON object of pattern to replacement entries. Rules keep
// the order in which they appear in the file.
func LoadRules(r io.Reader) (Rules, error) {
	m := orderedmap.New[string, string]()
	if err := json.NewDecoder(r).Decode(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	pairs := make([]string, 0, 2*m.Len())
	for pattern, replacement := range m.All() {
		pairs = append(pairs, pattern, replacement)
	}

	return ParseRules(pairs...)
}

// MarshalJSON writes rules in the format LoadRules reads.
func (rs Rules) MarshalJSON() ([]byte, error) {
	m := orderedmap.New[string, string]()
	for _, r := range rs {
		m.Set(r.Pattern, r.Replacement)
	}
	return json.Marshal(m)
}

// translateTemplate converts python style substitutions (\1, \g<name>) to the
// ${1} form regexp2 understands. Literal dollar signs are escaped.
func translateTemplate(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '$' && i+1 < len(s) && s[i+1] == '$':
			sb.WriteString("$$")
			i++
		case c == '$' && !isTemplateRef(s[i:]):
			sb.WriteString("$$")
		case c == '\\' && i+1 < len(s) && isDigit(s[i+1]):
			j := i + 1
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			fmt.Fprintf(&sb, "${%s}", s[i+1:j])
			i = j - 1
		case c == '\\' && strings.HasPrefix(s[i:], `\g<`):
			if end := strings.IndexByte(s[i:], '>'); end > 0 {
				fmt.Fprintf(&sb, "${%s}", s[i+3:i+end])
				i += end
				continue
			}
			sb.WriteByte(c)
		case c == '\\' && i+1 < len(s) && s[i+1] == '\\':
			sb.WriteByte('\\')
			i++
		default:
			sb.WriteByte(c)
		}
	}

	return sb.String()
}

func isTemplateRef(s string) bool {
	if len(s) < 2 {
		return false
	}
	return isDigit(s[1]) || s[1] == '{'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
