package normalize

import (
	"regexp"
	"strings"
)

// Rule is one entry of the rewrite table. Match reports whether the rule
// applies to s; Apply produces the rewritten sentence.
type Rule struct {
	Name  string
	Match func(s string) bool
	Apply func(s string) string
}

// openers are the imperative verbs the rewrite table recognises, with the
// participle used in the descriptive form. Order is significant.
var openers = []struct {
	verb       string
	participle string
}{
	{"implement", "implemented"},
	{"create", "created"},
	{"ensure", "ensured"},
	{"configure", "configured"},
	{"establish", "established"},
	{"maintain", "maintained"},
	{"monitor", "monitored"},
	{"protect", "protected"},
	{"manage", "managed"},
	{"enforce", "enforced"},
}

var connectors = `by|through|using|via|with|to|in accordance with`

// Rules is the ordered rewrite table. Normalize applies at most one rule:
// the first whose Match returns true.
var Rules = buildRules()

func buildRules() []Rule {
	rules := []Rule{
		regexRule("ensure-that",
			regexp.MustCompile(`(?i)^ensures?\s+that\s+(.+)$`),
			func(m []string) string { return capitalize(m[1]) }),
	}
	for _, o := range openers {
		withConnector := regexp.MustCompile(`(?i)^` + o.verb + `s?\s+(.+?)\s+(` + connectors + `)\s+(.+)$`)
		bare := regexp.MustCompile(`(?i)^` + o.verb + `s?\s+(.+?)([.!?]?)$`)
		participle := o.participle
		rules = append(rules,
			regexRule(o.verb+"-connector", withConnector, func(m []string) string {
				return capitalize(m[1]) + " is " + participle + " " + strings.ToLower(m[2]) + " " + m[3]
			}),
			regexRule(o.verb, bare, func(m []string) string {
				return capitalize(m[1]) + " is " + participle + m[2]
			}),
		)
	}
	return rules
}

// regexRule builds a rule from a pattern and a rewrite of its submatches.
// The rule only matches when its output would not itself start with an
// opener, a label or a wrapping quote, so a second pass leaves it unchanged.
func regexRule(name string, re *regexp.Regexp, rewrite func(m []string) string) Rule {
	apply := func(s string) string {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return s
		}
		return rewrite(m)
	}
	return Rule{
		Name: name,
		Match: func(s string) bool {
			if !re.MatchString(s) {
				return false
			}
			return !needsRewrite(apply(s))
		},
		Apply: apply,
	}
}

var openerPrefix = func() *regexp.Regexp {
	verbs := make([]string, len(openers))
	for i, o := range openers {
		verbs[i] = o.verb
	}
	return regexp.MustCompile(`(?i)^(` + strings.Join(verbs, "|") + `)s?\s`)
}()

// needsRewrite reports whether s starts with something Normalize would strip
// or rewrite.
func needsRewrite(s string) bool {
	if openerPrefix.MatchString(s) {
		return true
	}
	if _, ok := stripLabel(s); ok {
		return true
	}
	_, ok := stripQuotes(s)
	return ok
}

func capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}
