// Package modulus validates UK sort code and account number pairs with the
// weighted modulus checks published for each sort code range.
package modulus

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed weights.yaml
var defaultTable []byte

type Method string

const (
	MethodMod10           Method = "MOD10"
	MethodMod11           Method = "MOD11"
	MethodDoubleAlternate Method = "DBLAL"
)

const (
	ReasonInvalidSortCode      = "invalid sort code format"
	ReasonInvalidAccountNumber = "invalid account number format"
	ReasonFailedCheck          = "failed modulus check for this sort code"
)

// Rule is one row of the weight table.
type Rule struct {
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Method    Method `yaml:"method"`
	Weights   []int  `yaml:"weights"`
	Exception int    `yaml:"exception,omitempty"`
}

type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type Validator struct {
	rules []Rule
}

// NewValidator loads the embedded weight table.
func NewValidator() (*Validator, error) {
	return LoadTable(defaultTable)
}

func LoadTable(data []byte) (*Validator, error) {
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse weight table: %w", err)
	}

	for i, r := range rules {
		if !isDigits(r.From, 6) || !isDigits(r.To, 6) || r.From > r.To {
			return nil, fmt.Errorf("weight table row %d: invalid range %s-%s", i, r.From, r.To)
		}
		if len(r.Weights) != 14 {
			return nil, fmt.Errorf("weight table row %d: expected 14 weights, got %d", i, len(r.Weights))
		}
		switch r.Method {
		case MethodMod10, MethodMod11, MethodDoubleAlternate:
		default:
			return nil, fmt.Errorf("weight table row %d: unknown method %q", i, r.Method)
		}
	}

	sort.SliceStable(rules, func(i, j int) bool { return rules[i].From < rules[j].From })
	return &Validator{rules: rules}, nil
}

// Validate is pure: the same pair always yields the same result.
func (v *Validator) Validate(sortCode, accountNumber string) Result {
	sc := normalizeSortCode(sortCode)
	if !isDigits(sc, 6) {
		return Result{Reason: ReasonInvalidSortCode}
	}

	acct := strings.TrimSpace(accountNumber)
	if !isDigits(acct, 8) {
		return Result{Reason: ReasonInvalidAccountNumber}
	}

	rules := v.RulesFor(sc)
	if len(rules) == 0 {
		return Result{Valid: true}
	}

	var digits [14]int
	for i, c := range sc + acct {
		digits[i] = int(c - '0')
	}

	for _, r := range rules {
		if !r.passes(digits) {
			return Result{Reason: ReasonFailedCheck}
		}
	}

	return Result{Valid: true}
}

// RulesFor returns the rows covering a normalized sort code, in table order.
func (v *Validator) RulesFor(sortCode string) []Rule {
	var matched []Rule
	for _, r := range v.rules {
		if sortCode >= r.From && sortCode <= r.To {
			matched = append(matched, r)
		}
	}
	return matched
}

func (r Rule) passes(digits [14]int) bool {
	total := 0
	for i, w := range r.Weights {
		product := digits[i] * w
		if r.Method == MethodDoubleAlternate {
			total += product/10 + product%10
		} else {
			total += product
		}
	}

	switch r.Method {
	case MethodMod10:
		return total%10 == 0
	case MethodMod11:
		return total%11 == 0
	default:
		if r.Exception == 1 {
			total += 27
		}
		return total%10 == 0
	}
}

func normalizeSortCode(s string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(s))
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
