// Package cop implements Confirmation of Payee: the name a customer typed is
// compared with the holder name registered for the destination account.
package cop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/adrg/strutil/metrics"
)

type Classification string

const (
	Match       Classification = "match"
	CloseMatch  Classification = "close_match"
	NoMatch     Classification = "no_match"
	Unavailable Classification = "unavailable"
)

var (
	ErrHolderNotFound   = errors.New("account holder not found")
	ErrNotParticipating = errors.New("institution does not participate in confirmation of payee")
)

// ErrNoSuchAccount is definitive: the sort code is ours and the account does
// not exist.
var ErrNoSuchAccount = errors.New("no account with these details at this bank")

type Result struct {
	Classification Classification `json:"classification"`
	MatchedName    string         `json:"matchedName,omitempty"`
}

// Proceedable is false only for no_match.
func (r Result) Proceedable() bool {
	return r.Classification != NoMatch
}

// Warning is the message a caller must show before a close match proceeds.
func (r Result) Warning() string {
	switch r.Classification {
	case CloseMatch:
		return fmt.Sprintf("The name you entered is a close match. The account holder's name is %s.", r.MatchedName)
	case Unavailable:
		return "We could not check the name on this account."
	default:
		return ""
	}
}

// Directory resolves the registered holder name of an account.
type Directory interface {
	HolderName(ctx context.Context, sortCode, accountNumber string) (string, error)
}

type Matcher struct {
	directory Directory
}

func NewMatcher(directory Directory) *Matcher {
	return &Matcher{directory: directory}
}

func (m *Matcher) Match(ctx context.Context, name, sortCode, accountNumber string) (Result, error) {
	holder, err := m.directory.HolderName(ctx, sortCode, accountNumber)
	if errors.Is(err, ErrHolderNotFound) || errors.Is(err, ErrNotParticipating) {
		log.Printf("[COP] holder lookup unavailable for %s: %v", sortCode, err)
		return Result{Classification: Unavailable}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("holder name lookup: %w", err)
	}

	return Classify(name, holder), nil
}

const (
	closeMatchThreshold = 0.88
	tokenTypoThreshold  = 0.92
)

var titles = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "mx": true,
	"dr": true, "prof": true, "sir": true, "dame": true, "rev": true,
	"lord": true, "lady": true,
}

// Classify compares a candidate name with the registered holder name.
func Classify(candidate, holder string) Result {
	a, b := Normalize(candidate), Normalize(holder)
	if a == "" || b == "" {
		return Result{Classification: NoMatch}
	}
	if a == b {
		return Result{Classification: Match, MatchedName: holder}
	}

	if tokensCompatible(strings.Fields(a), strings.Fields(b)) || similarity(a, b) >= closeMatchThreshold {
		return Result{Classification: CloseMatch, MatchedName: holder}
	}

	return Result{Classification: NoMatch}
}

// Normalize case-folds, drops titles and punctuation, and splits hyphenated names.
func Normalize(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r == '\'' || r == '’':
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		default:
			sb.WriteRune(' ')
		}
	}

	var tokens []string
	for _, tok := range strings.Fields(sb.String()) {
		if titles[tok] {
			continue
		}
		if tok == "limited" {
			tok = "ltd"
		}
		tokens = append(tokens, tok)
	}
	return strings.Join(tokens, " ")
}

// tokensCompatible accepts initials, missing middle names and reordering as
// long as every candidate token maps onto a distinct holder token and at least
// one of them is spelled out in full.
func tokensCompatible(candidate, holder []string) bool {
	if len(candidate) == 0 || len(candidate) > len(holder) {
		return false
	}

	used := make([]bool, len(holder))
	spelledOut := false
	for _, tok := range candidate {
		found := false
		for i, h := range holder {
			if !used[i] && tokenMatches(tok, h) {
				used[i] = true
				found = true
				if len([]rune(tok)) > 1 && len([]rune(h)) > 1 {
					spelledOut = true
				}
				break
			}
		}
		if !found {
			return false
		}
	}
	return spelledOut
}

func tokenMatches(candidate, holder string) bool {
	if candidate == holder {
		return true
	}
	cr, hr := []rune(candidate), []rune(holder)
	if len(cr) == 1 || len(hr) == 1 {
		return cr[0] == hr[0]
	}
	return similarity(candidate, holder) >= tokenTypoThreshold
}

func similarity(a, b string) float64 {
	return metrics.NewJaroWinkler().Compare(a, b)
}
