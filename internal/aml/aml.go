// Package aml screens payments for money-laundering indicators. Alert detail
// is for the compliance record only; customers see CustomerMessage.
package aml

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/ruralpay/payauth/internal/config"
	"github.com/ruralpay/payauth/internal/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed watchlist.yaml
var defaultWatchlist []byte

const CustomerMessage = "This payment requires additional verification. Please contact us to complete it."

type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

type AlertKind string

const (
	AlertLargeTransaction AlertKind = "large_transaction"
	AlertStructuring      AlertKind = "structuring"
	AlertSanctionsMatch   AlertKind = "sanctions_match"
	AlertPEPMatch         AlertKind = "pep_match"
)

type Alert struct {
	Kind        AlertKind `json:"kind"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
}

type Outcome struct {
	Passed bool    `json:"passed"`
	Alerts []Alert `json:"alerts"`
}

type Input struct {
	UserID           string
	AccountID        string
	Amount           int64
	CounterpartyName string
	Direction        Direction
}

type HistorySource interface {
	RecentPayments(ctx context.Context, userID string, since time.Time) ([]models.PaymentRecord, error)
}

type WatchEntry struct {
	Name    string   `yaml:"name"`
	List    string   `yaml:"list"`
	Aliases []string `yaml:"aliases"`
}

type screenKey struct {
	entry WatchEntry
	key   string
}

type Monitor struct {
	cfg     config.AMLConfig
	history HistorySource
	now     func() time.Time
	screen  []screenKey
}

func NewMonitor(cfg config.AMLConfig, history HistorySource, now func() time.Time) (*Monitor, error) {
	entries, err := LoadWatchlist(defaultWatchlist)
	if err != nil {
		return nil, err
	}
	return NewMonitorWithWatchlist(cfg, history, now, entries), nil
}

func NewMonitorWithWatchlist(cfg config.AMLConfig, history HistorySource, now func() time.Time, entries []WatchEntry) *Monitor {
	if now == nil {
		now = time.Now
	}
	m := &Monitor{cfg: cfg, history: history, now: now}
	for _, e := range entries {
		for _, name := range append([]string{e.Name}, e.Aliases...) {
			m.screen = append(m.screen, screenKey{entry: e, key: screeningKey(name)})
		}
	}
	return m
}

func LoadWatchlist(data []byte) ([]WatchEntry, error) {
	var entries []WatchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse watch list: %w", err)
	}
	for i, e := range entries {
		if e.Name == "" || (e.List != "sanctions" && e.List != "pep") {
			return nil, fmt.Errorf("watch list entry %d: invalid name or list %q", i, e.List)
		}
	}
	return entries, nil
}

// Check fails when any alert is high severity or above.
func (m *Monitor) Check(ctx context.Context, in Input) (Outcome, error) {
	var alerts []Alert

	if in.Amount >= m.cfg.LargeTransaction {
		alerts = append(alerts, Alert{
			Kind:        AlertLargeTransaction,
			Severity:    SeverityMedium,
			Description: fmt.Sprintf("single %s of %d at or above %d", in.Direction, in.Amount, m.cfg.LargeTransaction),
		})
	}

	if in.Direction == Debit {
		alert, err := m.structuring(ctx, in)
		if err != nil {
			return Outcome{}, err
		}
		if alert != nil {
			alerts = append(alerts, *alert)
		}
	}

	if alert := m.screenName(in.CounterpartyName); alert != nil {
		alerts = append(alerts, *alert)
	}

	outcome := Outcome{Passed: true, Alerts: alerts}
	for _, a := range alerts {
		if a.Severity.rank() >= SeverityHigh.rank() {
			outcome.Passed = false
		}
	}

	if len(alerts) > 0 {
		log.Printf("[AML] user %s: %d alert(s), passed=%t", in.UserID, len(alerts), outcome.Passed)
	}
	return outcome, nil
}

// structuring looks for several payments sitting just under the reporting threshold.
func (m *Monitor) structuring(ctx context.Context, in Input) (*Alert, error) {
	floor := decimal.NewFromInt(m.cfg.ReportingThreshold).
		Mul(decimal.NewFromInt(int64(m.cfg.StructuringBand))).
		Div(decimal.NewFromInt(100)).
		Ceil().
		IntPart()
	inBand := func(amount int64) bool {
		return amount >= floor && amount < m.cfg.ReportingThreshold
	}
	if !inBand(in.Amount) {
		return nil, nil
	}

	recent, err := m.history.RecentPayments(ctx, in.UserID, m.now().Add(-m.cfg.StructuringWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load payment history: %w", err)
	}

	count := 1
	for _, p := range recent {
		if inBand(p.Amount) {
			count++
		}
	}
	if count < m.cfg.StructuringCount {
		return nil, nil
	}

	return &Alert{
		Kind:        AlertStructuring,
		Severity:    SeverityHigh,
		Description: fmt.Sprintf("%d payments between %d and %d within %s", count, floor, m.cfg.ReportingThreshold, m.cfg.StructuringWindow),
	}, nil
}

func (m *Monitor) screenName(name string) *Alert {
	key := screeningKey(name)
	if key == "" {
		return nil
	}
	for _, s := range m.screen {
		if s.key != key {
			continue
		}
		if s.entry.List == "sanctions" {
			return &Alert{
				Kind:        AlertSanctionsMatch,
				Severity:    SeverityCritical,
				Description: fmt.Sprintf("counterparty matches sanctions entry %q", s.entry.Name),
			}
		}
		return &Alert{
			Kind:        AlertPEPMatch,
			Severity:    SeverityMedium,
			Description: fmt.Sprintf("counterparty matches politically exposed person %q", s.entry.Name),
		}
	}
	return nil
}

// screeningKey is order-insensitive so "Kestrel Viktor" screens like "Viktor Kestrel".
func screeningKey(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var tokens []string
	for _, f := range fields {
		switch f {
		case "mr", "mrs", "ms", "miss", "dr":
			continue
		case "limited":
			f = "ltd"
		}
		tokens = append(tokens, f)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
