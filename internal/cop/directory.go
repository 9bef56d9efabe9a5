package cop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Bank is a sort code range owned by one institution.
type Bank struct {
	Name           string `json:"name"`
	SortCodeFrom   string `json:"sortCodeFrom"`
	SortCodeTo     string `json:"sortCodeTo"`
	CoPParticipant bool   `json:"copParticipant"`
}

var ukBanks = []Bank{
	{Name: "RuralPay Bank", SortCodeFrom: "040000", SortCodeTo: "040099", CoPParticipant: true},
	{Name: "Barclays", SortCodeFrom: "200000", SortCodeTo: "209999", CoPParticipant: true},
	{Name: "Lloyds", SortCodeFrom: "300000", SortCodeTo: "309999", CoPParticipant: true},
	{Name: "HSBC UK", SortCodeFrom: "400000", SortCodeTo: "409999", CoPParticipant: true},
	{Name: "NatWest", SortCodeFrom: "500000", SortCodeTo: "609999", CoPParticipant: true},
	{Name: "Santander UK", SortCodeFrom: "090000", SortCodeTo: "090199", CoPParticipant: true},
	{Name: "Nationwide", SortCodeFrom: "070000", SortCodeTo: "070999", CoPParticipant: true},
	{Name: "Co-operative Bank", SortCodeFrom: "089000", SortCodeTo: "089999", CoPParticipant: false},
	{Name: "Virgin Money", SortCodeFrom: "820000", SortCodeTo: "839999", CoPParticipant: true},
	{Name: "Metro Bank", SortCodeFrom: "230580", SortCodeTo: "230580", CoPParticipant: false},
	{Name: "Building Society Settlement", SortCodeFrom: "107000", SortCodeTo: "107999", CoPParticipant: false},
}

// Banks returns a copy of the known sort code ranges.
func Banks() []Bank {
	banks := make([]Bank, len(ukBanks))
	copy(banks, ukBanks)
	return banks
}

func LookupBank(sortCode string) (Bank, bool) {
	for _, b := range ukBanks {
		if sortCode >= b.SortCodeFrom && sortCode <= b.SortCodeTo {
			return b, true
		}
	}
	return Bank{}, false
}

// CompositeDirectory answers from our own ledger for our sort codes and from
// the external CoP service for participating institutions.
type CompositeDirectory struct {
	local       Directory
	remote      Directory
	ownPrefixes []string
}

func NewCompositeDirectory(local, remote Directory, ownPrefixes []string) *CompositeDirectory {
	return &CompositeDirectory{local: local, remote: remote, ownPrefixes: ownPrefixes}
}

func (d *CompositeDirectory) HolderName(ctx context.Context, sortCode, accountNumber string) (string, error) {
	for _, prefix := range d.ownPrefixes {
		if strings.HasPrefix(sortCode, prefix) {
			name, err := d.local.HolderName(ctx, sortCode, accountNumber)
			if errors.Is(err, ErrHolderNotFound) {
				return "", ErrNoSuchAccount
			}
			return name, err
		}
	}

	bank, ok := LookupBank(sortCode)
	if !ok || !bank.CoPParticipant || d.remote == nil {
		return "", ErrNotParticipating
	}
	return d.remote.HolderName(ctx, sortCode, accountNumber)
}

// HTTPDirectory calls the external name enquiry service.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

func NewHTTPDirectory(baseURL string, timeout time.Duration) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDirectory) HolderName(ctx context.Context, sortCode, accountNumber string) (string, error) {
	externalURL := fmt.Sprintf("%s/accounts/%s/%s/name", d.baseURL, url.PathEscape(sortCode), url.PathEscape(accountNumber))
	log.Printf("[COP] Calling external name enquiry for sort code %s", sortCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, externalURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		log.Printf("[COP] External name enquiry failed: %v", err)
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", ErrHolderNotFound
	case http.StatusNotImplemented:
		return "", ErrNotParticipating
	default:
		log.Printf("[COP] External name enquiry returned status %d", resp.StatusCode)
		return "", fmt.Errorf("external name enquiry returned status %d", resp.StatusCode)
	}

	var result struct {
		AccountName string `json:"accountName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode name enquiry response: %w", err)
	}
	if result.AccountName == "" {
		return "", ErrHolderNotFound
	}

	return result.AccountName, nil
}
