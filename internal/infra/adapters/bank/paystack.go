// File: internal/infra/adapters/bank/paystack.go
package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/infra/metrics"
)

var _ adapter.AccountResolver = (*PaystackResolver)(nil)

const banksCacheKey = "banks"

// PaystackResolver implements adapter.AccountResolver against the Paystack
// REST API (GET /bank and GET /bank/resolve).
type PaystackResolver struct {
	baseURL   string
	secretKey string
	country   string
	client    *http.Client
	banks     *expirable.LRU[string, []adapter.Bank]
}

func NewPaystackResolver(baseURL, secretKey, country string, timeout, cacheTTL time.Duration) (*PaystackResolver, error) {
	if secretKey == "" {
		return nil, errors.New("paystack secret key empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid paystack base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PaystackResolver{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		country:   country,
		client:    &http.Client{Timeout: timeout},
		banks:     expirable.NewLRU[string, []adapter.Bank](1, nil, cacheTTL),
	}, nil
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *PaystackResolver) get(ctx context.Context, path string, q url.Values) (json.RawMessage, error) {
	u := p.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrResolution, err)
	}
	defer resp.Body.Close()

	var env paystackEnvelope
	decErr := json.NewDecoder(resp.Body).Decode(&env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: paystack http %d: %s", domain.ErrResolution, resp.StatusCode, msg)
	}
	if decErr != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrResolution, decErr)
	}
	if !env.Status {
		return nil, fmt.Errorf("%w: %s", domain.ErrResolution, env.Message)
	}
	return env.Data, nil
}

// ResolveAccount returns the registered account name for a NUBAN account.
func (p *PaystackResolver) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*adapter.ResolvedAccount, error) {
	if accountNumber == "" || bankCode == "" {
		return nil, domain.ErrInvalidArgument
	}
	data, err := p.get(ctx, "/bank/resolve", url.Values{"account_number": {accountNumber}, "bank_code": {bankCode}})
	if err != nil {
		return nil, err
	}
	var out struct {
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
	}
	if err := json.Unmarshal(data, &out); err != nil || out.AccountName == "" {
		return nil, fmt.Errorf("%w: empty account name", domain.ErrResolution)
	}
	if out.AccountNumber == "" {
		out.AccountNumber = accountNumber
	}
	return &adapter.ResolvedAccount{AccountNumber: out.AccountNumber, AccountName: out.AccountName, BankCode: bankCode}, nil
}

// ListBanks returns the NUBAN bank directory, cached for the configured TTL.
func (p *PaystackResolver) ListBanks(ctx context.Context) ([]adapter.Bank, error) {
	if banks, ok := p.banks.Get(banksCacheKey); ok {
		metrics.IncCacheRequest("banks", "hit")
		return banks, nil
	}
	metrics.IncCacheRequest("banks", "miss")

	data, err := p.get(ctx, "/bank", url.Values{"country": {p.country}, "type": {"nuban"}})
	if err != nil {
		return nil, err
	}
	var banks []adapter.Bank
	if err := json.Unmarshal(data, &banks); err != nil {
		return nil, fmt.Errorf("%w: decode banks: %v", domain.ErrResolution, err)
	}
	p.banks.Add(banksCacheKey, banks)
	return banks, nil
}
