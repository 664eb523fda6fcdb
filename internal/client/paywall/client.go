// Package paywall is a small HTTP client for the checkout flow: record a
// pending payment, then poll its status until the webhook lands.
package paywall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"telegram-group-paywall/internal/domain"
)

type Outcome string

const (
	Confirmed       Outcome = "confirmed"
	Failed          Outcome = "failed"
	StillProcessing Outcome = "still_processing"
)

// Policy bounds the polling loop. Interval grows by Backoff up to MaxInterval.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
	Backoff     float64
	MaxInterval time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 10, Interval: 2 * time.Second, Backoff: 1.5, MaxInterval: 15 * time.Second}
}

type PaymentStatus struct {
	Reference          string     `json:"reference"`
	TransactionRef     string     `json:"transactionRef,omitempty"`
	Status             string     `json:"status"`
	SubscriptionStatus string     `json:"subscriptionStatus"`
	Amount             string     `json:"amount"`
	DurationTier       string     `json:"durationTier"`
	FailureReason      string     `json:"failureReason,omitempty"`
	PaidAt             *time.Time `json:"paidAt,omitempty"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
}

type RecordRequest struct {
	Reference    string `json:"reference"`
	SubjectID    string `json:"subjectId"`
	GroupID      string `json:"groupId"`
	Amount       string `json:"amount"`
	DurationTier string `json:"durationTier"`
	ContactEmail string `json:"contactEmail,omitempty"`
}

// Result is the terminal state of WaitForConfirmation.
type Result struct {
	Outcome  Outcome
	Attempts int
	Payment  *PaymentStatus // last status seen, nil if never found
}

type Client struct {
	baseURL string
	http    *http.Client
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		sleep:   sleepCtx,
	}
}

func (c *Client) Record(ctx context.Context, in RecordRequest) (*PaymentStatus, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/payments/record", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out PaymentStatus
	if err := c.do(req, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the ledger view of ref. Unknown references return domain.ErrNotFound.
func (c *Client) Status(ctx context.Context, ref string) (*PaymentStatus, error) {
	if ref == "" {
		return nil, domain.ErrInvalidArgument
	}
	u := c.baseURL + "/api/payments/" + url.PathEscape(ref) + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var out PaymentStatus
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForConfirmation polls Status at most p.MaxAttempts times. Running out of
// attempts is not an error: the result is StillProcessing and the caller
// shows a distinct "still processing" state. Not-found and transport errors
// count as attempts, since the payment row or the webhook may simply lag.
func (c *Client) WaitForConfirmation(ctx context.Context, ref string, p Policy) (Result, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Backoff < 1 {
		p.Backoff = 1
	}
	res := Result{Outcome: StillProcessing}
	delay := p.Interval
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		res.Attempts = attempt
		st, err := c.Status(ctx, ref)
		switch {
		case err == nil:
			res.Payment = st
			switch strings.ToLower(st.Status) {
			case "paid", "successful":
				res.Outcome = Confirmed
				return res, nil
			case "failed":
				res.Outcome = Failed
				return res, nil
			}
		case errors.Is(err, domain.ErrInvalidArgument):
			return res, err
		case ctx.Err() != nil:
			return res, ctx.Err()
		}

		if attempt == p.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			return res, err
		}
		delay = time.Duration(float64(delay) * p.Backoff)
		if p.MaxInterval > 0 && delay > p.MaxInterval {
			delay = p.MaxInterval
		}
	}
	return res, nil
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(req *http.Request, want int, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var e apiError
		_ = json.NewDecoder(resp.Body).Decode(&e)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return domain.ErrNotFound
		case http.StatusConflict:
			return domain.ErrDuplicateReference
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, e.Error)
		}
		return fmt.Errorf("paywall api: http %d: %s", resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NewReference returns a sortable, collision-resistant checkout reference.
func NewReference() string {
	return "pw_" + strings.ToLower(ulid.Make().String())
}
