package monobank

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/podilnyk/monojar/internal/config"
	"github.com/podilnyk/monojar/internal/models/errs"
	"github.com/podilnyk/monojar/pkg/logger"
)

// MaxStatementWindow is the widest range the statement endpoint accepts:
// 31 days and one hour, in seconds.
const MaxStatementWindow int64 = 2_682_000

// DefaultStatementDepth is how far back a statement request reaches
// when the caller does not provide a lower bound.
const DefaultStatementDepth = 30 * 24 * time.Hour

// How much of an error response body is kept for diagnostics.
const maxErrorBodyBytes = 500

const tokenHeader = "X-Token"

// StatementItem is a single transaction from a jar statement.
type StatementItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Comment     string `json:"comment"`
	Amount      int64  `json:"amount"`
	Time        int64  `json:"time"`
}

// Jar is a client-info entry describing one jar of the token owner.
type Jar struct {
	ID           string `json:"id"`
	SendID       string `json:"sendId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	CurrencyCode int    `json:"currencyCode"`
	Balance      int64  `json:"balance"`
	Goal         int64  `json:"goal"`
}

// ClientInfo is the answer of the personal/client-info endpoint,
// trimmed to the fields this service consumes.
type ClientInfo struct {
	Name string `json:"name"`
	Jars []Jar  `json:"jars"`
}

// Client talks to the Monobank personal API. It performs no retries:
// retry policy belongs to the caller.
type Client struct {
	client  *http.Client
	logger  logger.Logger
	address string
}

func New(cfg *config.Config, logger logger.Logger) *Client {
	return &Client{
		client:  &http.Client{Timeout: cfg.Monobank.Timeout},
		logger:  logger,
		address: cfg.Monobank.Address,
	}
}

// Statement fetches a jar's transactions for the [from, to] window.
// Zero from/to default to 30 days ago and now respectively. A window
// wider than MaxStatementWindow is clamped at the upper bound; the
// caller receives only the clamped window's data.
func (c *Client) Statement(ctx context.Context, token, account string, from, to time.Time) ([]StatementItem, error) {
	now := time.Now()
	if from.IsZero() {
		from = now.Add(-DefaultStatementDepth)
	}
	if to.IsZero() {
		to = now
	}

	if from.After(to) {
		return nil, fmt.Errorf("%w: from %d is after to %d",
			errs.ErrInvalidRange, from.Unix(), to.Unix())
	}

	fromUnix := from.Unix()
	toUnix := to.Unix()
	if toUnix-fromUnix > MaxStatementWindow {
		toUnix = fromUnix + MaxStatementWindow
	}

	url := fmt.Sprintf("%s/personal/statement/%s/%d/%d",
		c.address, account, fromUnix, toUnix)

	body, err := c.get(ctx, url, token)
	if err != nil {
		return nil, err
	}

	var items []StatementItem
	if err = json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode statement: %w", err)
	}

	c.logger.With(ctx, "account", account, "from", fromUnix, "to", toUnix).
		Debugf("fetched statement with %d transactions", len(items))

	return items, nil
}

// ClientInfo fetches the token owner's profile with its jars.
// The endpoint allows one request per minute.
func (c *Client) ClientInfo(ctx context.Context, token string) (*ClientInfo, error) {
	body, err := c.get(ctx, c.address+"/personal/client-info", token)
	if err != nil {
		return nil, err
	}

	info := new(ClientInfo)
	if err = json.Unmarshal(body, info); err != nil {
		return nil, fmt.Errorf("decode client info: %w", err)
	}

	return info, nil
}

func (c *Client) get(ctx context.Context, url, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(tokenHeader, token)

	res, err := c.client.Do(req)
	if err != nil {
		// Timeouts and transport failures look the same to the caller.
		return nil, fmt.Errorf("%w: %s", errs.ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("%w: ledger responded %d: %s",
			errs.ErrRateLimit, res.StatusCode, body)
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyBytes))
		return nil, &errs.UpstreamError{StatusCode: res.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %s", errs.ErrUpstreamUnavailable, err)
	}

	return body, nil
}
