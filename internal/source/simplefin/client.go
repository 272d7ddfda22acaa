// Package simplefin fetches accounts, balances and transactions from a
// SimpleFIN bridge.
package simplefin

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/ledgerline/ledgerline/internal/logger"
)

// SettingAccessURL is the integration setting holding the access URL.
const SettingAccessURL = "access_url"

const (
	defaultHostSuffix = "simplefin.org"
	defaultTimeout    = 30 * time.Second
	defaultCacheTTL   = time.Minute
)

var (
	ErrInvalidAccessURL = errors.New("invalid SimpleFIN access URL")
	ErrAuth             = errors.New("SimpleFIN authentication failed; the access token may be invalid or revoked")
	ErrPaymentRequired  = errors.New("SimpleFIN subscription payment required")
)

// Client talks to SimpleFIN. Requests are throttled, and one /accounts
// response serves both the transaction and balance fetch of a sync.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	cache      *cache.Cache
	hostSuffix string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit sets the outbound request rate.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithHostSuffix restricts access URLs to hosts ending in suffix. An empty
// suffix allows any host.
func WithHostSuffix(suffix string) Option {
	return func(c *Client) { c.hostSuffix = suffix }
}

// WithCacheTTL sets how long an /accounts response is reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = cache.New(ttl, 2*ttl) }
}

// New creates a client.
func New(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 2),
		cache:      cache.New(defaultCacheTTL, 2*defaultCacheTTL),
		hostSuffix: defaultHostSuffix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type accessURL struct {
	base     string
	username string
	password string
}

// ValidateAccessURL checks an access URL without contacting the server.
func (c *Client) ValidateAccessURL(raw string) error {
	_, err := c.parseAccessURL(raw)
	return err
}

// parseAccessURL requires https, credentials and, unless disabled, a
// SimpleFIN host.
func (c *Client) parseAccessURL(raw string) (accessURL, error) {
	if strings.TrimSpace(raw) == "" {
		return accessURL{}, fmt.Errorf("%w: empty", ErrInvalidAccessURL)
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return accessURL{}, fmt.Errorf("%w: %v", ErrInvalidAccessURL, err)
	}
	if u.Scheme != "https" {
		return accessURL{}, fmt.Errorf("%w: must use https", ErrInvalidAccessURL)
	}
	if u.Hostname() == "" {
		return accessURL{}, fmt.Errorf("%w: no host", ErrInvalidAccessURL)
	}
	if c.hostSuffix != "" && !strings.HasSuffix(u.Hostname(), c.hostSuffix) {
		return accessURL{}, fmt.Errorf("%w: host must be under %s", ErrInvalidAccessURL, c.hostSuffix)
	}
	if u.User == nil || u.User.Username() == "" {
		return accessURL{}, fmt.Errorf("%w: missing username", ErrInvalidAccessURL)
	}
	password, ok := u.User.Password()
	if !ok || password == "" {
		return accessURL{}, fmt.Errorf("%w: missing password", ErrInvalidAccessURL)
	}
	return accessURL{
		base:     u.Scheme + "://" + u.Host + strings.TrimSuffix(u.Path, "/"),
		username: u.User.Username(),
		password: password,
	}, nil
}

// Claim exchanges a base64 setup token for an access URL.
func (c *Client) Claim(ctx context.Context, setupToken string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(setupToken))
	if err != nil {
		return "", fmt.Errorf("decoding setup token: %w", err)
	}
	claimURL := strings.TrimSpace(string(decoded))
	if u, err := url.Parse(claimURL); err != nil || u.Scheme != "https" {
		return "", fmt.Errorf("setup token does not contain an https claim URL")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claimURL, nil)
	if err != nil {
		return "", fmt.Errorf("building claim request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("claiming setup token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("claiming setup token: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("reading claim response: %w", err)
	}
	access := strings.TrimSpace(string(body))
	if _, err := c.parseAccessURL(access); err != nil {
		return "", err
	}
	return access, nil
}

type query struct {
	start, end   *time.Time
	accounts     []string
	balancesOnly bool
}

func (q query) values() url.Values {
	v := url.Values{}
	if q.start != nil {
		v.Set("start-date", strconv.FormatInt(q.start.Unix(), 10))
	}
	if q.end != nil {
		v.Set("end-date", strconv.FormatInt(q.end.Unix(), 10))
	}
	for _, a := range q.accounts {
		v.Add("account", a)
	}
	if q.balancesOnly {
		v.Set("balances-only", "1")
	} else {
		v.Set("pending", "1")
	}
	return v
}

// accounts performs GET {base}/accounts.
func (c *Client) accounts(ctx context.Context, rawURL string, q query) (*accountSet, error) {
	access, err := c.parseAccessURL(rawURL)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	endpoint := access.base + "/accounts?" + q.values().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth(access.username, access.password)

	log := logger.FromContext(ctx)
	log.Debug().Str("path", req.URL.Path).Str("query", req.URL.RawQuery).Msg("simplefin request")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching SimpleFIN accounts: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return nil, ErrAuth
	case http.StatusPaymentRequired:
		return nil, ErrPaymentRequired
	default:
		return nil, fmt.Errorf("SimpleFIN API error: HTTP %d", resp.StatusCode)
	}

	var set accountSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decoding SimpleFIN response: %w", err)
	}
	return &set, nil
}

// cacheKey identifies a response by credentials and account selection. The
// access URL is hashed so secrets never sit in the cache in clear text.
func cacheKey(rawURL string, ids []string) string {
	sum := sha256.Sum256([]byte(rawURL))
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return hex.EncodeToString(sum[:8]) + "|" + strings.Join(sorted, ",")
}

type accountSet struct {
	Errors   []string  `json:"errors"`
	Accounts []account `json:"accounts"`
}

type org struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
	URL    string `json:"url"`
}

type account struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
	BalanceDate  int64           `json:"balance-date"`
	Org          org             `json:"org"`
	Transactions []transaction   `json:"transactions"`
}

type transaction struct {
	ID           string          `json:"id"`
	Posted       int64           `json:"posted"`
	TransactedAt int64           `json:"transacted_at"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Payee        string          `json:"payee"`
	Memo         string          `json:"memo"`
	Pending      bool            `json:"pending"`
	Extra        struct {
		Category string `json:"category"`
	} `json:"extra"`
}
