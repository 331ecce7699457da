package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"whisk/pkg/errors"
	"whisk/pkg/models"
)

const tokenHeader = "X-Shopify-Access-Token"

// Client talks to the commerce platform's Admin REST API. Listing
// endpoints are cursor-paginated: the next page is advertised in the
// Link response header and carries an opaque page_info token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	pageSize   int
	retryCfg   *errors.RetryConfig
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(base, "/") }
}

// WithPageSize sets the per-page record limit (the API caps it at 250)
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= 250 {
			c.pageSize = n
		}
	}
}

// WithRetryConfig overrides the request retry policy
func WithRetryConfig(cfg *errors.RetryConfig) Option {
	return func(c *Client) { c.retryCfg = cfg }
}

// NewClient creates an Admin API client for the given store
func NewClient(domain, apiVersion, token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    fmt.Sprintf("https://%s/admin/api/%s", domain, apiVersion),
		token:      token,
		pageSize:   250,
		retryCfg:   errors.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Shop describes the store; fetching it doubles as a connectivity and
// credential check.
type Shop struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"myshopify_domain"`
	Email  string `json:"email"`
}

// GetShop fetches the store record
func (c *Client) GetShop(ctx context.Context) (*Shop, error) {
	body, _, err := c.get(ctx, c.baseURL+"/shop.json")
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Shop Shop `json:"shop"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAPIResponse, "failed to decode shop payload")
	}
	return &envelope.Shop, nil
}

// OrderPage is one page of orders with the raw per-record payloads
// preserved for landing in object storage.
type OrderPage struct {
	Orders []models.Order
	Raw    []json.RawMessage
}

// CustomerPage is one page of customers.
type CustomerPage struct {
	Customers []models.Customer
	Raw       []json.RawMessage
}

// EachOrderPage walks all orders updated at or after since, invoking fn
// once per page. Iteration stops on the first fn error.
func (c *Client) EachOrderPage(ctx context.Context, since time.Time, fn func(OrderPage) error) error {
	query := url.Values{}
	query.Set("status", "any")
	query.Set("limit", strconv.Itoa(c.pageSize))
	if !since.IsZero() {
		query.Set("updated_at_min", since.UTC().Format(time.RFC3339))
	}

	next := c.baseURL + "/orders.json?" + query.Encode()
	for next != "" {
		body, links, err := c.get(ctx, next)
		if err != nil {
			return err
		}

		var envelope struct {
			Orders []json.RawMessage `json:"orders"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return errors.Wrap(err, errors.ErrCodeAPIResponse, "failed to decode orders payload")
		}

		page := OrderPage{Raw: envelope.Orders}
		for _, raw := range envelope.Orders {
			var order models.Order
			if err := json.Unmarshal(raw, &order); err != nil {
				return errors.Wrap(err, errors.ErrCodeAPIResponse, "failed to decode order record")
			}
			page.Orders = append(page.Orders, order)
		}

		if len(page.Orders) > 0 {
			if err := fn(page); err != nil {
				return err
			}
		}

		next = links.next
	}
	return nil
}

// EachCustomerPage walks all customers updated at or after since.
func (c *Client) EachCustomerPage(ctx context.Context, since time.Time, fn func(CustomerPage) error) error {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.pageSize))
	if !since.IsZero() {
		query.Set("updated_at_min", since.UTC().Format(time.RFC3339))
	}

	next := c.baseURL + "/customers.json?" + query.Encode()
	for next != "" {
		body, links, err := c.get(ctx, next)
		if err != nil {
			return err
		}

		var envelope struct {
			Customers []json.RawMessage `json:"customers"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return errors.Wrap(err, errors.ErrCodeAPIResponse, "failed to decode customers payload")
		}

		page := CustomerPage{Raw: envelope.Customers}
		for _, raw := range envelope.Customers {
			var customer models.Customer
			if err := json.Unmarshal(raw, &customer); err != nil {
				return errors.Wrap(err, errors.ErrCodeAPIResponse, "failed to decode customer record")
			}
			page.Customers = append(page.Customers, customer)
		}

		if len(page.Customers) > 0 {
			if err := fn(page); err != nil {
				return err
			}
		}

		next = links.next
	}
	return nil
}

type pageLinks struct {
	next string
}

// get performs a GET with retries. Throttled (429) and 5xx responses
// are retried with backoff; a Retry-After header is honored first.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, pageLinks, error) {
	var body []byte
	var links pageLinks

	err := errors.Retry(ctx, c.retryCfg, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to build API request")
		}
		req.Header.Set(tokenHeader, c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeNetworkUnavailable, "API request failed").AsRecoverable()
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeAPIResponse, "failed to read API response")
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := errors.APIError(
				fmt.Sprintf("API returned status %d", resp.StatusCode),
				req.URL.Path, resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(data))),
			)
			if resp.StatusCode == http.StatusTooManyRequests {
				waitRetryAfter(ctx, resp.Header.Get("Retry-After"))
			}
			return apiErr
		}

		body = data
		links = parseLinks(resp.Header.Get("Link"))
		return nil
	})

	return body, links, err
}

// waitRetryAfter sleeps for the server-requested delay, capped at 30s.
func waitRetryAfter(ctx context.Context, header string) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(header), 64)
	if err != nil || seconds <= 0 {
		return
	}
	delay := time.Duration(seconds * float64(time.Second))
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// parseLinks extracts the rel="next" URL from a Link header of the form
// <https://...&page_info=abc>; rel="next", <...>; rel="previous"
func parseLinks(header string) pageLinks {
	var links pageLinks
	for _, part := range strings.Split(header, ",") {
		section := strings.Split(part, ";")
		if len(section) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(section[0]), "<>")
		for _, param := range section[1:] {
			if strings.TrimSpace(param) == `rel="next"` {
				links.next = target
			}
		}
	}
	return links
}
