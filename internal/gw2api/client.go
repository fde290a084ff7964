package gw2api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://api.guildwars2.com"
	defaultVersion = "v2"

	// DefaultPageSize is the largest page the API serves.
	DefaultPageSize = 200
	// bigPage is deliberately beyond any plausible page count so the API
	// answers with an error naming the valid page range.
	bigPage = 9999
)

// maxPagePattern pulls the upper bound out of error text like
// "page out of range. Use page values 0 - 181.".
var maxPagePattern = regexp.MustCompile(`0\s-\s(\d+)\.`)

// TransportError is a network failure, non-success HTTP status, or
// malformed body from the API. It is the only error kind the retry
// controller resumes from; everything else is fatal.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api request %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("api request %s: status %d", e.URL, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DiscoveryError means the maximum page count could not be parsed from
// the API's out-of-range error payload. There is no range to iterate, so
// the run cannot start.
type DiscoveryError struct {
	Endpoint string
	Text     string
	Err      error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discover max page for %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("discover max page for %s: no page range in %q", e.Endpoint, e.Text)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Client issues GET requests against a versioned base URL, always
// attaching the configured credential. Retry policy lives with the
// caller, not here.
type Client struct {
	apiKey  string
	baseURL string
	version string
	client  *resty.Client
}

func NewClient(apiKey string) *Client {
	return NewClientWithBase(apiKey, defaultBaseURL, defaultVersion)
}

// NewClientWithBase exists mainly for tests pointed at a fake server.
func NewClientWithBase(apiKey, baseURL, version string) *Client {
	client := resty.New()
	client.SetTimeout(30 * time.Second)

	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		client:  client,
	}
}

func (c *Client) endpointURL(params map[string]string, path ...string) string {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("apikey", c.apiKey)
	return c.baseURL + "/" + c.version + "/" + strings.Join(path, "/") + "?" + q.Encode()
}

// Get fetches one endpoint and returns the raw JSON payload. Any network
// failure, non-2xx status, or non-JSON body comes back as *TransportError.
func (c *Client) Get(ctx context.Context, params map[string]string, path ...string) (json.RawMessage, error) {
	endpoint := c.endpointURL(params, path...)

	resp, err := c.client.R().SetContext(ctx).Get(endpoint)
	if err != nil {
		return nil, &TransportError{URL: endpoint, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &TransportError{URL: endpoint, StatusCode: resp.StatusCode()}
	}

	body := resp.Body()
	if !json.Valid(body) {
		return nil, &TransportError{URL: endpoint, StatusCode: resp.StatusCode(), Err: fmt.Errorf("malformed JSON body")}
	}
	return json.RawMessage(body), nil
}

// MaxPage probes the endpoint with an out-of-range page index and reads
// the true maximum valid page number out of the API's own error text.
// Computed once per run and reused as the fetch upper bound.
func (c *Client) MaxPage(ctx context.Context, path ...string) (int, error) {
	endpoint := strings.Join(path, "/")
	probe := c.endpointURL(map[string]string{
		"page":      strconv.Itoa(bigPage),
		"page_size": strconv.Itoa(DefaultPageSize),
	}, path...)

	resp, err := c.client.R().SetContext(ctx).Get(probe)
	if err != nil {
		return 0, &DiscoveryError{Endpoint: endpoint, Err: &TransportError{URL: probe, Err: err}}
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return 0, &DiscoveryError{Endpoint: endpoint, Err: err}
	}

	m := maxPagePattern.FindStringSubmatch(payload.Text)
	if m == nil {
		return 0, &DiscoveryError{Endpoint: endpoint, Text: payload.Text}
	}
	max, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, &DiscoveryError{Endpoint: endpoint, Text: payload.Text, Err: err}
	}
	return max, nil
}
