// Package client calls the sectional report HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/allstarteams/sectional-reports/internal/sections"
	"github.com/allstarteams/sectional-reports/internal/types"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for API requests.
const DefaultUserAgent = "sectional-reports-client/1.0"

// GenericMessage is shown to users for any failed request.
const GenericMessage = "Uh oh, something went wrong"

const maxBodySize = 10 << 20

var (
	// ErrGenerationFailed wraps every failure of Generate.
	ErrGenerationFailed = errors.New("report generation request failed")
	// ErrUnexpectedResponse means the server answered with something other than JSON.
	ErrUnexpectedResponse = errors.New("unexpected non-JSON response")
)

// Error is a failed API call.
type Error struct {
	Op         string
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("HTTP status %d: %s", e.StatusCode, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.URL, msg, e.Cause)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.URL, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status of a failed call, or 0 when no response was read.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// UserMessage is the text to show a user for err. It is empty when err is nil.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return GenericMessage
}

// GenerateOptions modify a generation request.
type GenerateOptions struct {
	Regenerate bool
	Sections   []int
}

// Client is an API client bound to one base URL and bearer token.
type Client struct {
	baseURL    *url.URL
	token      string
	userAgent  string
	httpClient *http.Client
	progress   singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &Error{Op: "new", URL: baseURL, Message: "invalid base URL", Cause: err}
	}
	c := &Client{
		baseURL:    u,
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := *c.baseURL
	u.Path = u.Path + "/" + strings.Join(segments, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

func userSegment(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Generate triggers generation of a report. Every failure wraps ErrGenerationFailed.
func (c *Client) Generate(ctx context.Context, userID int64, rt types.ReportType, opts GenerateOptions) (*types.GenerateAck, error) {
	body := types.GenerateRequest{
		ReportType:       string(rt),
		Regenerate:       opts.Regenerate,
		SpecificSections: opts.Sections,
	}
	var ack types.GenerateAck
	if err := c.do(ctx, "generate", http.MethodPost, c.endpoint(nil, "generate", userSegment(userID)), body, &ack); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if !ack.Success {
		return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, ack.Error)
	}
	return &ack, nil
}

// Progress returns the current snapshot of a pair. A pair the server does not know
// is reported as the pending default. Concurrent calls for one pair share a request.
func (c *Client) Progress(ctx context.Context, userID int64, rt types.ReportType) (types.ReportProgress, error) {
	key := userSegment(userID) + "/" + string(rt)
	v, err, _ := c.progress.Do(key, func() (any, error) {
		var resp struct {
			Success  bool                 `json:"success"`
			Progress types.ReportProgress `json:"progress"`
		}
		err := c.do(ctx, "progress", http.MethodGet, c.endpoint(nil, "progress", userSegment(userID), url.PathEscape(string(rt))), nil, &resp)
		if StatusCode(err) == http.StatusNotFound {
			return types.DefaultProgress(userID, rt, sections.Total(rt)), nil
		}
		if err != nil {
			return nil, err
		}
		return resp.Progress, nil
	})
	if err != nil {
		return types.ReportProgress{}, err
	}
	return v.(types.ReportProgress), nil
}

// Health reads the service health and pipeline availability.
func (c *Client) Health(ctx context.Context) (*types.HealthStatus, error) {
	var status types.HealthStatus
	if err := c.do(ctx, "health", http.MethodGet, c.endpoint(nil, "health"), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// FinalReportURL is the address of the rendered final report. The token travels as
// a query parameter because the URL is opened outside this client.
func (c *Client) FinalReportURL(userID int64, rt types.ReportType, format string) string {
	q := url.Values{}
	if format != "" {
		q.Set("format", format)
	}
	if c.token != "" {
		q.Set("access_token", c.token)
	}
	return c.endpoint(q, "final", userSegment(userID), url.PathEscape(string(rt)))
}

func (c *Client) do(ctx context.Context, op, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return &Error{Op: op, URL: target, Message: "failed to encode request", Cause: err}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &Error{Op: op, URL: target, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, URL: target, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &Error{Op: op, URL: target, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}

	if !isJSON(resp.Header.Get("Content-Type"), raw) {
		return &Error{
			Op:         op,
			URL:        target,
			StatusCode: resp.StatusCode,
			Message:    describe(raw),
			Cause:      ErrUnexpectedResponse,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &Error{Op: op, URL: target, StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Op: op, URL: target, StatusCode: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return nil
}

func isJSON(contentType string, body []byte) bool {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || (mediaType != "application/json" && !strings.HasSuffix(mediaType, "+json")) {
			return false
		}
	}
	return json.Valid(body)
}

// describe summarises a non-JSON body for the error message, using the page title
// of an HTML error page when there is one.
func describe(body []byte) string {
	text := strings.TrimSpace(string(body))
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
			text = title
		} else if bodyText := strings.Join(strings.Fields(doc.Find("body").Text()), " "); bodyText != "" {
			text = bodyText
		}
	}
	if runes := []rune(text); len(runes) > 80 {
		text = string(runes[:77]) + "..."
	}
	if text == "" {
		return "empty response"
	}
	return fmt.Sprintf("expected JSON, got %q", text)
}
