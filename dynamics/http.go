package dynamics

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Azure/go-ntlmssp"
	"github.com/carlmjohnson/requests"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// HTTPRequestTimeout is the default timeout for all HTTP requests to external APIs.
const HTTPRequestTimeout = 60 * time.Second

// maxErrorBody caps how much of a failed response is kept on an APIError.
const maxErrorBody = 1 << 20

// Response is a successful reply.
type Response struct {
	StatusCode int
	Body       []byte
}

// Source parses the body. An empty body gives an empty Source.
func (r Response) Source() Source {
	return NewSource(r.Body)
}

// Client sends requests to one company collection root, e.g.
// http://bc:7048/BC/ODataV4/Company. It implements Requester.
type Client struct {
	CollectionRoot string
	Username       string
	Password       string
	Retry          RetrySettings
	HTTPClient     *http.Client
	Limiter        *rate.Limiter
	// Transport overrides the HTTP transport, e.g. requests.Record for fixtures.
	Transport http.RoundTripper
}

// NewClient builds a Client from config. Unless basic_auth is set the
// transport negotiates NTLM using the same credentials.
func NewClient(cfg Config) *Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	var transport http.RoundTripper = base
	if !cfg.BasicAuth {
		transport = ntlmssp.Negotiator{RoundTripper: base}
	}
	c := &Client{
		CollectionRoot: cfg.CollectionRoot(),
		Username:       cfg.Username,
		Password:       cfg.Password,
		Retry:          cfg.Retry,
		HTTPClient:     &http.Client{Timeout: cfg.Timeout(), Transport: transport},
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// URL renders the full, escaped URL for an endpoint.
func (c *Client) URL(endpoint Endpoint) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.CollectionRoot, "/"))
	if err != nil {
		return "", eris.Wrapf(err, "invalid collection root %q", c.CollectionRoot)
	}
	u.RawPath = u.EscapedPath() + escapeEndpoint(string(endpoint))
	u.Path += string(endpoint)
	return u.String(), nil
}

// escapeEndpoint percent-encodes an endpoint but keeps the OData key
// punctuation, so ('Invoice','1001') goes out as written.
func escapeEndpoint(endpoint string) string {
	var b strings.Builder
	for _, r := range endpoint {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case strings.ContainsRune("/()',!*;=$&+:@-._~", r):
			b.WriteRune(r)
		default:
			b.WriteString(url.PathEscape(string(r)))
		}
	}
	return b.String()
}

// APIBuilder returns a new requests.Builder for url with auth and the
// parameters every Dynamics call carries.
func (c *Client) APIBuilder(ctx context.Context, target string) *requests.Builder {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: HTTPRequestTimeout}
	}
	result := requests.
		URL(target).
		Client(client).
		BasicAuth(c.Username, c.Password).
		Param("$format", "json")
	if c.Transport != nil {
		result = result.Transport(c.Transport)
	}
	if id := RequestIDFrom(ctx); id != "" {
		result = result.Header("client-request-id", id)
	}
	return result
}

// Request sends one call, retrying transient failures.
func (c *Client) Request(ctx context.Context, method string, endpoint Endpoint, params url.Values, body any, headers http.Header) (Response, error) {
	return retryVal(ctx, c.Retry, method+" "+endpoint.String(), func(ctx context.Context) (Response, error) {
		return c.do(ctx, method, endpoint, params, body, headers)
	})
}

func (c *Client) do(ctx context.Context, method string, endpoint Endpoint, params url.Values, body any, headers http.Header) (Response, error) {
	var result Response
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return result, eris.Wrap(err, "rate limiter")
		}
	}
	target, err := c.URL(endpoint)
	if err != nil {
		return result, err
	}

	var apiErr *APIError
	builder := c.APIBuilder(ctx, target).Method(method)
	for key, values := range params {
		builder = builder.Param(key, values...)
	}
	switch b := body.(type) {
	case nil:
		builder = builder.ContentType("application/json")
	case []byte:
		builder = builder.BodyBytes(b)
		if headers.Get("Content-Type") == "" {
			builder = builder.ContentType("application/octet-stream")
		}
	default:
		// sets Content-Type: application/json
		builder = builder.BodyJSON(b)
	}
	for key, values := range headers {
		builder = builder.Header(key, values...)
	}
	err = builder.
		AddValidator(func(res *http.Response) error {
			if res.StatusCode >= 200 && res.StatusCode < 300 {
				return nil
			}
			data, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
			apiErr = newAPIError(method, target, res.StatusCode, string(data))
			return apiErr
		}).
		Handle(func(res *http.Response) error {
			data, err := io.ReadAll(res.Body)
			if err != nil {
				return err
			}
			result.StatusCode = res.StatusCode
			result.Body = data
			return nil
		}).
		Fetch(ctx)
	if apiErr != nil {
		return Response{}, apiErr
	}
	if err != nil {
		return Response{}, eris.Wrapf(err, "%s %s", method, target)
	}
	return result, nil
}

// Companies lists the companies visible to the configured credentials.
func (c *Client) Companies(ctx context.Context) ([]string, error) {
	resp, err := c.Request(ctx, http.MethodGet, "", nil, nil, nil)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, company := range resp.Source().Get("value").Array() {
		name := company.Get("Name")
		if !name.Exists() {
			name = company.Get("name")
		}
		if !name.Exists() {
			name = company.Get("id")
		}
		names = append(names, name.String())
	}
	return names, nil
}

var _ Requester = (*Client)(nil)

type requestIDKey struct{}

// WithRequestID attaches the id sent as client-request-id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
