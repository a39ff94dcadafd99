package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP lookup client.
type HTTPOptions struct {
	BaseURL   string
	AuthToken string
	AuthEmail string
	UserAgent string
	// Timeout of 0 leaves requests bounded only by the context.
	Timeout time.Duration
	// Pause is the minimum spacing between requests.
	Pause time.Duration
}

// HTTPClient implements Fetcher against the parcel lookup HTTP endpoint.
// It is not safe for concurrent use.
type HTTPClient struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPClient creates a new HTTPClient with the given options.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Pause > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Pause), 1)
	}
	return &HTTPClient{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: limiter,
	}
}

// Lookup fetches the parcels at (lat, lng). Transport failures are returned;
// an unparseable body is logged and yields an empty Response.
func (c *HTTPClient) Lookup(ctx context.Context, lat, lng float64) (Response, error) {
	log := zap.L().With(
		zap.String("component", "fetcher.http"),
		zap.Float64("lat", lat),
		zap.Float64("lng", lng),
	)

	reqURL, err := c.buildURL(lat, lng)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "lookup: rate limiter wait")
	}
	defer func() { c.rest(time.Now()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "lookup: create request")
	}
	req.Header.Set("X-Auth-Token", c.opts.AuthToken)
	req.Header.Set("X-Auth-Email", c.opts.AuthEmail)
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "lookup: request (%f, %f)", lat, lng)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "lookup: read body")
	}

	if resp.StatusCode != http.StatusOK {
		log.Warn("lookup returned non-200 status", zap.Int("status", resp.StatusCode))
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil || out == nil {
		log.Error("lookup response is not a JSON object",
			zap.Int("status", resp.StatusCode),
			zap.Int("bytes", len(body)),
			zap.Error(err),
		)
		return Response{}, nil
	}

	return out, nil
}

// rest restarts the pause window at t, the end of the previous request, so
// the next request starts no earlier than t + Pause however slow this one was.
func (c *HTTPClient) rest(t time.Time) {
	if c.opts.Pause <= 0 {
		return
	}
	l := rate.NewLimiter(rate.Every(c.opts.Pause), 1)
	l.ReserveN(t, 1)
	c.limiter = l
}

func (c *HTTPClient) buildURL(lat, lng float64) (string, error) {
	u, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return "", eris.Wrapf(err, "lookup: parse base url %q", c.opts.BaseURL)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
