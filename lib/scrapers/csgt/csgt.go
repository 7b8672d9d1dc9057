// Package csgt runs captcha-gated traffic violation lookups against
// the csgt.vn public query form.
//
// The counterparty binds an issued challenge image to the cookie
// session that requested it, so every request of one run must go
// through the same Client and runs must never share one. A Client is
// cheap; construct one per run.
package csgt

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"

	"platecheck/lib/restyutil"
	"platecheck/lib/telemetry"
)

var tracer = otel.Tracer("platecheck.lib.scrapers.csgt")

const (
	DefaultBaseURL = "https://www.csgt.vn"

	landingPath = "/tra-cuu-phuong-tien-vi-pham.html"
	submitPath  = "/?mod=contact&task=tracuu_post&ajax"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

type ClientOptions struct {
	// BaseURL defaults to the live site; tests point it at a local
	// server.
	BaseURL string
	// RequestDelay is a politeness pause enforced before every
	// outbound request.
	RequestDelay time.Duration
	Timeout      time.Duration
	UserAgent    string
	// CloudflareBypass wraps the transport the same way the browser
	// would present itself.
	CloudflareBypass bool
	// DebugDumpDir, when set, receives a file per HTTP exchange.
	DebugDumpDir string
}

// Client owns the cookie session of exactly one workflow run.
type Client struct {
	baseURL *url.URL
	http    *resty.Client
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseURL.Hostname()))

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	client.SetTimeout(timeout)

	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	if delay := opts.RequestDelay; delay > 0 {
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			select {
			case <-req.Context().Done():
				return req.Context().Err()
			case <-time.After(delay):
				return nil
			}
		})
	}

	telemetry.InstrumentResty(client, "platecheck.lib.scrapers.csgt.http")
	if opts.DebugDumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(opts.DebugDumpDir)
		if err != nil {
			return nil, fmt.Errorf("create debug dump dir: %w", err)
		}
		output.AttachTo(client)
	}

	return &Client{
		baseURL: baseURL,
		http:    client,
	}, nil
}

// releaseSession drops all cookie state. Called on entry to any
// terminal workflow state; afterwards the Client holds a fresh empty
// jar and could in principle serve another run.
func (c *Client) releaseSession() {
	jar, err := cookiejar.New(nil)
	if err != nil {
		// cookiejar.New with nil options cannot actually fail
		return
	}
	c.http.SetCookieJar(jar)
}

// resolveRef resolves a possibly-relative reference from a page
// against the client's base.
func (c *Client) resolveRef(ref string) (string, error) {
	parsed, err := c.baseURL.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", ref, err)
	}
	return parsed.String(), nil
}

// fetchLanding loads the search form page. The returned url is the
// final one after redirects, used later as both referer and the cUrl
// form field.
func (c *Client) fetchLanding(ctx context.Context) (body []byte, finalURL string, err error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(landingPath)
	if err != nil {
		return nil, "", fmt.Errorf("fetch landing page: %w", err)
	}
	if res.IsError() {
		return nil, "", fmt.Errorf("fetch landing page: unexpected status %d", res.StatusCode())
	}

	finalURL = res.Request.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalURL = res.RawResponse.Request.URL.String()
	}
	return res.Body(), finalURL, nil
}

// fetchChallenge downloads the challenge image over the same session.
// Reloading the landing page here instead would invalidate the
// challenge.
func (c *Client) fetchChallenge(ctx context.Context, src string) ([]byte, error) {
	target, err := c.resolveRef(src)
	if err != nil {
		return nil, err
	}
	res, err := c.http.R().
		SetContext(ctx).
		Get(target)
	if err != nil {
		return nil, fmt.Errorf("fetch challenge image: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("fetch challenge image: unexpected status %d", res.StatusCode())
	}
	return res.Body(), nil
}

// submit posts the filled search form as the site's own javascript
// does: urlencoded, marked as XHR, referring back to the landing page.
func (c *Client) submit(ctx context.Context, query Query, solvedText, landingURL, clientIP string) ([]byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Requested-With", "XMLHttpRequest").
		SetHeader("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8").
		SetHeader("Referer", landingURL).
		SetFormData(map[string]string{
			"BienKS":   query.NormalizedPlate(),
			"Xe":       query.Category.FormValue(),
			"captcha":  solvedText,
			"ipClient": clientIP,
			"cUrl":     landingURL,
		}).
		Post(submitPath)
	if err != nil {
		return nil, fmt.Errorf("submit search form: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("submit search form: unexpected status %d", res.StatusCode())
	}
	return res.Body(), nil
}

// fetchResult follows the redirect target from an accepted
// acknowledgment, still on the same session.
func (c *Client) fetchResult(ctx context.Context, href, landingURL string) (string, error) {
	target, err := c.resolveRef(href)
	if err != nil {
		return "", err
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Referer", landingURL).
		Get(target)
	if err != nil {
		return "", fmt.Errorf("fetch result page: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("fetch result page: unexpected status %d", res.StatusCode())
	}
	return res.String(), nil
}
