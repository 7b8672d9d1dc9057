package captcha

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"platecheck/lib/telemetry"
)

// RemoteAPISolver submits the image to an external solving service
// speaking a minimal JSON protocol: base64 image in, text out.
type RemoteAPISolver struct {
	http   *resty.Client
	apiKey string
}

type RemoteAPIOptions struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

func NewRemoteAPISolver(opts RemoteAPIOptions) *RemoteAPISolver {
	client := resty.New()
	client.SetBaseURL(opts.Endpoint)
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 60
	}
	client.SetTimeout(timeout)
	telemetry.InstrumentResty(client, "platecheck.lib.captcha.remote")

	return &RemoteAPISolver{
		http:   client,
		apiKey: opts.APIKey,
	}
}

func (s *RemoteAPISolver) Solve(ctx context.Context, img Image) (Solution, error) {
	var out struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	res, err := s.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"key":   s.apiKey,
			"image": base64.StdEncoding.EncodeToString(img.Bytes),
		}).
		SetResult(&out).
		Post("")
	if err != nil {
		return Solution{}, fmt.Errorf("remote solve: %w", err)
	}
	if res.IsError() {
		return Solution{}, fmt.Errorf("remote solve: unexpected status %d", res.StatusCode())
	}
	if out.Error != "" {
		return Solution{}, fmt.Errorf("remote solve: %s", out.Error)
	}
	if out.Text == "" {
		return Solution{}, nil
	}
	return Solution{Text: out.Text, Confidence: 1, Votes: 1, TotalCandidates: 1}, nil
}
