package captcha

import (
	"fmt"
	"time"
)

const (
	MethodOCR    = "ocr"
	MethodManual = "manual"
	MethodAPI    = "api"
)

type MethodOptions struct {
	// Method is one of ocr, manual or api.
	Method string
	// PromptDir is where the manual solver drops images for the user.
	PromptDir string
	// Endpoint and APIKey configure the api method.
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// NewSolverForMethod dispatches a solver by configured method name.
func NewSolverForMethod(opts MethodOptions) (Solver, error) {
	switch opts.Method {
	case "", MethodOCR:
		return NewOCRSolver(NewTesseractEngine()), nil
	case MethodManual:
		return &ManualPromptSolver{Dir: opts.PromptDir}, nil
	case MethodAPI:
		if opts.Endpoint == "" {
			return nil, fmt.Errorf("api solver requires an endpoint")
		}
		return NewRemoteAPISolver(RemoteAPIOptions{
			Endpoint: opts.Endpoint,
			APIKey:   opts.APIKey,
			Timeout:  opts.Timeout,
		}), nil
	}
	return nil, fmt.Errorf("unknown solver method %q (expected ocr, manual or api)", opts.Method)
}
