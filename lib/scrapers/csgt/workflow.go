package csgt

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"platecheck/lib/captcha"
)

// workflow states; everything from succeeded on is terminal
type state int

const (
	stateStart state = iota
	stateAwaitChallenge
	stateSolving
	stateSubmitting
	stateInterpreting
	stateFetchingResult
	stateExtracting
	stateSucceeded
	statePartial
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateAwaitChallenge:
		return "await_challenge"
	case stateSolving:
		return "solving"
	case stateSubmitting:
		return "submitting"
	case stateInterpreting:
		return "interpreting"
	case stateFetchingResult:
		return "fetching_result"
	case stateExtracting:
		return "extracting"
	case stateSucceeded:
		return "succeeded"
	case statePartial:
		return "partial"
	case stateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const (
	DefaultMaxAttempts = 3

	challengeImageSelector = "img#imgCaptcha"
	defaultClientIP        = "0.0.0.0"
)

type WorkflowOptions struct {
	// Client carries the run's session and must not be shared with
	// another concurrent run.
	Client *Client
	// Solver satisfies the solving step; OCR ensemble, manual prompt
	// and remote API are interchangeable here.
	Solver captcha.Solver
	// MaxAttempts bounds rejected challenge cycles, default 3.
	MaxAttempts int
	// ImageDir persists one challenge image per solve attempt for
	// diagnostics. Empty disables persistence.
	ImageDir string
	// ClientIP fills the ipClient form field, default 0.0.0.0.
	ClientIP string
}

// Workflow drives one query through the challenge/submit/extract
// cycle. Requests within a run are strictly sequential; independent
// runs each get their own Workflow and Client.
type Workflow struct {
	client      *Client
	solver      captcha.Solver
	maxAttempts int
	imageDir    string
	clientIP    string
}

func NewWorkflow(opts WorkflowOptions) *Workflow {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	clientIP := opts.ClientIP
	if clientIP == "" {
		clientIP = defaultClientIP
	}
	return &Workflow{
		client:      opts.Client,
		solver:      opts.Solver,
		maxAttempts: maxAttempts,
		imageDir:    opts.ImageDir,
		clientIP:    clientIP,
	}
}

type runState struct {
	landingBody []byte
	landingURL  string
	image       captcha.Image
	solution    captcha.Solution
	ack         []byte
	redirect    string
	page        string
	attempts    int
}

// Run executes the workflow to a terminal state. All failure modes
// are encoded in the Result; the session is released on every exit
// path.
func (w *Workflow) Run(ctx context.Context, query Query) Result {
	ctx, span := tracer.Start(ctx, "Workflow.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("plate", query.NormalizedPlate()),
		attribute.String("category", query.Category.String()),
	)

	defer w.client.releaseSession()

	r := &runState{}
	st := stateStart
	for {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "run aborted")
			return w.fail(r, query, fmt.Sprintf("aborted: %s", err))
		}
		slog.DebugContext(ctx, "workflow state",
			"state", st.String(),
			"plate", query.NormalizedPlate(),
			"attempts", r.attempts,
		)

		var err error
		switch st {
		case stateStart:
			st, err = w.start(ctx, r)
		case stateAwaitChallenge:
			st, err = w.awaitChallenge(ctx, r)
		case stateSolving:
			st, err = w.solve(ctx, r)
		case stateSubmitting:
			st, err = w.submit(ctx, r, query)
		case stateInterpreting:
			st, err = w.interpret(ctx, r)
		case stateFetchingResult:
			st, err = w.fetchResult(ctx, r)
		case stateExtracting:
			record, status := ExtractRecord(r.page)
			if status == StatusPartial {
				slog.WarnContext(ctx, "no structural fields found, retaining raw markup",
					"plate", query.NormalizedPlate())
				return Result{
					Query:    query,
					Record:   &record,
					Status:   StatusPartial,
					Attempts: r.attempts,
				}
			}
			return Result{
				Query:    query,
				Record:   &record,
				Status:   StatusSuccess,
				Attempts: r.attempts,
			}
		case stateFailed:
			// reached only via attempt exhaustion; other failures
			// return straight from fail()
			detail := fmt.Sprintf("captcha verification failed after %d attempts", w.maxAttempts)
			span.SetStatus(codes.Error, detail)
			return Result{
				Query:       query,
				Record:      &ViolationRecord{Found: false},
				Status:      StatusError,
				ErrorDetail: detail,
				Attempts:    r.attempts,
			}
		default:
			return w.fail(r, query, fmt.Sprintf("invalid workflow state %s", st))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return w.fail(r, query, err.Error())
		}
	}
}

func (w *Workflow) fail(r *runState, query Query, detail string) Result {
	return Result{
		Query:       query,
		Status:      StatusError,
		ErrorDetail: detail,
		Attempts:    r.attempts,
	}
}

func (w *Workflow) start(ctx context.Context, r *runState) (state, error) {
	body, finalURL, err := w.client.fetchLanding(ctx)
	if err != nil {
		return stateFailed, err
	}
	r.landingBody = body
	r.landingURL = finalURL
	return stateAwaitChallenge, nil
}

func (w *Workflow) awaitChallenge(ctx context.Context, r *runState) (state, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.landingBody))
	if err != nil {
		return stateFailed, fmt.Errorf("parse landing page: %w", err)
	}

	src := doc.Find(challengeImageSelector).AttrOr("src", "")
	if src == "" {
		// no challenge on the page: submit with an empty guess, same
		// as the OCR-came-up-empty path
		slog.InfoContext(ctx, "no challenge image on landing page, submitting without captcha")
		r.solution = captcha.Solution{}
		return stateSubmitting, nil
	}

	imgBytes, err := w.client.fetchChallenge(ctx, src)
	if err != nil {
		return stateFailed, err
	}
	r.image = captcha.Image{Bytes: imgBytes, CapturedAt: time.Now()}
	w.persistImage(ctx, r)
	return stateSolving, nil
}

// persistImage keeps the challenge on disk for diagnostics only;
// failures are logged and ignored.
func (w *Workflow) persistImage(ctx context.Context, r *runState) {
	if w.imageDir == "" {
		return
	}
	if err := os.MkdirAll(w.imageDir, 0755); err != nil {
		slog.WarnContext(ctx, "failed to create challenge image dir", "dir", w.imageDir, "err", err)
		return
	}
	name := fmt.Sprintf("captcha_%s_attempt%d.png",
		r.image.CapturedAt.Format("20060102_150405"), r.attempts+1)
	path := filepath.Join(w.imageDir, name)
	if err := os.WriteFile(path, r.image.Bytes, 0644); err != nil {
		slog.WarnContext(ctx, "failed to persist challenge image", "path", path, "err", err)
		return
	}
	slog.DebugContext(ctx, "persisted challenge image", "path", path)
}

func (w *Workflow) solve(ctx context.Context, r *runState) (state, error) {
	solution, err := w.solver.Solve(ctx, r.image)
	if err != nil {
		return stateFailed, fmt.Errorf("solve challenge: %w", err)
	}
	// an empty solution is submitted anyway, the counterparty's
	// rejection drives the retry
	r.solution = solution
	slog.InfoContext(ctx, "challenge solved",
		"text", solution.Text,
		"confidence", solution.Confidence,
		"votes", solution.Votes,
		"total_candidates", solution.TotalCandidates,
	)
	return stateSubmitting, nil
}

func (w *Workflow) submit(ctx context.Context, r *runState, query Query) (state, error) {
	ack, err := w.client.submit(ctx, query, r.solution.Text, r.landingURL, w.clientIP)
	if err != nil {
		return stateFailed, err
	}
	r.ack = ack
	return stateInterpreting, nil
}

func (w *Workflow) interpret(ctx context.Context, r *runState) (state, error) {
	outcome := interpretAck(r.ack)
	switch outcome.kind {
	case ackRejected:
		r.attempts++
		if r.attempts >= w.maxAttempts {
			slog.WarnContext(ctx, "challenge attempts exhausted", "attempts", r.attempts)
			return stateFailed, nil
		}
		// full restart: the submitted image is spent, but the session
		// carries over so the next challenge stays valid
		slog.InfoContext(ctx, "challenge rejected, restarting cycle",
			"attempt", r.attempts, "max", w.maxAttempts)
		return stateStart, nil
	case ackAccepted:
		r.redirect = outcome.redirect
		return stateFetchingResult, nil
	default:
		return stateFailed, fmt.Errorf("unparseable acknowledgment: %q", outcome.raw)
	}
}

func (w *Workflow) fetchResult(ctx context.Context, r *runState) (state, error) {
	page, err := w.client.fetchResult(ctx, r.redirect, r.landingURL)
	if err != nil {
		return stateFailed, err
	}
	r.page = page
	return stateExtracting, nil
}
