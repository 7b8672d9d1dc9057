package captcha

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"go.opentelemetry.io/otel"
	xdraw "golang.org/x/image/draw"
)

var tracer = otel.Tracer("platecheck.lib.captcha")

// SegMode selects the page-segmentation assumption OCR runs under.
type SegMode int

const (
	SegSingleWord SegMode = iota
	SegSingleLine
)

func (m SegMode) String() string {
	if m == SegSingleLine {
		return "single_line"
	}
	return "single_word"
}

// Engine recognizes text in one encoded image under one segmentation
// mode. Kept small so tests can substitute a fake.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img []byte, mode SegMode) (string, error)
}

// challenge text is alphanumeric, never symbols
const charWhitelist = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// TesseractEngine is the gosseract-backed default Engine.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
}

func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{clientFactory: gosseract.NewClient}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Recognize(ctx context.Context, img []byte, mode SegMode) (string, error) {
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if err := c.SetWhitelist(charWhitelist); err != nil {
		return "", fmt.Errorf("set whitelist: %w", err)
	}
	psm := gosseract.PSM_SINGLE_WORD
	if mode == SegSingleLine {
		psm = gosseract.PSM_SINGLE_LINE
	}
	if err := c.SetPageSegMode(psm); err != nil {
		return "", fmt.Errorf("set page seg mode: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}

// minimum length for a candidate to count, challenges are never shorter
const minCandidateLength = 4

// ocrScale upscales variants before recognition, the source images
// are too small for tesseract's layout heuristics.
const ocrScale = 3

// OCRSolver runs every preprocessing variant through the engine under
// both segmentation modes, accumulates qualifying candidates and
// resolves them by plurality vote. Engine failures on individual
// variants contribute no candidates instead of failing the solve.
type OCRSolver struct {
	engine Engine
}

// NewOCRSolver builds an ensemble solver. A nil engine defaults to
// Tesseract.
func NewOCRSolver(engine Engine) *OCRSolver {
	if engine == nil {
		engine = NewTesseractEngine()
	}
	return &OCRSolver{engine: engine}
}

func (s *OCRSolver) Solve(ctx context.Context, img Image) (Solution, error) {
	ctx, span := tracer.Start(ctx, "OCRSolver.Solve")
	defer span.End()

	var candidates []string
	for _, variant := range Preprocess(img.Bytes) {
		encoded, err := encodeForOCR(variant.Image)
		if err != nil {
			slog.DebugContext(ctx, "failed to encode variant", "variant", variant.Name, "err", err)
			continue
		}
		for _, mode := range []SegMode{SegSingleWord, SegSingleLine} {
			if err := ctx.Err(); err != nil {
				return Solution{}, err
			}
			text, err := s.engine.Recognize(ctx, encoded, mode)
			if err != nil {
				slog.DebugContext(ctx, "ocr pass failed",
					"engine", s.engine.Name(),
					"variant", variant.Name,
					"mode", mode.String(),
					"err", err,
				)
				continue
			}
			text = strings.TrimSpace(text)
			if len(text) < minCandidateLength {
				continue
			}
			slog.DebugContext(ctx, "ocr candidate",
				"variant", variant.Name,
				"mode", mode.String(),
				"text", text,
			)
			candidates = append(candidates, text)
		}
	}

	solution := PluralityVote(candidates)
	slog.DebugContext(ctx, "ocr ensemble result",
		"text", solution.Text,
		"votes", solution.Votes,
		"total", solution.TotalCandidates,
	)
	return solution, nil
}

func encodeForOCR(img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx()*ocrScale, bounds.Dy()*ocrScale))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
