package captcha

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ManualPromptSolver writes the challenge image to disk and blocks on
// a line of input. It exists so a run can be driven by a human when
// OCR is not trusted; the workflow cannot tell the difference.
type ManualPromptSolver struct {
	// Dir receives the image file shown to the user. Empty means the
	// OS temp directory.
	Dir string
	In  io.Reader
	Out io.Writer
}

func (s *ManualPromptSolver) Solve(ctx context.Context, img Image) (Solution, error) {
	dir := s.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Solution{}, fmt.Errorf("create image dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("captcha_manual_%s.png", img.CapturedAt.Format("20060102_150405")))
	if err := os.WriteFile(path, img.Bytes, 0644); err != nil {
		return Solution{}, fmt.Errorf("write challenge image: %w", err)
	}

	in := s.In
	if in == nil {
		in = os.Stdin
	}
	out := s.Out
	if out == nil {
		out = os.Stderr
	}

	fmt.Fprintf(out, "challenge image saved to: %s\n", path)
	fmt.Fprint(out, "enter challenge text: ")

	type answer struct {
		text string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			ch <- answer{err: fmt.Errorf("input closed before challenge text was entered")}
			return
		}
		ch <- answer{text: strings.TrimSpace(scanner.Text())}
	}()

	select {
	case <-ctx.Done():
		return Solution{}, ctx.Err()
	case a := <-ch:
		if a.err != nil {
			return Solution{}, a.err
		}
		if a.text == "" {
			return Solution{}, nil
		}
		return Solution{Text: a.text, Confidence: 1, Votes: 1, TotalCandidates: 1}, nil
	}
}
