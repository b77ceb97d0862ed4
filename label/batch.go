package label

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"labelforge/text"
)

// ReadLabelFile reads a newline-delimited label list, dropping blank
// lines and surrounding whitespace.
func ReadLabelFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening label file: %w", err)
	}
	defer f.Close()
	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			labels = append(labels, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading label file: %w", err)
	}
	return labels, nil
}

// SanitizeName converts label text to a filesystem-safe file stem:
// lowercase, alphanumeric runs preserved, everything else collapsed to
// single underscores. Text with no usable characters falls back to
// "label".
func SanitizeName(s string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "label"
	}
	return out
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Succeeded int
	Failed    int
	// Errors maps failed label text to its error.
	Errors map[string]error
}

// EngineFactory builds a fresh text engine for a worker goroutine.
type EngineFactory func() (text.Engine, error)

// RunBatch generates one label file per entry in labels, writing into
// outDir with sanitized file names. Workers bounds concurrent label
// builds. A failing label does not stop the rest; per-label errors are
// collected in the result.
func (p *Pipeline) RunBatch(newEngine EngineFactory, labels []string, outDir, format string, workers int) (*BatchResult, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels to generate")
	}
	if workers < 1 {
		workers = 1
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	ext := ".3mf"
	if strings.EqualFold(format, "stl") {
		ext = ".stl"
	}
	// Disambiguate duplicate sanitized names up front.
	names := uniqueNames(labels)

	res := &BatchResult{Errors: make(map[string]error)}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(workers)
	for i, lbl := range labels {
		lbl := lbl
		out := filepath.Join(outDir, names[i]+ext)
		g.Go(func() error {
			engine, err := newEngine()
			if err == nil {
				err = p.Generate(engine, lbl, out, format)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				res.Errors[lbl] = err
				p.log.Error("label failed", zap.String("text", lbl), zap.Error(err))
			} else {
				res.Succeeded++
			}
			return nil
		})
	}
	g.Wait()
	p.log.Info("batch finished",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// uniqueNames sanitizes every label and suffixes repeats with a counter.
func uniqueNames(labels []string) []string {
	seen := make(map[string]int, len(labels))
	names := make([]string, len(labels))
	for i, lbl := range labels {
		name := SanitizeName(lbl)
		// A suffixed candidate can itself collide with a later sanitized
		// label, so keep counting until the name is unused.
		unique := name
		for n := 2; seen[unique] > 0; n++ {
			unique = fmt.Sprintf("%s_%d", name, n)
		}
		names[i] = unique
		seen[unique]++
	}
	return names
}
