// Package importer loads precomputed neuron data from JSONL files into the
// metadata store.
package importer

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ziadkadry99/neuronview/internal/logger"
	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/progress"
)

// maxLineBytes bounds a single JSONL line. Embeddings make lines long.
const maxLineBytes = 64 << 20

// Store is the part of *neurondb.Store the importer writes to.
type Store interface {
	UpsertNeuron(ctx context.Context, rec neurondb.NeuronRecord) (int64, error)
	AddActivations(ctx context.Context, layer, index int, samples []neurondb.ActivationSample) error
	UpsertTopic(ctx context.Context, t neurondb.Topic) error
}

// Options controls an import.
type Options struct {
	// Strict aborts on the first malformed line instead of skipping it.
	Strict bool
}

// Importer writes JSONL records to a Store.
type Importer struct {
	store    Store
	reporter progress.Reporter
	opts     Options
}

// New creates an importer. A nil reporter reports nothing.
func New(store Store, reporter progress.Reporter, opts Options) *Importer {
	if reporter == nil {
		reporter = progress.Discard{}
	}
	return &Importer{store: store, reporter: reporter, opts: opts}
}

// Expand resolves glob patterns (with ** support) to a sorted list of files.
// It is an error for the patterns to match nothing.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, p := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", p, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files match %s", strings.Join(patterns, ", "))
	}
	sort.Strings(files)
	return files, nil
}

type pendingActivations struct {
	file string
	line int
	rec  ActivationsLine
}

// Import loads every file matched by patterns. Activations may appear before
// the neuron they belong to; they are applied once all files are read.
func (im *Importer) Import(ctx context.Context, patterns []string) (Stats, error) {
	log := logger.Log.With("importer")
	files, err := Expand(patterns)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	var pending []pendingActivations
	im.reporter.Start(len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := im.importFile(ctx, f, &stats, &pending); err != nil {
			return stats, err
		}
		stats.Files++
		im.reporter.Update(i+1, filepath.Base(f))
	}
	im.reporter.Finish()

	for _, p := range pending {
		err := im.store.AddActivations(ctx, p.rec.Layer, p.rec.Index, p.rec.Samples)
		switch {
		case errors.Is(err, neurondb.ErrNotFound):
			if err := im.skip(&stats, p.file, p.line, err); err != nil {
				return stats, err
			}
		case err != nil:
			return stats, fmt.Errorf("%s:%d: %w", p.file, p.line, err)
		default:
			stats.Activations += len(p.rec.Samples)
		}
	}

	log.Info("import complete", "files", stats.Files, "neurons", stats.Neurons,
		"activations", stats.Activations, "topics", stats.Topics, "skipped", stats.Skipped)
	return stats, nil
}

func (im *Importer) importFile(ctx context.Context, path string, stats *Stats, pending *[]pendingActivations) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := im.importLine(ctx, path, lineNo, line, stats, pending); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// importLine returns an error only for store failures, or for malformed data
// in strict mode.
func (im *Importer) importLine(ctx context.Context, path string, lineNo int, line []byte, stats *Stats, pending *[]pendingActivations) error {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return im.skip(stats, path, lineNo, err)
	}

	switch env.Kind {
	case KindNeuron:
		var rec neurondb.NeuronRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return im.skip(stats, path, lineNo, err)
		}
		if rec.Layer < 0 || rec.Index < 0 {
			return im.skip(stats, path, lineNo, fmt.Errorf("negative layer or neuron index"))
		}
		if _, err := im.store.UpsertNeuron(ctx, rec); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		stats.Neurons++

	case KindActivations:
		var rec ActivationsLine
		if err := json.Unmarshal(line, &rec); err != nil {
			return im.skip(stats, path, lineNo, err)
		}
		if err := validateSamples(rec.Samples); err != nil {
			return im.skip(stats, path, lineNo, err)
		}
		err := im.store.AddActivations(ctx, rec.Layer, rec.Index, rec.Samples)
		switch {
		case errors.Is(err, neurondb.ErrNotFound):
			*pending = append(*pending, pendingActivations{file: path, line: lineNo, rec: rec})
		case err != nil:
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		default:
			stats.Activations += len(rec.Samples)
		}

	case KindTopic:
		var rec TopicLine
		if err := json.Unmarshal(line, &rec); err != nil {
			return im.skip(stats, path, lineNo, err)
		}
		if err := im.store.UpsertTopic(ctx, neurondb.Topic{ID: rec.ID, Title: rec.Title, TopWords: rec.TopWords}); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		stats.Topics++

	default:
		return im.skip(stats, path, lineNo, fmt.Errorf("unknown record type %q", env.Kind))
	}
	return nil
}

func validateSamples(samples []neurondb.ActivationSample) error {
	for i, s := range samples {
		if _, err := neurondb.ParseCategory(string(s.Category)); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		if len(s.Tokens) != len(s.Values) {
			return fmt.Errorf("sample %d has %d tokens but %d values", i, len(s.Tokens), len(s.Values))
		}
	}
	return nil
}

func (im *Importer) skip(stats *Stats, path string, lineNo int, err error) error {
	lerr := &LineError{File: path, Line: lineNo, Err: err}
	if im.opts.Strict {
		return lerr
	}
	stats.Skipped++
	logger.Log.With("importer").Warn("skipping line", "file", path, "line", lineNo, "error", err)
	return nil
}
