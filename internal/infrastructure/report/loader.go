package report

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sync/errgroup"

	sgerrors "github.com/relicta-tech/shipgate/internal/errors"
	"github.com/relicta-tech/shipgate/internal/fileutil"
)

const (
	// DefaultMaxSize is the largest report file that will be read.
	DefaultMaxSize int64 = 4 << 20
	// DefaultConcurrency is the number of reports read in parallel.
	DefaultConcurrency = 4
)

// Loader reads scanner reports from disk.
type Loader struct {
	maxSize     int64
	concurrency int
	readFile    func(path string, maxSize int64) ([]byte, error)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithMaxSize sets the maximum report size in bytes.
func WithMaxSize(n int64) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxSize = n
		}
	}
}

// WithConcurrency sets how many reports are read in parallel.
func WithConcurrency(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// NewLoader creates a report loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		maxSize:     DefaultMaxSize,
		concurrency: DefaultConcurrency,
		readFile:    fileutil.ReadFileLimited,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source and returns the reports in source order.
// Unreadable or malformed files do not fail the load; they yield a report
// with Problem set. Only cancellation returns an error.
func (l *Loader) Load(ctx context.Context, sources []Source) ([]Report, error) {
	const op = "report.Load"

	reports := make([]Report, len(sources))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, src := range sources {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			reports[i] = l.loadOne(src)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, sgerrors.Wrap(err, sgerrors.KindCanceled, op, "report loading canceled")
	}
	if err := ctx.Err(); err != nil {
		return nil, sgerrors.Wrap(err, sgerrors.KindCanceled, op, "report loading canceled")
	}
	return reports, nil
}

func (l *Loader) loadOne(src Source) Report {
	r := Report{Name: src.Name, Path: src.Path}

	data, err := l.readFile(src.Path, l.maxSize)
	if err != nil {
		r.Problem = describeReadError(src.Path, err)
		return r
	}

	high, medium, low, err := Decode(data)
	if err != nil {
		r.Problem = fmt.Sprintf("%s: %v", src.Path, err)
		return r
	}

	r.High, r.Medium, r.Low = high, medium, low
	return r
}

func describeReadError(path string, err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Sprintf("%s: report not found", path)
	case errors.Is(err, fileutil.ErrTooLarge):
		return fmt.Sprintf("%s: report too large", path)
	default:
		return fmt.Sprintf("%s: unreadable report: %v", path, err)
	}
}
