package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bizpulse/bizpulse/analyst/internal/config"
)

// Set holds the loaders built from a list of source configs, in config order.
type Set struct {
	srcs    []config.Source
	loaders []Loader
}

// NewSet builds a Loader for every source. On error the loaders opened so
// far are closed.
func NewSet(srcs []config.Source) (*Set, error) {
	s := &Set{}
	for _, src := range srcs {
		l, err := New(src)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("source %q: %w", src.ID, err)
		}
		s.srcs = append(s.srcs, src)
		s.loaders = append(s.loaders, l)
	}
	return s, nil
}

// Len returns the number of sources in the set.
func (s *Set) Len() int { return len(s.loaders) }

// FilePaths returns the paths of all file sources.
func (s *Set) FilePaths() []string {
	var paths []string
	for _, src := range s.srcs {
		if src.Type == config.SourceFile {
			paths = append(paths, src.Path)
		}
	}
	return paths
}

// LoadAll loads every source in order and passes each result to fn. A
// loader that returns an error is reported as a failed Result.
func (s *Set) LoadAll(ctx context.Context, fn func(*Result)) {
	for i, l := range s.loaders {
		if ctx.Err() != nil {
			return
		}
		res, err := l.Load(ctx)
		if err != nil {
			res = newResult(s.srcs[i])
			res.Err = err
		}
		fn(res)
	}
}

// Close releases loaders that hold resources, such as database handles.
func (s *Set) Close() error {
	var errs []error
	for _, l := range s.loaders {
		if c, ok := l.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
