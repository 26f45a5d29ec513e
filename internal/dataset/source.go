package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"yieldscraper/internal/curve"
	"yieldscraper/internal/output"
)

// Source loads a previously built dataset.
type Source interface {
	Load(ctx context.Context) (*curve.Dataset, error)
}

// FileSource reads the dataset from the delimited output file.
type FileSource struct {
	Path     string
	Schedule curve.Schedule
}

// Load parses the file on every call so readers see the latest write.
func (s FileSource) Load(ctx context.Context) (*curve.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := output.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	ds, err := Parse(bytes.NewReader(data), s.Schedule)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.Path, err)
	}
	return ds, nil
}

// Save renders ds and atomically replaces the file.
func (s FileSource) Save(ds *curve.Dataset) error {
	return output.WriteAtomic(s.Path, func(w io.Writer) error {
		return Render(ds, w)
	})
}

var _ Source = FileSource{}
