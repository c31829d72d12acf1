package logging

import (
	"fmt"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGraylogWriter opens a GELF UDP writer. Pass it to Setup as a sink.
func NewGraylogWriter(address string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("failed to create GELF writer for %s: %w", address, err)
	}
	w.Facility = ServiceName
	return w, nil
}
