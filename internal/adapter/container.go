// Package adapter contains infrastructure adapters for the modelinspect
// CLI: container format extraction, filesystem access, report persistence
// and remote artifact fetching.
package adapter

import (
	"errors"

	m "github.com/opaquebits/modelinspect/internal/model"
)

// ErrUnsupportedFormat reports an artifact whose format could not be
// determined from magic bytes or extension. The scan fails as a whole; no
// payloads are processed.
var ErrUnsupportedFormat = errors.New("unsupported artifact format")

// ErrTooManyEntries reports a container declaring more payload entries
// than the configured maximum. Guards against amplification from
// maliciously crafted archives.
var ErrTooManyEntries = errors.New("container declares too many entries")

// Default extraction limits.
const (
	DefaultMaxPayloadSize = int64(256) << 20 // 256 MiB per payload
	DefaultMaxEntries     = 1024
)

// Limits bounds how much a single artifact may expand during extraction.
type Limits struct {
	MaxPayloadSize int64
	MaxEntries     int
}

// Normalized fills unset limits with the defaults.
func (l Limits) Normalized() Limits {
	if l.MaxPayloadSize <= 0 {
		l.MaxPayloadSize = DefaultMaxPayloadSize
	}

	if l.MaxEntries <= 0 {
		l.MaxEntries = DefaultMaxEntries
	}

	return l
}

// ContainerAdapter locates and extracts serialized payloads from one
// artifact format. Extraction never decodes payload bytes; it only reads
// container metadata and copies out the streams, with size and count caps
// applied. Extraction-level problems that are payload-local (an oversized
// entry, for example) come back as findings, not errors.
type ContainerAdapter interface {
	// Format names the container format this adapter handles.
	Format() m.Format

	// Detect reports whether the artifact looks like this format, judged
	// from its path and the first bytes of the file.
	Detect(path m.Path, head []byte) bool

	// Extract returns the payloads of the artifact in discovery order,
	// plus any extraction findings.
	Extract(name string, data []byte, limits Limits) ([]m.Payload, []m.Finding, error)
}

// Registry resolves an artifact to the adapter that can open it. Magic
// bytes win over extensions, so a mislabeled file is still routed by its
// real format.
type Registry struct {
	adapters []ContainerAdapter
}

// NewRegistry builds the registry with all supported formats.
func NewRegistry() *Registry {
	return &Registry{
		adapters: []ContainerAdapter{
			NewZipContainerAdapter(),
			NewNumpyContainerAdapter(),
			NewRawContainerAdapter(),
		},
	}
}

// Resolve picks the adapter for an artifact or fails with
// ErrUnsupportedFormat.
func (r *Registry) Resolve(path m.Path, head []byte) (ContainerAdapter, error) {
	for _, a := range r.adapters {
		if a.Detect(path, head) {
			return a, nil
		}
	}

	return nil, ErrUnsupportedFormat
}
