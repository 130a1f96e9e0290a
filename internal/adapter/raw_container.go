package adapter

import (
	"fmt"
	"path/filepath"
	"strings"

	m "github.com/opaquebits/modelinspect/internal/model"
)

// pickleExtensions are file extensions conventionally carrying a bare
// pickle stream.
var pickleExtensions = map[string]bool{
	".pkl":    true,
	".pickle": true,
	".joblib": true,
	".dill":   true,
	".bin":    true,
}

// RawContainerAdapter treats the whole artifact as a single pickle
// stream. It is the fallback for files that are not archives.
type RawContainerAdapter struct{}

// NewRawContainerAdapter constructs a RawContainerAdapter.
func NewRawContainerAdapter() *RawContainerAdapter {
	return &RawContainerAdapter{}
}

// Format returns the pickle stream format.
func (a *RawContainerAdapter) Format() m.Format {
	return m.FormatPickle
}

// Detect accepts files with a pickle extension or a protocol-2+ PROTO
// opcode at the start of the buffer.
func (a *RawContainerAdapter) Detect(path m.Path, head []byte) bool {
	if pickleExtensions[strings.ToLower(filepath.Ext(string(path)))] {
		return true
	}

	return len(head) >= 2 && head[0] == 0x80 && head[1] >= 1 && head[1] <= 5
}

// Extract returns the file as one payload at offset zero.
func (a *RawContainerAdapter) Extract(name string, data []byte, limits Limits) ([]m.Payload, []m.Finding, error) {
	limits = limits.Normalized()

	if int64(len(data)) > limits.MaxPayloadSize {
		return nil, []m.Finding{oversizeFinding(name, 0, int64(len(data)), limits.MaxPayloadSize)}, nil
	}

	return []m.Payload{{Name: name, Offset: 0, Data: data}}, nil, nil
}

func oversizeFinding(name string, offset, size, max int64) m.Finding {
	return m.Finding{
		Severity: m.SeverityWarning,
		RuleID:   m.RulePayloadSize,
		Category: m.CategoryResource,
		Message:  fmt.Sprintf("payload of %d bytes exceeds the configured cap of %d bytes; skipped without decoding", size, max),
		Payload:  name,
		Offset:   offset,
	}
}
