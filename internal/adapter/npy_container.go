package adapter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"

	m "github.com/opaquebits/modelinspect/internal/model"
)

var numpyMagic = []byte("\x93NUMPY")

// NumpyContainerAdapter handles chunked .npy binaries. Only object-dtype
// chunks carry a pickle stream; numeric tensor chunks are size-validated
// and never decoded.
type NumpyContainerAdapter struct{}

// NewNumpyContainerAdapter constructs a NumpyContainerAdapter.
func NewNumpyContainerAdapter() *NumpyContainerAdapter {
	return &NumpyContainerAdapter{}
}

// Format returns the numpy chunk format.
func (a *NumpyContainerAdapter) Format() m.Format {
	return m.FormatNumpy
}

// Detect matches the .npy magic bytes.
func (a *NumpyContainerAdapter) Detect(path m.Path, head []byte) bool {
	if bytes.HasPrefix(head, numpyMagic) {
		return true
	}

	return strings.ToLower(filepath.Ext(string(path))) == ".npy" && len(head) == 0
}

// Extract parses the chunk directory (magic, version, header) and returns
// the trailing data chunk as a payload when the declared dtype is object.
func (a *NumpyContainerAdapter) Extract(name string, data []byte, limits Limits) ([]m.Payload, []m.Finding, error) {
	limits = limits.Normalized()

	objectDtype, dataOffset, err := parseNumpyHeader(data)
	if err != nil {
		return nil, nil, err
	}

	if !objectDtype {
		// Plain tensor chunk: size-validate only, nothing to decode.
		return nil, nil, nil
	}

	payload := data[dataOffset:]
	if int64(len(payload)) > limits.MaxPayloadSize {
		return nil, []m.Finding{oversizeFinding(name, dataOffset, int64(len(payload)), limits.MaxPayloadSize)}, nil
	}

	return []m.Payload{{Name: name, Offset: dataOffset, Data: payload}}, nil, nil
}

// parseNumpyHeader walks the .npy preamble and reports whether the dtype
// is object (meaning the data chunk is a pickle stream) plus the offset of
// the data chunk. Header length fields use the exact widths of the format:
// 2 bytes little-endian for version 1, 4 bytes for versions 2 and 3.
func parseNumpyHeader(data []byte) (bool, int64, error) {
	if !bytes.HasPrefix(data, numpyMagic) {
		return false, 0, fmt.Errorf("%w: missing .npy magic", ErrUnsupportedFormat)
	}

	if len(data) < len(numpyMagic)+2 {
		return false, 0, fmt.Errorf("%w: truncated .npy version field", ErrUnsupportedFormat)
	}

	major := data[len(numpyMagic)]
	pos := len(numpyMagic) + 2

	var headerLen int

	switch {
	case major == 1:
		if len(data) < pos+2 {
			return false, 0, fmt.Errorf("%w: truncated .npy header length", ErrUnsupportedFormat)
		}

		headerLen = int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2

	case major == 2 || major == 3:
		if len(data) < pos+4 {
			return false, 0, fmt.Errorf("%w: truncated .npy header length", ErrUnsupportedFormat)
		}

		headerLen = int(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4

	default:
		return false, 0, fmt.Errorf("%w: unknown .npy version %d", ErrUnsupportedFormat, major)
	}

	if headerLen < 0 || len(data)-pos < headerLen {
		return false, 0, fmt.Errorf("%w: .npy header length %d exceeds file size", ErrUnsupportedFormat, headerLen)
	}

	header := string(data[pos : pos+headerLen])

	return numpyDescrIsObject(header), int64(pos + headerLen), nil
}

// numpyDescrIsObject inspects the header dict text for an object dtype
// ('|O', 'O', or 'O8' descr values).
func numpyDescrIsObject(header string) bool {
	idx := strings.Index(header, "'descr'")
	if idx < 0 {
		return false
	}

	rest := header[idx+len("'descr'"):]

	start := strings.IndexByte(rest, '\'')
	if start < 0 {
		return false
	}

	end := strings.IndexByte(rest[start+1:], '\'')
	if end < 0 {
		return false
	}

	descr := rest[start+1 : start+1+end]

	return strings.Contains(descr, "O")
}
