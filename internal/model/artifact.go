// Package model defines the data structures for artifact scanning.
package model

// Path represents a file system path.
type Path string

// Format identifies the container format of an artifact.
type Format string

const (
	// FormatPickle is a bare pickle bytecode stream (.pkl, .pickle, .joblib).
	FormatPickle Format = "pickle"

	// FormatZip is a zip-based archive such as a PyTorch checkpoint or a
	// NumPy .npz bundle. Serialized payloads live in named entries.
	FormatZip Format = "zip"

	// FormatNumpy is a chunked .npy binary. Only object-dtype chunks carry
	// a serialized payload; tensor chunks are size-validated, never decoded.
	FormatNumpy Format = "numpy"

	// FormatUnknown marks an artifact whose format could not be determined.
	FormatUnknown Format = "unknown"
)

// Artifact is one input file submitted for scanning. It is immutable once
// loaded and owned by the scan invocation that produced it.
type Artifact struct {
	Path   Path
	Format Format
	Size   int64
	Hash   string // SHA-256 fingerprint of the file contents
}

// Payload is one serialized bytecode stream extracted from an Artifact.
// It never outlives the scan of the artifact that produced it.
type Payload struct {
	// Name is the logical name of the stream: the entry path inside a
	// container, or the artifact base name for bare streams.
	Name string

	// Offset is the byte offset of the stream within the artifact.
	Offset int64

	// Data is a read-only view of the stream bytes.
	Data []byte
}
