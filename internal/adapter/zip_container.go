package adapter

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	m "github.com/opaquebits/modelinspect/internal/model"
)

var zipMagic = []byte("PK\x03\x04")

// ZipContainerAdapter handles zip-based model archives: PyTorch
// checkpoints (data.pkl plus tensor storages) and NumPy .npz bundles.
type ZipContainerAdapter struct{}

// NewZipContainerAdapter constructs a ZipContainerAdapter.
func NewZipContainerAdapter() *ZipContainerAdapter {
	return &ZipContainerAdapter{}
}

// Format returns the zip archive format.
func (a *ZipContainerAdapter) Format() m.Format {
	return m.FormatZip
}

// Detect matches the zip local-file magic.
func (a *ZipContainerAdapter) Detect(_ m.Path, head []byte) bool {
	return bytes.HasPrefix(head, zipMagic)
}

// Extract enumerates archive entries and copies out the ones that carry
// serialized streams, in the order of the archive's own index. Entry
// sizes declared by the archive are not trusted: reads are capped at the
// payload limit and lying entries are skipped with a finding.
func (a *ZipContainerAdapter) Extract(name string, data []byte, limits Limits) ([]m.Payload, []m.Finding, error) {
	limits = limits.Normalized()

	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: corrupt zip index: %v", ErrUnsupportedFormat, err)
	}

	if len(archive.File) > limits.MaxEntries {
		return nil, nil, fmt.Errorf("%w: %d entries, limit %d", ErrTooManyEntries, len(archive.File), limits.MaxEntries)
	}

	var (
		payloads []m.Payload
		findings []m.Finding
	)

	for _, entry := range archive.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		kind := entryKind(entry.Name)
		if kind == entrySkip {
			continue
		}

		offset, err := entry.DataOffset()
		if err != nil {
			offset = 0
		}

		if entry.UncompressedSize64 > uint64(limits.MaxPayloadSize) {
			findings = append(findings, oversizeFinding(entry.Name, offset, int64(entry.UncompressedSize64), limits.MaxPayloadSize))
			continue
		}

		body, tooLarge, err := readEntry(entry, limits.MaxPayloadSize)
		if err != nil {
			return payloads, findings, fmt.Errorf("read archive entry %s: %w", entry.Name, err)
		}

		if tooLarge {
			findings = append(findings, oversizeFinding(entry.Name, offset, int64(len(body)), limits.MaxPayloadSize))
			continue
		}

		switch kind {
		case entryPickle:
			payloads = append(payloads, m.Payload{Name: entry.Name, Offset: offset, Data: body})

		case entryNumpy:
			// Nested chunk format: only object-dtype .npy entries carry a
			// stream. The inner offset is relative to the entry data.
			objectDtype, dataOffset, npyErr := parseNumpyHeader(body)
			if npyErr != nil || !objectDtype {
				continue
			}

			payloads = append(payloads, m.Payload{
				Name:   entry.Name,
				Offset: offset + dataOffset,
				Data:   body[dataOffset:],
			})
		}
	}

	return payloads, findings, nil
}

type zipEntryKind int

const (
	entrySkip zipEntryKind = iota
	entryPickle
	entryNumpy
)

// entryKind classifies an archive entry by the serialized-model naming
// conventions: data.pkl in PyTorch checkpoints, *.pkl/*.pickle anywhere,
// *.npy inside .npz bundles. Tensor storage blobs (archive/data/NN) are
// never selected.
func entryKind(name string) zipEntryKind {
	base := filepath.Base(name)

	switch strings.ToLower(filepath.Ext(base)) {
	case ".pkl", ".pickle", ".dill":
		return entryPickle
	case ".npy":
		return entryNumpy
	}

	if base == "data.pkl" {
		return entryPickle
	}

	return entrySkip
}

// readEntry decompresses one entry, reading at most max+1 bytes so a
// lying size header cannot expand past the cap.
func readEntry(entry *zip.File, max int64) ([]byte, bool, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, false, err
	}

	defer func() {
		_ = rc.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(rc, max+1))
	if err != nil {
		return nil, false, err
	}

	if int64(len(body)) > max {
		return body, true, nil
	}

	return body, false, nil
}
