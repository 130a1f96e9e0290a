package adapter

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "github.com/opaquebits/modelinspect/internal/model"
)

var protoPickle = []byte("\x80\x02N.")

func zipBytes(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer

	w := zip.NewWriter(&buf)

	// Deterministic entry order keeps offset assertions stable.
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		f, err := w.Create(name)
		require.NoError(t, err)

		_, err = f.Write(entries[name])
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	return buf.Bytes()
}

func npyBytes(descr string, payload []byte) []byte {
	header := "{'descr': '" + descr + "', 'fortran_order': False, 'shape': (3,), }\n"

	var buf bytes.Buffer

	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(payload)

	return buf.Bytes()
}

func TestRegistry_MagicBytesWinOverExtension(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	tests := []struct {
		name   string
		path   m.Path
		head   []byte
		format m.Format
	}{
		{"zip magic", "model.pt", []byte("PK\x03\x04\x14\x00"), m.FormatZip},
		{"npy magic", "weights.npy", []byte("\x93NUMPY\x01\x00"), m.FormatNumpy},
		{"proto magic", "download.tmp", []byte{0x80, 0x04, 0x95}, m.FormatPickle},
		{"pickle extension", "legacy.pkl", []byte("(S'id'"), m.FormatPickle},
		{"zip magic despite pkl extension", "tricky.pkl", []byte("PK\x03\x04"), m.FormatZip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			adapter, err := registry.Resolve(tt.path, tt.head)
			require.NoError(t, err)
			assert.Equal(t, tt.format, adapter.Format())
		})
	}
}

func TestRegistry_UnknownFormatIsRejected(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry().Resolve("README.md", []byte("# model card"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestRawExtract_WholeFileIsOnePayload(t *testing.T) {
	t.Parallel()

	payloads, findings, err := NewRawContainerAdapter().Extract("model.pkl", protoPickle, Limits{})
	require.NoError(t, err)
	assert.Empty(t, findings)

	require.Len(t, payloads, 1)
	assert.Equal(t, "model.pkl", payloads[0].Name)
	assert.Zero(t, payloads[0].Offset)
	assert.Equal(t, protoPickle, payloads[0].Data)
}

func TestRawExtract_OversizedFileIsFindingNotError(t *testing.T) {
	t.Parallel()

	payloads, findings, err := NewRawContainerAdapter().Extract("big.pkl", protoPickle, Limits{MaxPayloadSize: 2})
	require.NoError(t, err)
	assert.Empty(t, payloads)

	require.Len(t, findings, 1)
	assert.Equal(t, m.RulePayloadSize, findings[0].RuleID)
	assert.Equal(t, m.SeverityWarning, findings[0].Severity)
}

func TestZipExtract_SelectsCandidateEntriesInIndexOrder(t *testing.T) {
	t.Parallel()

	data := zipBytes(t, map[string][]byte{
		"archive/data.pkl": protoPickle,
	})

	payloads, findings, err := NewZipContainerAdapter().Extract("model.pt", data, Limits{})
	require.NoError(t, err)
	assert.Empty(t, findings)

	require.Len(t, payloads, 1)
	assert.Equal(t, "archive/data.pkl", payloads[0].Name)
	assert.Equal(t, protoPickle, payloads[0].Data)
	assert.Greater(t, payloads[0].Offset, int64(0), "payload offset is the entry's position in the archive")
}

func TestZipExtract_EntryCountCap(t *testing.T) {
	t.Parallel()

	data := zipBytes(t, map[string][]byte{
		"a.pkl": protoPickle,
		"b.pkl": protoPickle,
	})

	_, _, err := NewZipContainerAdapter().Extract("model.pt", data, Limits{MaxEntries: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManyEntries))
}

func TestZipExtract_OversizedEntryIsSkippedWithFinding(t *testing.T) {
	t.Parallel()

	data := zipBytes(t, map[string][]byte{
		"big.pkl": bytes.Repeat([]byte{'x'}, 64),
	})

	payloads, findings, err := NewZipContainerAdapter().Extract("model.pt", data, Limits{MaxPayloadSize: 16})
	require.NoError(t, err)
	assert.Empty(t, payloads)

	require.Len(t, findings, 1)
	assert.Equal(t, m.RulePayloadSize, findings[0].RuleID)
	assert.Equal(t, "big.pkl", findings[0].Payload)
}

func TestZipExtract_CorruptArchiveFails(t *testing.T) {
	t.Parallel()

	corrupt := []byte("PK\x03\x04 definitely not a zip")

	_, _, err := NewZipContainerAdapter().Extract("model.pt", corrupt, Limits{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestEntryKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want zipEntryKind
	}{
		{"archive/data.pkl", entryPickle},
		{"model/extra.pickle", entryPickle},
		{"payload.dill", entryPickle},
		{"ARCHIVE/DATA.PKL", entryPickle},
		{"arr_0.npy", entryNumpy},
		{"archive/data/0", entrySkip},
		{"archive/version", entrySkip},
		{"byteorder", entrySkip},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, entryKind(tt.name), tt.name)
	}
}

func TestNumpyExtract_ObjectDtypeYieldsPayload(t *testing.T) {
	t.Parallel()

	data := npyBytes("|O", protoPickle)

	payloads, findings, err := NewNumpyContainerAdapter().Extract("weights.npy", data, Limits{})
	require.NoError(t, err)
	assert.Empty(t, findings)

	require.Len(t, payloads, 1)
	assert.Equal(t, protoPickle, payloads[0].Data)
	assert.Equal(t, int64(len(data)-len(protoPickle)), payloads[0].Offset)
}

func TestNumpyExtract_TensorDtypeYieldsNothing(t *testing.T) {
	t.Parallel()

	data := npyBytes("<f8", bytes.Repeat([]byte{0}, 24))

	payloads, findings, err := NewNumpyContainerAdapter().Extract("weights.npy", data, Limits{})
	require.NoError(t, err)
	assert.Empty(t, payloads)
	assert.Empty(t, findings)
}

func TestParseNumpyHeader_Version2(t *testing.T) {
	t.Parallel()

	header := "{'descr': '|O', 'fortran_order': False, 'shape': (1,), }\n"

	var buf bytes.Buffer

	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{2, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(header)))
	buf.WriteString(header)
	buf.Write(protoPickle)

	objectDtype, offset, err := parseNumpyHeader(buf.Bytes())
	require.NoError(t, err)
	assert.True(t, objectDtype)
	assert.Equal(t, int64(6+2+4+len(header)), offset)
}

func TestParseNumpyHeader_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"wrong magic", []byte("NOTNPY\x01\x00")},
		{"truncated version", []byte("\x93NUMPY")},
		{"truncated header length", []byte("\x93NUMPY\x01\x00\x40")},
		{"header length past buffer", []byte("\x93NUMPY\x01\x00\xFF\xFF")},
		{"unknown version", []byte("\x93NUMPY\x09\x00\x02\x00{}")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := parseNumpyHeader(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedFormat))
		})
	}
}

func TestNumpyDescrIsObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   bool
	}{
		{"{'descr': '|O', 'fortran_order': False, 'shape': (1,), }", true},
		{"{'descr': 'O8', 'fortran_order': False, 'shape': (1,), }", true},
		{"{'descr': '<f8', 'fortran_order': False, 'shape': (3,), }", false},
		{"{'descr': '<i4', 'fortran_order': True, 'shape': (2, 2), }", false},
		{"{'fortran_order': False, 'shape': (1,), }", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, numpyDescrIsObject(tt.header), tt.header)
	}
}
