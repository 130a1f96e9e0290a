package pickle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	m "github.com/opaquebits/modelinspect/internal/model"
)

// ErrMalformedStream reports a stream whose operands cannot be decoded
// within the buffer, typically a truncated or corrupt payload.
var ErrMalformedStream = errors.New("malformed pickle stream")

// maxStoredOperand caps how many operand bytes are copied into an
// Operation. The exact length is always preserved in Argument.Size.
const maxStoredOperand = 1024

// Stream is the decoded form of one payload. Decoding the same bytes
// always yields the same Stream, so decoded streams are cacheable and may
// be re-classified against an updated rule table without re-decoding.
type Stream struct {
	Ops []m.Operation

	// Trailing counts bytes left in the buffer past the STOP terminator.
	Trailing int64
}

// Decode walks a pickle bytecode stream and returns its operation
// sequence. It never constructs live objects: back-references are resolved
// through a symbolic stack of descriptors only.
//
// Decoding stops at the STOP terminator or at end of buffer. An operand
// that would read past the buffer end fails with ErrMalformedStream; the
// operations decoded up to that point are still returned. An opcode
// outside the closed enumeration is recorded as an UNKNOWN operation and
// ends the decode, since its operand length cannot be known.
func Decode(data []byte) (Stream, error) {
	d := &decoder{data: data, memo: make(map[int64]descriptor)}

	return d.run()
}

type descKind int

const (
	descOther descKind = iota
	descString
	descGlobal
	descMark
)

// descriptor is a symbolic stand-in for a value the real deserializer
// would have constructed.
type descriptor struct {
	kind descKind
	text string
	sym  m.Symbol // valid when kind == descGlobal
}

var placeholder = descriptor{kind: descOther, text: "?"}

type decoder struct {
	data  []byte
	pos   int
	stack []descriptor
	memo  map[int64]descriptor
	ops   []m.Operation
}

func (d *decoder) run() (Stream, error) {
	for d.pos < len(d.data) {
		offset := int64(d.pos)
		code := d.data[d.pos]
		d.pos++

		opc := Lookup(code)
		if opc == nil {
			d.ops = append(d.ops, m.Operation{
				Offset:   offset,
				Mnemonic: fmt.Sprintf("UNKNOWN_0x%02X", code),
				Kind:     m.OpUnknown,
			})

			// The operand encoding of an unknown opcode is unknowable, so
			// nothing past this point can be decoded reliably.
			return Stream{Ops: d.ops}, nil
		}

		arg, second, err := d.readArg(opc)
		if err != nil {
			return Stream{Ops: d.ops}, fmt.Errorf("%w: %s at offset %d: %v", ErrMalformedStream, opc.Mnemonic, offset, err)
		}

		op := m.Operation{
			Offset:   offset,
			Mnemonic: opc.Mnemonic,
			Kind:     opc.Kind,
			Arg:      arg,
		}

		d.apply(opc, &op, second)
		d.ops = append(d.ops, op)

		if opc.Mnemonic == "STOP" {
			return Stream{Ops: d.ops, Trailing: int64(len(d.data) - d.pos)}, nil
		}
	}

	return Stream{Ops: d.ops}, nil
}

// readArg decodes the operand for one opcode using exact fixed-width
// integer semantics. The second return value carries the second line of
// two-line operands (GLOBAL, INST).
func (d *decoder) readArg(opc *Opcode) (*m.Argument, string, error) {
	switch opc.Arg {
	case ArgNone:
		return nil, "", nil

	case ArgUint1:
		v, err := d.readBytes(1)
		if err != nil {
			return nil, "", err
		}

		return &m.Argument{Kind: "int", Int: int64(v[0])}, "", nil

	case ArgUint2:
		v, err := d.readBytes(2)
		if err != nil {
			return nil, "", err
		}

		return &m.Argument{Kind: "int", Int: int64(binary.LittleEndian.Uint16(v))}, "", nil

	case ArgInt4:
		v, err := d.readBytes(4)
		if err != nil {
			return nil, "", err
		}

		return &m.Argument{Kind: "int", Int: int64(int32(binary.LittleEndian.Uint32(v)))}, "", nil

	case ArgUint4:
		v, err := d.readBytes(4)
		if err != nil {
			return nil, "", err
		}

		return &m.Argument{Kind: "int", Int: int64(binary.LittleEndian.Uint32(v))}, "", nil

	case ArgUint8:
		v, err := d.readBytes(8)
		if err != nil {
			return nil, "", err
		}

		u := binary.LittleEndian.Uint64(v)
		if u > math.MaxInt64 {
			return nil, "", fmt.Errorf("8-byte operand %d exceeds supported range", u)
		}

		return &m.Argument{Kind: "int", Int: int64(u)}, "", nil

	case ArgFloat8:
		v, err := d.readBytes(8)
		if err != nil {
			return nil, "", err
		}

		return &m.Argument{Kind: "float", Float: math.Float64frombits(binary.BigEndian.Uint64(v))}, "", nil

	case ArgLine, ArgStringNL:
		line, err := d.readLine()
		if err != nil {
			return nil, "", err
		}

		return &m.Argument{Kind: "string", Str: line, Size: int64(len(line))}, "", nil

	case ArgTwoLines:
		module, err := d.readLine()
		if err != nil {
			return nil, "", err
		}

		name, err := d.readLine()
		if err != nil {
			return nil, "", err
		}

		return &m.Argument{Kind: "string", Str: module + " " + name, Size: int64(len(module) + len(name))}, name, nil

	case ArgBytes1, ArgBytes4, ArgBytes8:
		return d.readPrefixed(prefixWidth(opc.Arg))

	case ArgLong1, ArgLong4:
		return d.readLong(prefixWidth(opc.Arg))

	default:
		return nil, "", fmt.Errorf("unhandled operand kind %d", opc.Arg)
	}
}

func prefixWidth(kind ArgKind) int {
	switch kind {
	case ArgBytes1, ArgLong1:
		return 1
	case ArgBytes4, ArgLong4:
		return 4
	default:
		return 8
	}
}

func (d *decoder) readBytes(n int) ([]byte, error) {
	if n > len(d.data)-d.pos {
		return nil, fmt.Errorf("need %d bytes, %d remain", n, len(d.data)-d.pos)
	}

	v := d.data[d.pos : d.pos+n]
	d.pos += n

	return v, nil
}

func (d *decoder) readLine() (string, error) {
	for i := d.pos; i < len(d.data); i++ {
		if d.data[i] == '\n' {
			line := string(d.data[d.pos:i])
			d.pos = i + 1

			return line, nil
		}
	}

	return "", errors.New("unterminated line operand")
}

// readLength reads a little-endian length prefix of the given width.
func (d *decoder) readLength(width int) (int64, error) {
	v, err := d.readBytes(width)
	if err != nil {
		return 0, err
	}

	switch width {
	case 1:
		return int64(v[0]), nil
	case 4:
		return int64(binary.LittleEndian.Uint32(v)), nil
	default:
		u := binary.LittleEndian.Uint64(v)
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("length prefix %d exceeds supported range", u)
		}

		return int64(u), nil
	}
}

func (d *decoder) readPrefixed(width int) (*m.Argument, string, error) {
	n, err := d.readLength(width)
	if err != nil {
		return nil, "", err
	}

	if n > int64(len(d.data)-d.pos) {
		return nil, "", fmt.Errorf("declared length %d exceeds remaining %d bytes", n, len(d.data)-d.pos)
	}

	body := d.data[d.pos : d.pos+int(n)]
	d.pos += int(n)

	stored := body
	if len(stored) > maxStoredOperand {
		stored = stored[:maxStoredOperand]
	}

	return &m.Argument{Kind: "string", Str: string(stored), Size: n}, "", nil
}

// readLong decodes a length-prefixed little-endian two's complement
// integer. Values wider than 8 bytes keep only their exact size.
func (d *decoder) readLong(width int) (*m.Argument, string, error) {
	n, err := d.readLength(width)
	if err != nil {
		return nil, "", err
	}

	if n > int64(len(d.data)-d.pos) {
		return nil, "", fmt.Errorf("declared length %d exceeds remaining %d bytes", n, len(d.data)-d.pos)
	}

	body := d.data[d.pos : d.pos+int(n)]
	d.pos += int(n)

	if n == 0 {
		return &m.Argument{Kind: "long"}, "", nil
	}

	if n <= 8 {
		var u uint64
		for i := len(body) - 1; i >= 0; i-- {
			u = u<<8 | uint64(body[i])
		}

		// Sign-extend from the declared width.
		if body[len(body)-1]&0x80 != 0 && n < 8 {
			u |= ^uint64(0) << (8 * uint(n))
		}

		return &m.Argument{Kind: "long", Int: int64(u), Size: n}, "", nil
	}

	return &m.Argument{Kind: "long", Size: n}, "", nil
}
