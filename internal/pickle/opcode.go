// Package pickle decodes pickle bytecode streams into abstract operation
// sequences without ever invoking a deserializer or allocating live
// objects. Decoding is pure data transformation: the only state it keeps
// is a symbolic stack of operand descriptors, enough to resolve
// back-references such as "call the global two slots down".
package pickle

import (
	m "github.com/opaquebits/modelinspect/internal/model"
)

// ArgKind describes how an opcode's operand is encoded in the stream.
type ArgKind int

const (
	// ArgNone means the opcode takes no operand.
	ArgNone ArgKind = iota
	// ArgUint1 is one unsigned byte.
	ArgUint1
	// ArgUint2 is a 2-byte little-endian unsigned integer.
	ArgUint2
	// ArgInt4 is a 4-byte little-endian signed integer.
	ArgInt4
	// ArgUint4 is a 4-byte little-endian unsigned integer.
	ArgUint4
	// ArgUint8 is an 8-byte little-endian unsigned integer.
	ArgUint8
	// ArgFloat8 is an 8-byte big-endian IEEE 754 double.
	ArgFloat8
	// ArgLine is a newline-terminated ASCII string.
	ArgLine
	// ArgTwoLines is two newline-terminated strings (module, then name).
	ArgTwoLines
	// ArgStringNL is a repr-quoted, newline-terminated string.
	ArgStringNL
	// ArgBytes1 is a 1-byte length prefix followed by that many bytes.
	ArgBytes1
	// ArgBytes4 is a 4-byte little-endian length prefix plus bytes.
	ArgBytes4
	// ArgBytes8 is an 8-byte little-endian length prefix plus bytes.
	ArgBytes8
	// ArgLong1 is a 1-byte length prefix plus a little-endian two's
	// complement integer of that many bytes.
	ArgLong1
	// ArgLong4 is a 4-byte length prefix variant of ArgLong1.
	ArgLong4
)

// Opcode is one entry in the closed pickle instruction set.
type Opcode struct {
	Code     byte
	Mnemonic string
	Arg      ArgKind
	Kind     m.OpKind
}

// opcodes enumerates every instruction of pickle protocols 0 through 5.
// Dispatch is a plain table lookup so the decoder stays exhaustive and
// auditable; anything absent here decodes as an UNKNOWN operation.
var opcodes = []Opcode{
	{'(', "MARK", ArgNone, m.OpStack},
	{'.', "STOP", ArgNone, m.OpControl},
	{'0', "POP", ArgNone, m.OpStack},
	{'1', "POP_MARK", ArgNone, m.OpStack},
	{'2', "DUP", ArgNone, m.OpStack},
	{'F', "FLOAT", ArgLine, m.OpData},
	{'I', "INT", ArgLine, m.OpData},
	{'J', "BININT", ArgInt4, m.OpData},
	{'K', "BININT1", ArgUint1, m.OpData},
	{'L', "LONG", ArgLine, m.OpData},
	{'M', "BININT2", ArgUint2, m.OpData},
	{'N', "NONE", ArgNone, m.OpData},
	{'P', "PERSID", ArgLine, m.OpPersistent},
	{'Q', "BINPERSID", ArgNone, m.OpPersistent},
	{'R', "REDUCE", ArgNone, m.OpCall},
	{'S', "STRING", ArgStringNL, m.OpData},
	{'T', "BINSTRING", ArgBytes4, m.OpData},
	{'U', "SHORT_BINSTRING", ArgBytes1, m.OpData},
	{'V', "UNICODE", ArgLine, m.OpData},
	{'X', "BINUNICODE", ArgBytes4, m.OpData},
	{'a', "APPEND", ArgNone, m.OpBuild},
	{'b', "BUILD", ArgNone, m.OpBuild},
	{'c', "GLOBAL", ArgTwoLines, m.OpGlobal},
	{'d', "DICT", ArgNone, m.OpData},
	{'}', "EMPTY_DICT", ArgNone, m.OpData},
	{'e', "APPENDS", ArgNone, m.OpBuild},
	{'g', "GET", ArgLine, m.OpStack},
	{'h', "BINGET", ArgUint1, m.OpStack},
	{'i', "INST", ArgTwoLines, m.OpCall},
	{'j', "LONG_BINGET", ArgUint4, m.OpStack},
	{'l', "LIST", ArgNone, m.OpData},
	{']', "EMPTY_LIST", ArgNone, m.OpData},
	{'o', "OBJ", ArgNone, m.OpCall},
	{'p', "PUT", ArgLine, m.OpStack},
	{'q', "BINPUT", ArgUint1, m.OpStack},
	{'r', "LONG_BINPUT", ArgUint4, m.OpStack},
	{'s', "SETITEM", ArgNone, m.OpBuild},
	{'t', "TUPLE", ArgNone, m.OpData},
	{')', "EMPTY_TUPLE", ArgNone, m.OpData},
	{'u', "SETITEMS", ArgNone, m.OpBuild},
	{'G', "BINFLOAT", ArgFloat8, m.OpData},

	// Protocol 2.
	{0x80, "PROTO", ArgUint1, m.OpControl},
	{0x81, "NEWOBJ", ArgNone, m.OpCall},
	{0x82, "EXT1", ArgUint1, m.OpGlobal},
	{0x83, "EXT2", ArgUint2, m.OpGlobal},
	{0x84, "EXT4", ArgInt4, m.OpGlobal},
	{0x85, "TUPLE1", ArgNone, m.OpData},
	{0x86, "TUPLE2", ArgNone, m.OpData},
	{0x87, "TUPLE3", ArgNone, m.OpData},
	{0x88, "NEWTRUE", ArgNone, m.OpData},
	{0x89, "NEWFALSE", ArgNone, m.OpData},
	{0x8a, "LONG1", ArgLong1, m.OpData},
	{0x8b, "LONG4", ArgLong4, m.OpData},

	// Protocol 3.
	{'B', "BINBYTES", ArgBytes4, m.OpData},
	{'C', "SHORT_BINBYTES", ArgBytes1, m.OpData},

	// Protocol 4.
	{0x8c, "SHORT_BINUNICODE", ArgBytes1, m.OpData},
	{0x8d, "BINUNICODE8", ArgBytes8, m.OpData},
	{0x8e, "BINBYTES8", ArgBytes8, m.OpData},
	{0x8f, "EMPTY_SET", ArgNone, m.OpData},
	{0x90, "ADDITEMS", ArgNone, m.OpBuild},
	{0x91, "FROZENSET", ArgNone, m.OpData},
	{0x92, "NEWOBJ_EX", ArgNone, m.OpCall},
	{0x93, "STACK_GLOBAL", ArgNone, m.OpGlobal},
	{0x94, "MEMOIZE", ArgNone, m.OpStack},
	{0x95, "FRAME", ArgUint8, m.OpControl},

	// Protocol 5.
	{0x96, "BYTEARRAY8", ArgBytes8, m.OpData},
	{0x97, "NEXT_BUFFER", ArgNone, m.OpData},
	{0x98, "READONLY_BUFFER", ArgNone, m.OpData},
}

var opcodeTable = buildTable()

func buildTable() [256]*Opcode {
	var table [256]*Opcode

	for i := range opcodes {
		table[opcodes[i].Code] = &opcodes[i]
	}

	return table
}

// Lookup returns the opcode for a code byte, or nil when the byte is not
// part of the closed enumeration.
func Lookup(code byte) *Opcode {
	return opcodeTable[code]
}
