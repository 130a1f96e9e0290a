package model

// OpKind groups decoded operations by the effect the real deserializer
// would give them. The classifier keys its structural rules off this.
type OpKind string

const (
	// OpData pushes a literal or an empty container.
	OpData OpKind = "data"
	// OpStack shuffles the symbolic stack or the memo.
	OpStack OpKind = "stack"
	// OpGlobal resolves a module attribute (import-like).
	OpGlobal OpKind = "global"
	// OpCall invokes a callable taken from the stack (reduce-like).
	OpCall OpKind = "call"
	// OpBuild mutates a container or applies object state.
	OpBuild OpKind = "build"
	// OpControl is protocol bookkeeping (PROTO, FRAME, STOP).
	OpControl OpKind = "control"
	// OpPersistent references an out-of-band persistent ID.
	OpPersistent OpKind = "persistent"
	// OpUnknown is an opcode outside the closed enumeration.
	OpUnknown OpKind = "unknown"
)

// Symbol identifies a module attribute referenced by an operation.
type Symbol struct {
	Module string
	Name   string
}

func (s Symbol) String() string {
	return s.Module + "." + s.Name
}

// Argument is the decoded operand of an operation. Values are plain data,
// never live objects.
type Argument struct {
	Kind  string // "int", "float", "string", "bytes", "long"
	Int   int64
	Float float64
	Str   string // possibly truncated for very large operands; Size is exact
	Size  int64  // exact byte length of string/bytes operands
}

// Operation is one decoded abstract instruction from a payload. Operations
// are produced as an append-only sequence and never mutated after decode.
type Operation struct {
	Offset   int64
	Mnemonic string
	Kind     OpKind
	Arg      *Argument // nil when the opcode takes no operand

	// Target is the module attribute an import-like or call-like operation
	// refers to, when the symbolic stack could resolve it.
	Target *Symbol
}
