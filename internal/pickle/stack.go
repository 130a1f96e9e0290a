package pickle

import (
	"strings"

	m "github.com/opaquebits/modelinspect/internal/model"
)

// apply updates the symbolic stack for one operation and resolves the
// operation's target symbol where the stack allows it. Malformed stacks
// never fail the decode: missing values degrade to placeholder
// descriptors, since classification only needs best-effort resolution.
func (d *decoder) apply(opc *Opcode, op *m.Operation, secondLine string) {
	switch opc.Mnemonic {
	case "MARK":
		d.push(descriptor{kind: descMark, text: "<mark>"})

	case "POP":
		d.pop()

	case "POP_MARK":
		d.popMark()

	case "DUP":
		d.push(d.peek())

	case "PUT", "BINPUT", "LONG_BINPUT":
		d.memoize(memoKey(op))

	case "MEMOIZE":
		d.memo[int64(len(d.memo))] = d.peek()

	case "GET", "BINGET", "LONG_BINGET":
		if v, ok := d.memo[memoKey(op)]; ok {
			d.push(v)
		} else {
			d.push(placeholder)
		}

	case "GLOBAL":
		op.Target = splitGlobal(op.Arg, secondLine)
		d.pushGlobal(op.Target)

	case "STACK_GLOBAL":
		name := d.pop()
		module := d.pop()
		if name.kind == descString && module.kind == descString {
			op.Target = &m.Symbol{Module: module.text, Name: name.text}
		}

		d.pushGlobal(op.Target)

	case "EXT1", "EXT2", "EXT4":
		d.push(descriptor{kind: descOther, text: "<extension>"})

	case "REDUCE":
		d.pop() // argument tuple
		callable := d.pop()
		op.Target = symbolOf(callable)
		d.push(callDescriptor(callable))

	case "NEWOBJ":
		d.pop() // argument tuple
		cls := d.pop()
		op.Target = symbolOf(cls)
		d.push(callDescriptor(cls))

	case "NEWOBJ_EX":
		d.pop() // kwargs
		d.pop() // args
		cls := d.pop()
		op.Target = symbolOf(cls)
		d.push(callDescriptor(cls))

	case "INST":
		op.Target = splitGlobal(op.Arg, secondLine)
		d.popMark()
		d.push(callDescriptor(descriptor{kind: descGlobal, text: op.Target.String(), sym: *op.Target}))

	case "OBJ":
		items := d.popMark()
		if len(items) > 0 {
			op.Target = symbolOf(items[0])
		}

		d.push(descriptor{kind: descOther, text: "<object>"})

	case "BUILD":
		d.pop() // state; the object below stays

	case "APPEND":
		d.pop()

	case "SETITEM":
		d.pop()
		d.pop()

	case "APPENDS", "SETITEMS", "ADDITEMS":
		d.popMark()

	case "TUPLE", "LIST", "FROZENSET":
		d.popMark()
		d.push(descriptor{kind: descOther, text: "<" + strings.ToLower(opc.Mnemonic) + ">"})

	case "DICT":
		d.popMark()
		d.push(descriptor{kind: descOther, text: "<dict>"})

	case "TUPLE1":
		d.popN(1)
		d.push(descriptor{kind: descOther, text: "<tuple>"})

	case "TUPLE2":
		d.popN(2)
		d.push(descriptor{kind: descOther, text: "<tuple>"})

	case "TUPLE3":
		d.popN(3)
		d.push(descriptor{kind: descOther, text: "<tuple>"})

	case "PERSID":
		d.push(descriptor{kind: descOther, text: "<persistent>"})

	case "BINPERSID":
		d.pop()
		d.push(descriptor{kind: descOther, text: "<persistent>"})

	case "PROTO", "FRAME", "STOP":
		// Protocol bookkeeping, no stack effect worth modeling.

	default:
		if opc.Kind == m.OpData {
			d.push(dataDescriptor(op))
		}
	}
}

func (d *decoder) push(v descriptor) {
	d.stack = append(d.stack, v)
}

func (d *decoder) pop() descriptor {
	if len(d.stack) == 0 {
		return placeholder
	}

	v := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]

	return v
}

func (d *decoder) popN(n int) {
	for range n {
		d.pop()
	}
}

func (d *decoder) peek() descriptor {
	if len(d.stack) == 0 {
		return placeholder
	}

	return d.stack[len(d.stack)-1]
}

// popMark pops descriptors up to and including the nearest mark and
// returns the values that sat above it, oldest first.
func (d *decoder) popMark() []descriptor {
	for i := len(d.stack) - 1; i >= 0; i-- {
		if d.stack[i].kind == descMark {
			items := make([]descriptor, len(d.stack)-i-1)
			copy(items, d.stack[i+1:])
			d.stack = d.stack[:i]

			return items
		}
	}

	d.stack = d.stack[:0]

	return nil
}

func (d *decoder) memoize(key int64) {
	d.memo[key] = d.peek()
}

func (d *decoder) pushGlobal(sym *m.Symbol) {
	if sym == nil {
		d.push(placeholder)
		return
	}

	d.push(descriptor{kind: descGlobal, text: sym.String(), sym: *sym})
}

// memoKey extracts the memo slot from a PUT/GET style operand. Text-form
// keys (protocol 0) hash by their digits; binary forms carry the index.
func memoKey(op *m.Operation) int64 {
	if op.Arg == nil {
		return 0
	}

	if op.Arg.Kind == "int" {
		return op.Arg.Int
	}

	var key int64
	for _, c := range op.Arg.Str {
		if c < '0' || c > '9' {
			break
		}

		key = key*10 + int64(c-'0')
	}

	return key
}

func splitGlobal(arg *m.Argument, name string) *m.Symbol {
	if arg == nil {
		return nil
	}

	module := strings.TrimSuffix(arg.Str, " "+name)

	return &m.Symbol{Module: module, Name: name}
}

func symbolOf(v descriptor) *m.Symbol {
	if v.kind != descGlobal {
		return nil
	}

	sym := v.sym

	return &sym
}

func callDescriptor(callable descriptor) descriptor {
	return descriptor{kind: descOther, text: "call(" + callable.text + ")"}
}

func dataDescriptor(op *m.Operation) descriptor {
	if op.Arg != nil && op.Arg.Kind == "string" {
		return descriptor{kind: descString, text: op.Arg.Str}
	}

	return descriptor{kind: descOther, text: "<" + strings.ToLower(op.Mnemonic) + ">"}
}
