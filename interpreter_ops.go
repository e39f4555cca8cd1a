// interpreter_ops.go — PRIVATE: expression evaluation, path resolution,
// function application, and the built-in registry.
//
// Expression evaluation returns a (type, cell) pair. Cells stay aliased to
// their storage: resolving a path to a file-backed variable and reading it
// later re-reads the buffer through the host. Arithmetic results and
// literals are constant cells.
//
// Null propagation: a file-backed read that came up short yields the null
// datum; any arithmetic, logical, comparison, index, condition, or argument
// use of a null datum raises TypeMismatch at the offending expression.
package bt

import (
	"strconv"
	"strings"
)

/* ─────────────────────────── functions ─────────────────────────────────── */

type funcParam struct {
	typ  *Type
	name string
}

type argValue struct {
	typ  *Type
	cell Cell
	node *Node
}

type builtinImpl func(ctx *ExecContext, call *Node, args []argValue) (*Type, Cell, *Error)

// function is a user-defined or built-in function descriptor.
type function struct {
	name    string
	ret     *Type // nil = void
	params  []funcParam
	body    *Node
	builtin builtinImpl
}

/* ─────────────────────────── expression evaluation ─────────────────────── */

// evalExpr evaluates an expression node to a (type, cell) pair. A void
// function call yields (nil, nil).
func (ctx *ExecContext) evalExpr(n *Node) (*Type, Cell, *Error) {
	switch n.Op {
	case OpNum:
		return tyS32, &ConstCell{D: IntDatum(n.Num)}, nil
	case OpStr:
		return tyString, &ConstCell{D: StrDatum(n.Str)}, nil
	case OpRef:
		return ctx.resolvePath(n)
	case OpCall:
		return ctx.evalCall(n)
	case OpNeg:
		no, err := ctx.numericKid(n, 0)
		if err != nil {
			return nil, nil, err
		}
		if no.isFloat {
			return tyF64, &ConstCell{D: FloatDatum(-no.f)}, nil
		}
		return tyS32, &ConstCell{D: IntDatum(-no.i)}, nil
	case OpNot:
		ok, err := ctx.evalCond(n.Kids[0])
		if err != nil {
			return nil, nil, err
		}
		return tyS32, &ConstCell{D: IntDatum(boolInt(!ok))}, nil
	case OpBitNot:
		v, err := ctx.intKid(n, 0)
		if err != nil {
			return nil, nil, err
		}
		return tyS32, &ConstCell{D: IntDatum(^v)}, nil
	case OpLogAnd:
		l, err := ctx.evalCond(n.Kids[0])
		if err != nil {
			return nil, nil, err
		}
		if !l {
			return tyS32, &ConstCell{D: IntDatum(0)}, nil
		}
		r, err := ctx.evalCond(n.Kids[1])
		if err != nil {
			return nil, nil, err
		}
		return tyS32, &ConstCell{D: IntDatum(boolInt(r))}, nil
	case OpLogOr:
		l, err := ctx.evalCond(n.Kids[0])
		if err != nil {
			return nil, nil, err
		}
		if l {
			return tyS32, &ConstCell{D: IntDatum(1)}, nil
		}
		r, err := ctx.evalCond(n.Kids[1])
		if err != nil {
			return nil, nil, err
		}
		return tyS32, &ConstCell{D: IntDatum(boolInt(r))}, nil
	case OpAssign:
		return ctx.evalAssign(n)
	}
	if isBinaryOp(n.Op) {
		return ctx.evalBinary(n)
	}
	return nil, nil, errAt(n, KindInternal, "unhandled expression op %d", n.Op)
}

// evalCond evaluates an expression as a numeric truth value.
func (ctx *ExecContext) evalCond(n *Node) (bool, *Error) {
	t, c, err := ctx.evalExpr(n)
	if err != nil {
		return false, err
	}
	no, err := ctx.numericOperand(t, c, n)
	if err != nil {
		return false, err
	}
	if no.isFloat {
		return no.f != 0, nil
	}
	return no.i != 0, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

/* ─────────────────────────── operand helpers ───────────────────────────── */

// datumOf reads a scalar value from a (type, cell) pair, rejecting void,
// struct, and array operands and surfacing short reads.
func (ctx *ExecContext) datumOf(t *Type, c Cell, at *Node) (Datum, *Error) {
	if t == nil || c == nil {
		return Datum{}, errAt(at, KindTypeMismatch, "expression has no value")
	}
	if t.IsArray {
		return Datum{}, errAt(at, KindTypeMismatch, "an array value cannot be used here")
	}
	if t.Base == BaseStruct {
		return Datum{}, errAt(at, KindTypeMismatch, "a struct value cannot be used here")
	}
	d := c.Get()
	if d.Tag == DNull {
		return Datum{}, errAt(at, KindTypeMismatch, "value unavailable: read past end of buffer")
	}
	return d, nil
}

type numOperand struct {
	isFloat bool
	i       int64
	f       float64
}

func (no numOperand) asFloat() float64 {
	if no.isFloat {
		return no.f
	}
	return float64(no.i)
}

func (ctx *ExecContext) numericOperand(t *Type, c Cell, at *Node) (numOperand, *Error) {
	if t == nil || t.Base != BaseNumber || t.IsArray {
		return numOperand{}, errAt(at, KindTypeMismatch, "operand must be numeric, not %s", t)
	}
	d, err := ctx.datumOf(t, c, at)
	if err != nil {
		return numOperand{}, err
	}
	if d.Tag == DFloat {
		return numOperand{isFloat: true, f: d.Float}, nil
	}
	return numOperand{i: d.Int}, nil
}

func (ctx *ExecContext) numericKid(n *Node, k int) (numOperand, *Error) {
	t, c, err := ctx.evalExpr(n.Kids[k])
	if err != nil {
		return numOperand{}, err
	}
	return ctx.numericOperand(t, c, n.Kids[k])
}

func (ctx *ExecContext) intKid(n *Node, k int) (int64, *Error) {
	no, err := ctx.numericKid(n, k)
	if err != nil {
		return 0, err
	}
	if no.isFloat {
		return 0, errAt(n.Kids[k], KindTypeMismatch, "operand must be an integer")
	}
	return no.i, nil
}

/* ─────────────────────────── binary operators ──────────────────────────── */

func (ctx *ExecContext) evalBinary(n *Node) (*Type, Cell, *Error) {
	switch n.Op {
	case OpAdd:
		// String concatenation when both operands are strings.
		lt, lc, err := ctx.evalExpr(n.Kids[0])
		if err != nil {
			return nil, nil, err
		}
		if lt != nil && lt.Base == BaseString && !lt.IsArray {
			rt, rc, err := ctx.evalExpr(n.Kids[1])
			if err != nil {
				return nil, nil, err
			}
			if rt == nil || rt.Base != BaseString || rt.IsArray {
				return nil, nil, errAt(n.Kids[1], KindTypeMismatch, "cannot concatenate %s to a string", rt)
			}
			ld, err := ctx.datumOf(lt, lc, n.Kids[0])
			if err != nil {
				return nil, nil, err
			}
			rd, err := ctx.datumOf(rt, rc, n.Kids[1])
			if err != nil {
				return nil, nil, err
			}
			return tyString, &ConstCell{D: StrDatum(ld.Str + rd.Str)}, nil
		}
		l, err := ctx.numericOperand(lt, lc, n.Kids[0])
		if err != nil {
			return nil, nil, err
		}
		r, err := ctx.numericKid(n, 1)
		if err != nil {
			return nil, nil, err
		}
		if l.isFloat || r.isFloat {
			return tyF64, &ConstCell{D: FloatDatum(l.asFloat() + r.asFloat())}, nil
		}
		return tyS32, &ConstCell{D: IntDatum(l.i + r.i)}, nil

	case OpSub, OpMul, OpDiv:
		l, err := ctx.numericKid(n, 0)
		if err != nil {
			return nil, nil, err
		}
		r, err := ctx.numericKid(n, 1)
		if err != nil {
			return nil, nil, err
		}
		if l.isFloat || r.isFloat {
			lf, rf := l.asFloat(), r.asFloat()
			var v float64
			switch n.Op {
			case OpSub:
				v = lf - rf
			case OpMul:
				v = lf * rf
			case OpDiv:
				v = lf / rf
			}
			return tyF64, &ConstCell{D: FloatDatum(v)}, nil
		}
		var v int64
		switch n.Op {
		case OpSub:
			v = l.i - r.i
		case OpMul:
			v = l.i * r.i
		case OpDiv:
			if r.i == 0 {
				return nil, nil, errAt(n, KindDivisionByZero, "division by zero")
			}
			v = l.i / r.i
		}
		return tyS32, &ConstCell{D: IntDatum(v)}, nil

	case OpMod:
		l, err := ctx.intKid(n, 0)
		if err != nil {
			return nil, nil, err
		}
		r, err := ctx.intKid(n, 1)
		if err != nil {
			return nil, nil, err
		}
		if r == 0 {
			return nil, nil, errAt(n, KindDivisionByZero, "modulo by zero")
		}
		return tyS32, &ConstCell{D: IntDatum(l % r)}, nil

	case OpShl, OpShr, OpBitAnd, OpBitXor, OpBitOr:
		l, err := ctx.intKid(n, 0)
		if err != nil {
			return nil, nil, err
		}
		r, err := ctx.intKid(n, 1)
		if err != nil {
			return nil, nil, err
		}
		var v int64
		switch n.Op {
		case OpShl, OpShr:
			if r < 0 {
				return nil, nil, errAt(n.Kids[1], KindTypeMismatch, "negative shift count")
			}
			if n.Op == OpShl {
				v = l << uint64(r)
			} else {
				v = l >> uint64(r)
			}
		case OpBitAnd:
			v = l & r
		case OpBitXor:
			v = l ^ r
		case OpBitOr:
			v = l | r
		}
		return tyS32, &ConstCell{D: IntDatum(v)}, nil

	case OpLt, OpLe, OpGt, OpGe, OpEq, OpNe:
		l, err := ctx.numericKid(n, 0)
		if err != nil {
			return nil, nil, err
		}
		r, err := ctx.numericKid(n, 1)
		if err != nil {
			return nil, nil, err
		}
		var res bool
		if l.isFloat || r.isFloat {
			lf, rf := l.asFloat(), r.asFloat()
			switch n.Op {
			case OpLt:
				res = lf < rf
			case OpLe:
				res = lf <= rf
			case OpGt:
				res = lf > rf
			case OpGe:
				res = lf >= rf
			case OpEq:
				res = lf == rf
			case OpNe:
				res = lf != rf
			}
		} else {
			switch n.Op {
			case OpLt:
				res = l.i < r.i
			case OpLe:
				res = l.i <= r.i
			case OpGt:
				res = l.i > r.i
			case OpGe:
				res = l.i >= r.i
			case OpEq:
				res = l.i == r.i
			case OpNe:
				res = l.i != r.i
			}
		}
		return tyS32, &ConstCell{D: IntDatum(boolInt(res))}, nil
	}
	return nil, nil, errAt(n, KindInternal, "unhandled binary op %d", n.Op)
}

/* ─────────────────────────── assignment & paths ────────────────────────── */

func (ctx *ExecContext) evalAssign(n *Node) (*Type, Cell, *Error) {
	lhs, rhs := n.Kids[0], n.Kids[1]
	if lhs.Op != OpRef {
		return nil, nil, errAt(lhs, KindTypeMismatch, "left side of assignment must be a variable reference")
	}
	lt, lc, err := ctx.resolvePath(lhs)
	if err != nil {
		return nil, nil, err
	}
	rt, rc, err := ctx.evalExpr(rhs)
	if err != nil {
		return nil, nil, err
	}
	if !assignable(lt, rt) {
		return nil, nil, errAt(n, KindTypeMismatch, "cannot assign %s value to %s variable", rt, lt)
	}
	d, err := ctx.datumOf(rt, rc, rhs)
	if err != nil {
		return nil, nil, err
	}
	if serr := lc.Set(d); serr != nil {
		serr.File, serr.Line = lhs.File, lhs.Line
		return nil, nil, serr
	}
	return lt, &ConstCell{D: d}, nil
}

// resolvePath resolves `NAME (.member | [index])*` to its aliased storage.
func (ctx *ExecContext) resolvePath(n *Node) (*Type, Cell, *Error) {
	t, c, ok := ctx.lookupVar(n.Name)
	if !ok {
		return nil, nil, errAt(n, KindUndefinedVariable, "undefined variable %q", n.Name)
	}
	for _, suf := range n.Kids {
		switch suf.Op {
		case OpIndexSuffix:
			if !t.IsArray {
				return nil, nil, errAt(suf, KindTypeMismatch, "cannot index non-array value of type %s", t)
			}
			ac, ok := c.(*ArrayCell)
			if !ok {
				return nil, nil, errAt(suf, KindInternal, "array-typed value is not an array cell")
			}
			it, icell, err := ctx.evalExpr(suf.Kids[0])
			if err != nil {
				return nil, nil, err
			}
			id, err := ctx.datumOf(it, icell, suf.Kids[0])
			if err != nil {
				return nil, nil, err
			}
			if id.Tag != DInt {
				return nil, nil, errAt(suf.Kids[0], KindTypeMismatch, "array index must be an integer")
			}
			if id.Int < 0 || id.Int >= int64(len(ac.Elems)) {
				return nil, nil, errAt(suf, KindOutOfRangeIndex,
					"index %d out of range (array length %d)", id.Int, len(ac.Elems))
			}
			t = t.Elem()
			c = ac.Elems[id.Int]
		case OpMemberSuffix:
			if t.Base != BaseStruct || t.IsArray {
				return nil, nil, errAt(suf, KindTypeMismatch, "cannot access member of non-struct value of type %s", t)
			}
			sc, ok := c.(*StructCell)
			if !ok {
				return nil, nil, errAt(suf, KindInternal, "struct-typed value is not a struct cell")
			}
			mt, mc, found := sc.Members.Get(suf.Name)
			if !found {
				return nil, nil, errAt(suf, KindUndefinedMember, "struct %s has no member %q", t, suf.Name)
			}
			t, c = mt, mc
		default:
			return nil, nil, errAt(suf, KindInternal, "unknown path suffix op %d", suf.Op)
		}
	}
	return t, c, nil
}

/* ─────────────────────────── function application ──────────────────────── */

func (ctx *ExecContext) evalCall(n *Node) (*Type, Cell, *Error) {
	args := make([]argValue, 0, len(n.Args))
	for _, a := range n.Args {
		t, c, err := ctx.evalExpr(a)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, argValue{typ: t, cell: c, node: a})
	}
	fn, ok := ctx.funcs[n.Name]
	if !ok {
		return nil, nil, errAt(n, KindUndefinedFunction, "undefined function %q", n.Name)
	}
	if fn.builtin != nil {
		return fn.builtin(ctx, n, args)
	}

	if len(args) != len(fn.params) {
		return nil, nil, errAt(n, KindTypeMismatch,
			"function %q expects %d argument(s), got %d", fn.name, len(fn.params), len(args))
	}
	fr := newFrame(frameFunction)
	fr.handles = fcReturn
	fr.blocks = fcBreak | fcContinue
	fr.retType = fn.ret
	for i, p := range fn.params {
		if !assignable(p.typ, args[i].typ) {
			return nil, nil, errAt(args[i].node, KindTypeMismatch,
				"argument %d of %q: cannot pass %s as %s", i+1, fn.name, args[i].typ, p.typ)
		}
		d, err := ctx.datumOf(args[i].typ, args[i].cell, args[i].node)
		if err != nil {
			return nil, nil, err
		}
		fr.vars.Add(p.name, p.typ, &VarCell{D: d})
	}

	ctx.push(fr)
	sig, err := ctx.execStmts(fn.body.Kids)
	ctx.pop()
	if err != nil {
		return nil, nil, err
	}

	switch sig.kind {
	case 0:
		if fn.ret != nil {
			return nil, nil, errAt(n, KindMissingReturn,
				"function %q must return a %s value", fn.name, fn.ret)
		}
		return nil, nil, nil
	case fcReturn:
		if fn.ret == nil {
			if sig.typ != nil {
				return nil, nil, errAt(sig.node, KindTypeMismatch,
					"function %q does not return a value", fn.name)
			}
			return nil, nil, nil
		}
		if sig.typ == nil {
			return nil, nil, errAt(sig.node, KindTypeMismatch,
				"function %q must return a %s value", fn.name, fn.ret)
		}
		if !assignable(fn.ret, sig.typ) {
			return nil, nil, errAt(sig.node, KindTypeMismatch,
				"cannot return %s from function %q returning %s", sig.typ, fn.name, fn.ret)
		}
		d, err := ctx.datumOf(sig.typ, sig.cell, sig.node)
		if err != nil {
			return nil, nil, err
		}
		return fn.ret, &ConstCell{D: d}, nil
	case fcBreak:
		return nil, nil, errAt(sig.node, KindBreakOutsideLoop, "'break' outside of a loop or switch")
	case fcContinue:
		return nil, nil, errAt(sig.node, KindContinueOutsideLoop, "'continue' outside of a loop")
	}
	return nil, nil, errAt(n, KindInternal, "unknown flow-control kind %d", sig.kind)
}

/* ─────────────────────────── built-ins ─────────────────────────────────── */

func registerBuiltins(ctx *ExecContext) {
	reg := func(name string, impl builtinImpl) {
		ctx.funcs[name] = &function{name: name, builtin: impl}
	}

	reg("BigEndian", func(ctx *ExecContext, call *Node, args []argValue) (*Type, Cell, *Error) {
		if len(args) != 0 {
			return nil, nil, errAt(call, KindTypeMismatch, "BigEndian takes no arguments")
		}
		ctx.bigEndian = true
		return nil, nil, nil
	})

	reg("LittleEndian", func(ctx *ExecContext, call *Node, args []argValue) (*Type, Cell, *Error) {
		if len(args) != 0 {
			return nil, nil, errAt(call, KindTypeMismatch, "LittleEndian takes no arguments")
		}
		ctx.bigEndian = false
		return nil, nil, nil
	})

	reg("Printf", func(ctx *ExecContext, call *Node, args []argValue) (*Type, Cell, *Error) {
		if len(args) < 1 || args[0].typ == nil || args[0].typ.Base != BaseString || args[0].typ.IsArray {
			return nil, nil, errAt(call, KindTypeMismatch, "Printf expects a format string")
		}
		fd, err := ctx.datumOf(args[0].typ, args[0].cell, args[0].node)
		if err != nil {
			return nil, nil, err
		}
		s, err := ctx.formatPrintf(call, fd.Str, args[1:])
		if err != nil {
			return nil, nil, err
		}
		ctx.host.Print(s)
		return nil, nil, nil
	})

	reg("FileSize", func(ctx *ExecContext, call *Node, args []argValue) (*Type, Cell, *Error) {
		if len(args) != 0 {
			return nil, nil, errAt(call, KindTypeMismatch, "FileSize takes no arguments")
		}
		return tyS64, &ConstCell{D: IntDatum(ctx.host.FileLength())}, nil
	})

	reg("FTell", func(ctx *ExecContext, call *Node, args []argValue) (*Type, Cell, *Error) {
		if len(args) != 0 {
			return nil, nil, errAt(call, KindTypeMismatch, "FTell takes no arguments")
		}
		return tyS64, &ConstCell{D: IntDatum(ctx.next)}, nil
	})

	reg("FEof", func(ctx *ExecContext, call *Node, args []argValue) (*Type, Cell, *Error) {
		if len(args) != 0 {
			return nil, nil, errAt(call, KindTypeMismatch, "FEof takes no arguments")
		}
		return tyS32, &ConstCell{D: IntDatum(boolInt(ctx.next >= ctx.host.FileLength()))}, nil
	})
}

// formatPrintf renders a C-style format string. Supported specifiers:
// %d, %u, %x, %X, %s, %%.
func (ctx *ExecContext) formatPrintf(call *Node, format string, args []argValue) (string, *Error) {
	var b strings.Builder
	ai := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(format) {
			return "", errAt(call, KindTypeMismatch, "incomplete format specifier")
		}
		verb := format[i]
		if verb == '%' {
			b.WriteByte('%')
			continue
		}
		if ai >= len(args) {
			return "", errAt(call, KindTypeMismatch, "not enough arguments for format %q", format)
		}
		arg := args[ai]
		ai++
		switch verb {
		case 'd', 'u', 'x', 'X':
			no, err := ctx.numericOperand(arg.typ, arg.cell, arg.node)
			if err != nil {
				return "", err
			}
			if no.isFloat {
				return "", errAt(arg.node, KindTypeMismatch, "%%%c expects an integer argument", verb)
			}
			switch verb {
			case 'd':
				b.WriteString(strconv.FormatInt(no.i, 10))
			case 'u':
				b.WriteString(strconv.FormatUint(uint64(no.i), 10))
			case 'x':
				b.WriteString(strconv.FormatUint(uint64(no.i), 16))
			case 'X':
				b.WriteString(strings.ToUpper(strconv.FormatUint(uint64(no.i), 16)))
			}
		case 's':
			if arg.typ == nil || arg.typ.Base != BaseString || arg.typ.IsArray {
				return "", errAt(arg.node, KindTypeMismatch, "%%s expects a string argument")
			}
			d, err := ctx.datumOf(arg.typ, arg.cell, arg.node)
			if err != nil {
				return "", err
			}
			b.WriteString(d.Str)
		default:
			return "", errAt(call, KindTypeMismatch, "unsupported format specifier %%%c", verb)
		}
	}
	if ai < len(args) {
		return "", errAt(call, KindTypeMismatch, "too many arguments for format %q", format)
	}
	return b.String(), nil
}
