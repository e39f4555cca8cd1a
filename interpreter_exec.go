// interpreter_exec.go — PRIVATE: statement evaluation, declarations, and
// control flow.
//
// Statement evaluation returns a flowSignal sentinel rather than threading
// flow control through the error machinery: the zero signal is normal
// completion; fcReturn/fcBreak/fcContinue propagate upward until a frame
// handles them (function calls handle return; loops handle break and
// continue; switches handle break and pass continue on to the enclosing
// loop). A sentinel reaching a frame that blocks it, or escaping
// the whole stack, surfaces the corresponding *OutsideFunction/*OutsideLoop
// error.
//
// Buffer binding (variable declaration at template scope) is the heart of
// the engine: a primitive declaration creates a file-backed cell at the
// cursor, advances the cursor, and reports the range to the host; a struct
// declaration pushes a struct frame, runs the struct body (each member
// declaration binding and advancing in turn), and bundles the collected
// member mapping into a struct value.
package bt

import "fmt"

func (ctx *ExecContext) execStmts(list []*Node) (flowSignal, *Error) {
	for _, s := range list {
		sig, err := ctx.execStmt(s)
		if err != nil {
			return flowSignal{}, err
		}
		if sig.kind != 0 {
			return sig, nil
		}
	}
	return flowSignal{}, nil
}

func (ctx *ExecContext) execStmt(n *Node) (flowSignal, *Error) {
	if err := ctx.yield(n); err != nil {
		return flowSignal{}, err
	}
	switch n.Op {
	case OpNop:
		return flowSignal{}, nil
	case OpBlock:
		ctx.push(newFrame(frameScope))
		sig, err := ctx.execStmts(n.Kids)
		ctx.pop()
		return sig, err
	case OpVarDefn:
		return flowSignal{}, ctx.execVarDefn(n)
	case OpLocalDefn:
		return flowSignal{}, ctx.execLocalDefn(n)
	case OpStructDefn:
		return flowSignal{}, ctx.execStructDefn(n)
	case OpEnumDefn:
		return flowSignal{}, ctx.execEnumDefn(n)
	case OpTypedef:
		return flowSignal{}, ctx.execTypedef(n)
	case OpFuncDefn:
		return flowSignal{}, ctx.execFuncDefn(n)
	case OpIf:
		return ctx.execIf(n)
	case OpFor:
		return ctx.execFor(n)
	case OpSwitch:
		return ctx.execSwitch(n)
	case OpReturn:
		sig := flowSignal{kind: fcReturn, node: n}
		if n.Init != nil {
			t, c, err := ctx.evalExpr(n.Init)
			if err != nil {
				return flowSignal{}, err
			}
			sig.typ, sig.cell = t, c
		}
		return sig, nil
	case OpBreak:
		return flowSignal{kind: fcBreak, node: n}, nil
	case OpContinue:
		return flowSignal{kind: fcContinue, node: n}, nil
	case OpExprStmt:
		_, _, err := ctx.evalExpr(n.Kids[0])
		return flowSignal{}, err
	}
	return flowSignal{}, errAt(n, KindInternal, "unhandled statement op %d", n.Op)
}

/* ─────────────────────────── declarations ──────────────────────────────── */

func (ctx *ExecContext) execVarDefn(n *Node) *Error {
	t, err := ctx.findType(n.TypeRef, n)
	if err != nil {
		return err
	}
	return ctx.defineVar(n, t, n.Name, n.Args, n.ALen)
}

// defineVar binds a buffer variable named name of type t and registers it in
// the proper destination: the innermost struct frame's locals and member
// mapping, or the globals table at template scope.
func (ctx *ExecContext) defineVar(n *Node, t *Type, name string, args []*Node, alen *Node) *Error {
	sf, err := ctx.declFrame(n)
	if err != nil {
		return err
	}
	if sf != nil {
		if sf.vars.Has(name) || sf.members.Has(name) {
			return errAt(n, KindRedefinedVariable, "variable %q is already defined", name)
		}
	} else if ctx.globals.Has(name) {
		return errAt(n, KindRedefinedVariable, "variable %q is already defined", name)
	}

	typ, cell, err := ctx.bindVariable(n, t, name, args, alen)
	if err != nil {
		return err
	}
	if sf != nil {
		sf.vars.Add(name, typ, cell)
		sf.members.Add(name, typ, cell)
	} else {
		ctx.globals.Add(name, typ, cell)
	}
	return nil
}

// bindVariable binds one variable (scalar or array) at the cursor.
func (ctx *ExecContext) bindVariable(n *Node, t *Type, name string, args []*Node, alen *Node) (*Type, Cell, *Error) {
	var count int64
	isArray := false
	switch {
	case alen != nil:
		if t.IsArray {
			return nil, nil, errAt(n, KindTypeMismatch, "%q is already an array type", t)
		}
		c, err := ctx.evalArrayLen(alen)
		if err != nil {
			return nil, nil, err
		}
		count, isArray = c, true
	case t.IsArray:
		count, isArray = t.ArrayLen, true
		t = t.Elem()
	}

	if !isArray {
		cell, err := ctx.bindOne(n, t, name, args)
		if err != nil {
			return nil, nil, err
		}
		return t, cell, nil
	}

	elems := make([]Cell, 0, count)
	for i := int64(0); i < count; i++ {
		cell, err := ctx.bindOne(n, t, fmt.Sprintf("%s[%d]", name, i), args)
		if err != nil {
			return nil, nil, err
		}
		elems = append(elems, cell)
	}
	return t.ArrayOf(count), &ArrayCell{Elems: elems}, nil
}

func (ctx *ExecContext) evalArrayLen(alen *Node) (int64, *Error) {
	t, c, err := ctx.evalExpr(alen)
	if err != nil {
		return 0, err
	}
	d, err := ctx.datumOf(t, c, alen)
	if err != nil {
		return 0, err
	}
	if d.Tag != DInt {
		return 0, errAt(alen, KindTypeMismatch, "array length must be an integer")
	}
	if d.Int < 0 {
		return 0, errAt(alen, KindTypeMismatch, "array length must be non-negative")
	}
	return d.Int, nil
}

// bindOne binds a single scalar or struct value at the cursor and emits the
// host annotations. Structs produce neither a data-type nor a comment call
// themselves; their members do.
func (ctx *ExecContext) bindOne(n *Node, t *Type, display string, args []*Node) (Cell, *Error) {
	switch t.Base {
	case BaseString:
		return nil, errAt(n, KindTypeMismatch, "a string variable cannot be bound to the buffer")

	case BaseNumber:
		if len(args) > 0 {
			return nil, errAt(n, KindTypeMismatch, "arguments are only valid for struct types")
		}
		off := ctx.next
		length := int64(t.Length)
		cell := &FileCell{
			Host: ctx.host, Off: off, Length: length,
			Signed: t.Signed, Float: t.Float, Big: ctx.bigEndian,
		}
		ctx.next += length
		if code := t.EndianCode(ctx.bigEndian); code != "" {
			ctx.host.SetDataType(off, length, code)
		}
		ctx.host.SetComment(off, length, display)
		return cell, nil

	case BaseStruct:
		if len(args) != len(t.Params) {
			return nil, errAt(n, KindTypeMismatch,
				"struct %s expects %d argument(s), got %d", t, len(t.Params), len(args))
		}
		fr := newFrame(frameStruct)
		fr.blocks = fcReturn | fcBreak | fcContinue
		fr.members = NewMemberMap()
		for i, a := range args {
			at, ac, err := ctx.evalExpr(a)
			if err != nil {
				return nil, err
			}
			p := t.Params[i]
			if !assignable(p.Type, at) {
				return nil, errAt(a, KindTypeMismatch,
					"argument %d of struct %s: cannot pass %s as %s", i+1, t, at, p.Type)
			}
			d, err := ctx.datumOf(at, ac, a)
			if err != nil {
				return nil, err
			}
			fr.vars.Add(p.Name, p.Type, &ConstCell{D: d})
		}
		ctx.push(fr)
		sig, err := ctx.execStmts(t.Body.Kids)
		ctx.pop()
		if err != nil {
			return nil, err
		}
		if sig.kind != 0 {
			return nil, escapeError(sig)
		}
		return &StructCell{Members: fr.members}, nil
	}
	return nil, errAt(n, KindInternal, "unknown type base %d", t.Base)
}

func (ctx *ExecContext) execLocalDefn(n *Node) *Error {
	t, err := ctx.findType(n.TypeRef, n)
	if err != nil {
		return err
	}
	if t.Base == BaseStruct {
		return errAt(n, KindTypeMismatch, "local variables must be primitive or string, not struct %s", t)
	}
	fr := ctx.top()
	if fr.vars.Has(n.Name) {
		return errAt(n, KindRedefinedVariable, "variable %q is already defined", n.Name)
	}

	if n.ALen != nil || t.IsArray {
		if n.Init != nil {
			return errAt(n, KindTypeMismatch, "array locals cannot take an initializer")
		}
		count := t.ArrayLen
		elem := t.Elem()
		if n.ALen != nil {
			if t.IsArray {
				return errAt(n, KindTypeMismatch, "%q is already an array type", t)
			}
			c, err := ctx.evalArrayLen(n.ALen)
			if err != nil {
				return err
			}
			count, elem = c, t
		}
		elems := make([]Cell, 0, count)
		for i := int64(0); i < count; i++ {
			elems = append(elems, &VarCell{D: zeroDatum(elem)})
		}
		fr.vars.Add(n.Name, elem.ArrayOf(count), &ArrayCell{Elems: elems})
		return nil
	}

	d := zeroDatum(t)
	if n.Init != nil {
		it, ic, err := ctx.evalExpr(n.Init)
		if err != nil {
			return err
		}
		if !assignable(t, it) {
			return errAt(n.Init, KindTypeMismatch, "cannot initialize %s local with %s value", t, it)
		}
		d, err = ctx.datumOf(it, ic, n.Init)
		if err != nil {
			return err
		}
	}
	fr.vars.Add(n.Name, t, &VarCell{D: d})
	return nil
}

func (ctx *ExecContext) execStructDefn(n *Node) *Error {
	params := make([]StructParam, 0, len(n.Params))
	for _, p := range n.Params {
		pt, err := ctx.findType(&p.Type, n)
		if err != nil {
			return err
		}
		params = append(params, StructParam{Type: pt, Name: p.Name})
	}
	t := &Type{Base: BaseStruct, Name: n.Name, Params: params, Body: n.Body}

	if n.Name != "" {
		if err := ctx.defineType("struct "+n.Name, t, n); err != nil {
			return err
		}
		if n.Typedef {
			if err := ctx.defineType(n.Name, t, n); err != nil {
				return err
			}
		}
	}
	if n.VarName != "" {
		return ctx.defineVar(n, t, n.VarName, n.Args, n.ALen)
	}
	return nil
}

func (ctx *ExecContext) execEnumDefn(n *Node) *Error {
	under := tyS32
	if n.TypeRef != nil {
		u, err := ctx.findType(n.TypeRef, n)
		if err != nil {
			return err
		}
		if u.Base != BaseNumber || u.IsArray || u.Float {
			return errAt(n, KindTypeMismatch, "enum base type must be an integer primitive, not %s", u)
		}
		under = u
	}
	t := *under
	if n.Name != "" {
		t.Name = n.Name
	}

	if n.Name != "" {
		if err := ctx.defineType("enum "+n.Name, &t, n); err != nil {
			return err
		}
		if n.Typedef {
			if err := ctx.defineType(n.Name, &t, n); err != nil {
				return err
			}
		}
	}

	// Members become integer constants in the scope of the definition.
	dest := ctx.typeFrame().vars
	if ctx.typeFrame().kind == frameBase {
		dest = ctx.globals
	}
	next := int64(0)
	for _, m := range n.Members {
		v := next
		if m.Value != nil {
			vt, vc, err := ctx.evalExpr(m.Value)
			if err != nil {
				return err
			}
			d, err := ctx.datumOf(vt, vc, m.Value)
			if err != nil {
				return err
			}
			if d.Tag != DInt {
				return errAt(m.Value, KindTypeMismatch, "enum member value must be an integer")
			}
			v = d.Int
		}
		if !dest.Add(m.Name, &t, &ConstCell{D: IntDatum(v)}) {
			return errAt(n, KindRedefinedVariable, "enum member %q is already defined", m.Name)
		}
		next = v + 1
	}

	if n.VarName != "" {
		return ctx.defineVar(n, &t, n.VarName, nil, n.ALen)
	}
	return nil
}

func (ctx *ExecContext) execTypedef(n *Node) *Error {
	src, err := ctx.findType(n.TypeRef, n)
	if err != nil {
		return err
	}
	t := *src
	t.Name = n.Name
	if n.ALen != nil {
		if src.IsArray {
			return errAt(n, KindTypeMismatch, "%q is already an array type", src)
		}
		count, err := ctx.evalArrayLen(n.ALen)
		if err != nil {
			return err
		}
		t.IsArray = true
		t.ArrayLen = count
	}
	return ctx.defineType(n.Name, &t, n)
}

func (ctx *ExecContext) execFuncDefn(n *Node) *Error {
	if _, dup := ctx.funcs[n.Name]; dup {
		return errAt(n, KindRedefinedFunction, "function %q is already defined", n.Name)
	}
	var ret *Type
	tr := n.TypeRef
	if tr.Name != "void" || tr.Unsigned || tr.Struct || tr.Enum {
		var err *Error
		ret, err = ctx.findType(tr, n)
		if err != nil {
			return err
		}
	}
	params := make([]funcParam, 0, len(n.Params))
	for _, p := range n.Params {
		pt, err := ctx.findType(&p.Type, n)
		if err != nil {
			return err
		}
		params = append(params, funcParam{typ: pt, name: p.Name})
	}
	ctx.funcs[n.Name] = &function{name: n.Name, ret: ret, params: params, body: n.Body}
	return nil
}

/* ─────────────────────────── control flow ──────────────────────────────── */

func (ctx *ExecContext) execIf(n *Node) (flowSignal, *Error) {
	ok, err := ctx.evalCond(n.Cond)
	if err != nil {
		return flowSignal{}, err
	}
	if ok {
		return ctx.execStmt(n.Body)
	}
	if n.Else != nil {
		return ctx.execStmt(n.Else)
	}
	return flowSignal{}, nil
}

func (ctx *ExecContext) execFor(n *Node) (flowSignal, *Error) {
	ctx.push(newFrame(frameScope))
	defer ctx.pop()

	if n.Init != nil {
		if sig, err := ctx.execStmt(n.Init); err != nil || sig.kind != 0 {
			return sig, err
		}
	}
	for {
		if n.Cond != nil {
			ok, err := ctx.evalCond(n.Cond)
			if err != nil {
				return flowSignal{}, err
			}
			if !ok {
				break
			}
		}
		sig, err := ctx.execStmt(n.Body)
		if err != nil {
			return flowSignal{}, err
		}
		switch sig.kind {
		case fcBreak:
			return flowSignal{}, nil
		case fcReturn:
			return sig, nil
		}
		// normal completion or continue: run the iterator
		if n.Iter != nil {
			if _, _, err := ctx.evalExpr(n.Iter); err != nil {
				return flowSignal{}, err
			}
		}
	}
	return flowSignal{}, nil
}

func (ctx *ExecContext) execSwitch(n *Node) (flowSignal, *Error) {
	st, sc, err := ctx.evalExpr(n.Cond)
	if err != nil {
		return flowSignal{}, err
	}
	if st == nil || st.Base != BaseNumber || st.IsArray {
		return flowSignal{}, errAt(n.Cond, KindTypeMismatch, "switch expression must be numeric")
	}
	sd, err := ctx.datumOf(st, sc, n.Cond)
	if err != nil {
		return flowSignal{}, err
	}

	match := -1
	defaultIdx := -1
	for i := range n.Cases {
		c := &n.Cases[i]
		if c.IsDefault {
			if defaultIdx < 0 {
				defaultIdx = i
			}
			continue
		}
		ct, cc, err := ctx.evalExpr(c.Value)
		if err != nil {
			return flowSignal{}, err
		}
		if ct == nil || ct.Base != BaseNumber || ct.IsArray {
			return flowSignal{}, errAt(c.Value, KindTypeMismatch, "case value must be numeric")
		}
		cd, err := ctx.datumOf(ct, cc, c.Value)
		if err != nil {
			return flowSignal{}, err
		}
		if numEqual(sd, cd) {
			match = i
			break
		}
	}
	if match < 0 {
		match = defaultIdx
	}
	if match < 0 {
		return flowSignal{}, nil
	}

	// Fall through from the matching arm until a break or the closing brace.
	for i := match; i < len(n.Cases); i++ {
		for _, s := range n.Cases[i].Stmts {
			sig, err := ctx.execStmt(s)
			if err != nil {
				return flowSignal{}, err
			}
			switch sig.kind {
			case fcBreak:
				return flowSignal{}, nil
			case fcReturn, fcContinue:
				return sig, nil
			}
		}
	}
	return flowSignal{}, nil
}

func numEqual(a, b Datum) bool {
	if a.Tag == DFloat || b.Tag == DFloat {
		return datumFloat(a) == datumFloat(b)
	}
	return a.Int == b.Int
}

func datumFloat(d Datum) float64 {
	if d.Tag == DFloat {
		return d.Float
	}
	return float64(d.Int)
}
