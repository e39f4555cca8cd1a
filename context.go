// context.go — the execution context: frame stack, globals, functions,
// cursor, endianness, and the yield hook.
//
// Name lookup walks frames innermost-first and stops at (does not penetrate)
// the first function frame, then falls through to the globals table:
// function bodies see their parameters and globals, never lexically
// enclosing template declarations. Type lookup walks all frames, then the
// fixed primitive alias table.
package bt

// flowMask is a bitset over the three flow-control kinds.
type flowMask uint8

const (
	fcReturn flowMask = 1 << iota
	fcBreak
	fcContinue
)

type frameKind int

const (
	frameBase frameKind = iota
	frameStruct
	frameFunction
	frameScope
)

type frame struct {
	kind     frameKind
	vars     *MemberMap
	varTypes map[string]*Type
	handles  flowMask
	blocks   flowMask

	retType *Type      // function frames: declared return type (nil = void)
	members *MemberMap // struct frames: the member mapping being populated
}

func newFrame(kind frameKind) *frame {
	return &frame{
		kind:     kind,
		vars:     NewMemberMap(),
		varTypes: map[string]*Type{},
	}
}

// flowSignal is the sentinel result of statement evaluation. The zero value
// means normal completion.
type flowSignal struct {
	kind flowMask // 0, fcReturn, fcBreak or fcContinue
	typ  *Type    // return payload type (nil = void)
	cell Cell     // return payload
	node *Node    // the statement that raised the signal
}

// ExecContext holds all interpreter state for one template invocation.
type ExecContext struct {
	frames    []*frame
	globals   *MemberMap
	funcs     map[string]*function
	next      int64 // cursor: next byte offset to bind
	bigEndian bool
	host      Host

	yieldCount uint64
}

func newExecContext(host Host) *ExecContext {
	ctx := &ExecContext{
		globals: NewMemberMap(),
		funcs:   map[string]*function{},
		host:    host,
	}
	ctx.frames = append(ctx.frames, newFrame(frameBase))
	registerBuiltins(ctx)
	return ctx
}

func (ctx *ExecContext) top() *frame { return ctx.frames[len(ctx.frames)-1] }

func (ctx *ExecContext) push(f *frame) { ctx.frames = append(ctx.frames, f) }
func (ctx *ExecContext) pop()          { ctx.frames = ctx.frames[:len(ctx.frames)-1] }

// lookupVar resolves a head name: innermost frame outwards, stopping at the
// first function frame, then the globals table.
func (ctx *ExecContext) lookupVar(name string) (*Type, Cell, bool) {
	for i := len(ctx.frames) - 1; i >= 0; i-- {
		f := ctx.frames[i]
		if t, c, ok := f.vars.Get(name); ok {
			return t, c, true
		}
		if f.kind == frameFunction {
			break
		}
	}
	t, c, ok := ctx.globals.Get(name)
	return t, c, ok
}

// declFrame returns the frame that receives a buffer-binding declaration:
// the innermost struct frame, nil for template scope (globals), or an error
// when the declaration sits inside a function body.
func (ctx *ExecContext) declFrame(n *Node) (*frame, *Error) {
	for i := len(ctx.frames) - 1; i >= 0; i-- {
		switch ctx.frames[i].kind {
		case frameStruct:
			return ctx.frames[i], nil
		case frameFunction:
			return nil, errAt(n, KindGlobalInFunctionBody,
				"variables may not be declared inside a function body")
		}
	}
	return nil, nil
}

// typeFrame returns the frame that receives a type definition: the innermost
// non-scope frame (base frame at template scope).
func (ctx *ExecContext) typeFrame() *frame {
	for i := len(ctx.frames) - 1; i >= 0; i-- {
		if ctx.frames[i].kind != frameScope {
			return ctx.frames[i]
		}
	}
	return ctx.frames[0]
}

// findType resolves a type mention against the frame stack, then the fixed
// primitive alias table.
func (ctx *ExecContext) findType(ref *TypeRef, n *Node) (*Type, *Error) {
	key := ref.Name
	switch {
	case ref.Struct:
		key = "struct " + ref.Name
	case ref.Enum:
		key = "enum " + ref.Name
	}

	var t *Type
	for i := len(ctx.frames) - 1; i >= 0 && t == nil; i-- {
		t = ctx.frames[i].varTypes[key]
	}
	if t == nil && !ref.Struct && !ref.Enum {
		t = primitiveTypes[key]
	}
	if t == nil {
		return nil, errAt(n, KindUndefinedType, "undefined type %q", typeRefString(ref))
	}
	if ref.Unsigned {
		u := unsignedTwin(t)
		if u == nil {
			return nil, errAt(n, KindUndefinedType, "type %q has no unsigned variant", ref.Name)
		}
		return u, nil
	}
	return t, nil
}

// defineType registers a type in the innermost non-scope frame.
func (ctx *ExecContext) defineType(key string, t *Type, n *Node) *Error {
	f := ctx.typeFrame()
	if _, dup := f.varTypes[key]; dup {
		return errAt(n, KindRedefinedType, "type %q is already defined", key)
	}
	f.varTypes[key] = t
	return nil
}

func typeRefString(ref *TypeRef) string {
	switch {
	case ref.Unsigned:
		return "unsigned " + ref.Name
	case ref.Struct:
		return "struct " + ref.Name
	case ref.Enum:
		return "enum " + ref.Name
	}
	return ref.Name
}

// yield is called once per executed statement. The host may abort the run.
func (ctx *ExecContext) yield(n *Node) *Error {
	ctx.yieldCount++
	err := ctx.host.Yield()
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		if e.File == "" && n != nil {
			e.File, e.Line = n.File, n.Line
		}
		return e
	}
	return errAt(n, KindTemplateAborted, "%s", err.Error())
}
