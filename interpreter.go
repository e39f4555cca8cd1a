// interpreter.go — PUBLIC API SURFACE for the template engine.
//
// The pipeline is: Preprocess (include expansion + line table) → Parse
// (statements + precedence folding) → Run (tree-walking evaluation against
// a Host). The facade here wires the stages; the evaluator lives in
// interpreter_exec.go (statements, declarations, control flow) and
// interpreter_ops.go (expressions, paths, built-ins).
//
// Executing a template walks a virtual cursor forward through the host's
// buffer: every buffer-binding declaration binds the next N bytes to a
// named variable and reports the range to the host as a typed-data
// annotation plus a named comment. The interpreter never mutates the
// buffer.
//
// All failures are *Error values (errors.go) carrying the original
// (file, line) resolved across includes. Pass the PreprocessedSource to
// WrapErrorWithSource for a caret-annotated rendering.
package bt

// Version of the template engine.
const Version = "1.2.0"

// Interpreter executes templates against a Host.
type Interpreter struct {
	host Host
}

// NewInterpreter returns an interpreter bound to the given host.
func NewInterpreter(host Host) *Interpreter {
	return &Interpreter{host: host}
}

// ExecuteFile preprocesses, parses, and runs a template file from disk.
func (ip *Interpreter) ExecuteFile(path string) error {
	pre, err := Preprocess(path)
	if err != nil {
		return err
	}
	return ip.ExecuteTemplate(pre)
}

// ExecuteSource parses and runs in-memory template source. Includes are
// resolved on the local filesystem.
func (ip *Interpreter) ExecuteSource(name, src string) error {
	pre, err := PreprocessString(name, src, FileResolver)
	if err != nil {
		return err
	}
	return ip.ExecuteTemplate(pre)
}

// ExecuteTemplate parses and runs an already-preprocessed template.
func (ip *Interpreter) ExecuteTemplate(pre *PreprocessedSource) error {
	root, err := Parse(pre)
	if err != nil {
		return err
	}
	return ip.Run(root)
}

// Run executes a parsed template. The cursor starts at offset zero and the
// endian flag at little-endian on every run.
func (ip *Interpreter) Run(root *Node) error {
	ctx := newExecContext(ip.host)
	sig, err := ctx.execStmts(root.Kids)
	if err != nil {
		return err
	}
	if sig.kind != 0 {
		return escapeError(sig)
	}
	return nil
}

// escapeError reports a flow-control sentinel that escaped every frame.
func escapeError(sig flowSignal) *Error {
	switch sig.kind {
	case fcReturn:
		return errAt(sig.node, KindReturnOutsideFunction, "'return' outside of a function")
	case fcBreak:
		return errAt(sig.node, KindBreakOutsideLoop, "'break' outside of a loop or switch")
	case fcContinue:
		return errAt(sig.node, KindContinueOutsideLoop, "'continue' outside of a loop")
	}
	return errAt(sig.node, KindInternal, "unknown flow-control kind %d", sig.kind)
}
