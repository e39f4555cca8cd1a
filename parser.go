// parser.go — recursive-descent statement parser for the template language.
//
// OVERVIEW
// --------
// The parser consumes the token stream produced by the lexer (see lexer.go)
// and builds the Node tree cataloged in ast.go. Statements are parsed by
// recursive descent; **expressions are captured as flat element lists**
// (operand nodes interleaved with OpOperator symbol nodes) and compiled into
// precedence-correct trees by a post-pass (see fold.go). Parse therefore
// runs both phases and returns a fully folded AST.
//
// Grammar notes:
//   - Reserved words never match identifiers.
//   - A type mention is `unsigned NAME`, `struct NAME`, `enum NAME`, or a
//     plain identifier; resolution happens at run time.
//   - `TYPE NAME (...) {` is a function definition; `TYPE NAME (...);` is a
//     variable with struct arguments. The parser disambiguates by scanning
//     to the matching ')' and checking for '{'.
//   - `while` is lowered to `for` with only a condition.
//   - Casts `(TYPE) expr` are recognized for fixed builtin aliases (and
//     `unsigned NAME`) and discarded.
//   - Unary minus is handled at operand level; `!` and `~` are captured as
//     operator elements for the tier-1 folding pass.
//
// Every node is anchored with the (file, line) of its first token, as
// resolved by the preprocessor's line table.
package bt

import (
	"fmt"
	"strings"
)

// Parse lexes, parses, and folds a preprocessed template. The returned root
// is an OpBlock of top-level statements.
func Parse(pre *PreprocessedSource) (*Node, error) {
	lex := NewLexer(pre)
	toks, err := lex.Scan()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, perr := p.program()
	if perr != nil {
		return nil, perr
	}
	if ferr := foldTemplate(root); ferr != nil {
		return nil, ferr
	}
	return root, nil
}

/* ===========================
   PRIVATE
   =========================== */

type parser struct {
	toks []Token
	i    int
}

func (p *parser) atEnd() bool { return p.peek().Type == EOF }

func (p *parser) peek() Token {
	if p.i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i]
}

func (p *parser) peekN(n int) Token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) prev() Token { return p.toks[p.i-1] }

func (p *parser) match(tt ...TokenType) bool {
	if p.atEnd() {
		return false
	}
	for _, t := range tt {
		if p.peek().Type == t {
			p.i++
			return true
		}
	}
	return false
}

func (p *parser) need(t TokenType, msg string) (Token, *Error) {
	if p.match(t) {
		return p.prev(), nil
	}
	return Token{}, p.errHere(msg)
}

// errHere reports a parse error at the current token, including near-text.
func (p *parser) errHere(msg string) *Error {
	g := p.peek()
	return &Error{
		Kind: KindParse,
		Msg:  fmt.Sprintf("%s, near %q", msg, p.nearText()),
		File: g.File, Line: g.Line, Col: g.Col,
	}
}

// nearText joins the next few token lexemes for error context.
func (p *parser) nearText() string {
	var parts []string
	for k := 0; k < 4; k++ {
		t := p.peekN(k)
		if t.Type == EOF {
			parts = append(parts, "<eof>")
			break
		}
		parts = append(parts, t.Lexeme)
	}
	return strings.Join(parts, " ")
}

// node builds a Node anchored at tok.
func node(op Op, tok Token) *Node {
	return &Node{Op: op, File: tok.File, Line: tok.Line}
}

/* ─────────────────────────── program & statements ─────────────────────── */

func (p *parser) program() (*Node, *Error) {
	root := node(OpBlock, p.peek())
	for !p.atEnd() {
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		root.Kids = append(root.Kids, s)
	}
	return root, nil
}

func (p *parser) statement() (*Node, *Error) {
	switch p.peek().Type {
	case SEMI:
		p.i++
		return node(OpNop, p.prev()), nil
	case LCURLY:
		return p.block()
	case IF:
		return p.ifStmt()
	case FOR:
		return p.forStmt()
	case WHILE:
		return p.whileStmt()
	case SWITCH:
		return p.switchStmt()
	case RETURN:
		return p.returnStmt()
	case BREAK:
		p.i++
		n := node(OpBreak, p.prev())
		if _, err := p.need(SEMI, "expected ';' after break"); err != nil {
			return nil, err
		}
		return n, nil
	case CONTINUE:
		p.i++
		n := node(OpContinue, p.prev())
		if _, err := p.need(SEMI, "expected ';' after continue"); err != nil {
			return nil, err
		}
		return n, nil
	case LOCAL:
		return p.localDefn()
	case TYPEDEF:
		p.i++
		switch p.peek().Type {
		case STRUCT:
			return p.structDefn(true, p.prev())
		case ENUM:
			return p.enumDefn(true, p.prev())
		default:
			return p.typedefSimple(p.prev())
		}
	case STRUCT:
		return p.structOrVar()
	case ENUM:
		return p.enumOrVar()
	case UNSIGNED:
		return p.declStatement()
	case ID:
		if p.peekN(1).Type == ID {
			return p.declStatement()
		}
		return p.exprStmt()
	default:
		return p.exprStmt()
	}
}

func (p *parser) block() (*Node, *Error) {
	open, err := p.need(LCURLY, "expected '{'")
	if err != nil {
		return nil, err
	}
	b := node(OpBlock, open)
	for p.peek().Type != RCURLY {
		if p.atEnd() {
			return nil, p.errHere("expected '}'")
		}
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		b.Kids = append(b.Kids, s)
	}
	p.i++ // consume '}'
	return b, nil
}

func (p *parser) exprStmt() (*Node, *Error) {
	first := p.peek()
	e, err := p.rawExprRequired("expected statement", SEMI)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(SEMI, "expected ';' after expression"); err != nil {
		return nil, err
	}
	n := node(OpExprStmt, first)
	n.Kids = []*Node{e}
	return n, nil
}

func (p *parser) returnStmt() (*Node, *Error) {
	p.i++ // RETURN
	n := node(OpReturn, p.prev())
	if p.match(SEMI) {
		return n, nil
	}
	v, err := p.rawExprRequired("expected expression after return", SEMI)
	if err != nil {
		return nil, err
	}
	n.Init = v
	if _, err := p.need(SEMI, "expected ';' after return value"); err != nil {
		return nil, err
	}
	return n, nil
}

/* ─────────────────────────── control flow ──────────────────────────────── */

func (p *parser) ifStmt() (*Node, *Error) {
	kw, err := p.need(IF, "expected 'if'")
	if err != nil {
		return nil, err
	}
	if _, err := p.need(LROUND, "expected '(' after if"); err != nil {
		return nil, err
	}
	cond, err := p.rawExprRequired("expected if condition", RROUND)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(RROUND, "expected ')' after if condition"); err != nil {
		return nil, err
	}
	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	n := node(OpIf, kw)
	n.Cond, n.Body = cond, body
	if p.match(ELSE) {
		if p.peek().Type == IF {
			n.Else, err = p.ifStmt()
		} else {
			n.Else, err = p.statement()
		}
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (p *parser) forStmt() (*Node, *Error) {
	kw, err := p.need(FOR, "expected 'for'")
	if err != nil {
		return nil, err
	}
	if _, err := p.need(LROUND, "expected '(' after for"); err != nil {
		return nil, err
	}
	n := node(OpFor, kw)

	// INIT: empty, a local definition (consumes its ';'), or an expression.
	switch p.peek().Type {
	case SEMI:
		p.i++
	case LOCAL:
		init, err := p.localDefn()
		if err != nil {
			return nil, err
		}
		n.Init = init
	default:
		e, err := p.rawExprRequired("expected for initializer", SEMI)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(SEMI, "expected ';' after for initializer"); err != nil {
			return nil, err
		}
		init := node(OpExprStmt, kw)
		init.Kids = []*Node{e}
		n.Init = init
	}

	cond, err := p.rawExpr(SEMI)
	if err != nil {
		return nil, err
	}
	n.Cond = cond
	if _, err := p.need(SEMI, "expected ';' after for condition"); err != nil {
		return nil, err
	}

	iter, err := p.rawExpr(RROUND)
	if err != nil {
		return nil, err
	}
	n.Iter = iter
	if _, err := p.need(RROUND, "expected ')' after for clauses"); err != nil {
		return nil, err
	}

	n.Body, err = p.statement()
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (p *parser) whileStmt() (*Node, *Error) {
	kw, err := p.need(WHILE, "expected 'while'")
	if err != nil {
		return nil, err
	}
	if _, err := p.need(LROUND, "expected '(' after while"); err != nil {
		return nil, err
	}
	cond, err := p.rawExprRequired("expected while condition", RROUND)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(RROUND, "expected ')' after while condition"); err != nil {
		return nil, err
	}
	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	n := node(OpFor, kw)
	n.Cond, n.Body = cond, body
	return n, nil
}

func (p *parser) switchStmt() (*Node, *Error) {
	kw, err := p.need(SWITCH, "expected 'switch'")
	if err != nil {
		return nil, err
	}
	if _, err := p.need(LROUND, "expected '(' after switch"); err != nil {
		return nil, err
	}
	scrut, err := p.rawExprRequired("expected switch expression", RROUND)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(RROUND, "expected ')' after switch expression"); err != nil {
		return nil, err
	}
	if _, err := p.need(LCURLY, "expected '{' after switch"); err != nil {
		return nil, err
	}

	n := node(OpSwitch, kw)
	n.Cond = scrut
	for p.peek().Type != RCURLY {
		var c SwitchCase
		switch {
		case p.match(CASE):
			v, err := p.rawExprRequired("expected case value", COLON)
			if err != nil {
				return nil, err
			}
			c.Value = v
		case p.match(DEFAULT):
			c.IsDefault = true
		default:
			return nil, p.errHere("expected 'case' or 'default' in switch body")
		}
		if _, err := p.need(COLON, "expected ':' after case label"); err != nil {
			return nil, err
		}
		for {
			t := p.peek().Type
			if t == CASE || t == DEFAULT || t == RCURLY {
				break
			}
			if p.atEnd() {
				return nil, p.errHere("expected '}' to close switch")
			}
			s, err := p.statement()
			if err != nil {
				return nil, err
			}
			c.Stmts = append(c.Stmts, s)
		}
		n.Cases = append(n.Cases, c)
	}
	p.i++ // '}'
	if len(n.Cases) == 0 {
		return nil, p.errHere("switch body must contain at least one case")
	}
	return n, nil
}

/* ─────────────────────────── declarations ──────────────────────────────── */

// typeRef parses `unsigned NAME`, `struct NAME`, `enum NAME`, or NAME.
func (p *parser) typeRef() (TypeRef, *Error) {
	switch {
	case p.match(UNSIGNED):
		t, err := p.need(ID, "expected type name after 'unsigned'")
		if err != nil {
			return TypeRef{}, err
		}
		return TypeRef{Name: t.Lexeme, Unsigned: true}, nil
	case p.match(STRUCT):
		t, err := p.need(ID, "expected struct name after 'struct'")
		if err != nil {
			return TypeRef{}, err
		}
		return TypeRef{Name: t.Lexeme, Struct: true}, nil
	case p.match(ENUM):
		t, err := p.need(ID, "expected enum name after 'enum'")
		if err != nil {
			return TypeRef{}, err
		}
		return TypeRef{Name: t.Lexeme, Enum: true}, nil
	}
	t, err := p.need(ID, "expected type name")
	if err != nil {
		return TypeRef{}, err
	}
	return TypeRef{Name: t.Lexeme}, nil
}

// declStatement parses `TYPE NAME ...` — a function definition when the
// name is followed by a parenthesized list and then '{', otherwise a
// buffer-binding variable definition.
func (p *parser) declStatement() (*Node, *Error) {
	first := p.peek()
	tr, err := p.typeRef()
	if err != nil {
		return nil, err
	}
	name, err := p.need(ID, "expected name in declaration")
	if err != nil {
		return nil, err
	}
	if p.peek().Type == LROUND && p.parenThenBrace() {
		return p.funcDefn(first, tr, name)
	}
	return p.varTail(first, tr, name)
}

// parenThenBrace scans from the current '(' to its matching ')' and reports
// whether the next token is '{'.
func (p *parser) parenThenBrace() bool {
	depth := 0
	for j := p.i; j < len(p.toks); j++ {
		switch p.toks[j].Type {
		case LROUND:
			depth++
		case RROUND:
			depth--
			if depth == 0 {
				return j+1 < len(p.toks) && p.toks[j+1].Type == LCURLY
			}
		case EOF:
			return false
		}
	}
	return false
}

func (p *parser) funcDefn(first Token, ret TypeRef, name Token) (*Node, *Error) {
	if _, err := p.need(LROUND, "expected '(' in function definition"); err != nil {
		return nil, err
	}
	n := node(OpFuncDefn, first)
	n.TypeRef = &ret
	n.Name = name.Lexeme
	if p.peek().Type != RROUND {
		for {
			pt, err := p.typeRef()
			if err != nil {
				return nil, err
			}
			pn, err := p.need(ID, "expected parameter name")
			if err != nil {
				return nil, err
			}
			n.Params = append(n.Params, Param{Type: pt, Name: pn.Lexeme})
			if !p.match(COMMA) {
				break
			}
		}
	}
	if _, err := p.need(RROUND, "expected ')' after parameters"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	n.Body = body
	return n, nil
}

// varTail finishes `TYPE NAME (args)? ([len])? ;`.
func (p *parser) varTail(first Token, tr TypeRef, name Token) (*Node, *Error) {
	n := node(OpVarDefn, first)
	n.TypeRef = &tr
	n.Name = name.Lexeme
	args, alen, err := p.varSuffix()
	if err != nil {
		return nil, err
	}
	n.Args, n.ALen = args, alen
	if _, err := p.need(SEMI, "expected ';' after variable definition"); err != nil {
		return nil, err
	}
	return n, nil
}

// varSuffix parses the optional `(args)` and `[len]` of a variable.
func (p *parser) varSuffix() ([]*Node, *Node, *Error) {
	var args []*Node
	var alen *Node
	if p.match(LROUND) {
		if p.peek().Type != RROUND {
			for {
				a, err := p.rawExprRequired("expected struct argument", COMMA, RROUND)
				if err != nil {
					return nil, nil, err
				}
				args = append(args, a)
				if !p.match(COMMA) {
					break
				}
			}
		}
		if _, err := p.need(RROUND, "expected ')' after struct arguments"); err != nil {
			return nil, nil, err
		}
	}
	if p.match(LSQUARE) {
		a, err := p.rawExprRequired("expected array length", RSQUARE)
		if err != nil {
			return nil, nil, err
		}
		alen = a
		if _, err := p.need(RSQUARE, "expected ']' after array length"); err != nil {
			return nil, nil, err
		}
	}
	return args, alen, nil
}

func (p *parser) localDefn() (*Node, *Error) {
	kw, err := p.need(LOCAL, "expected 'local'")
	if err != nil {
		return nil, err
	}
	tr, err := p.typeRef()
	if err != nil {
		return nil, err
	}
	name, err := p.need(ID, "expected name in local definition")
	if err != nil {
		return nil, err
	}
	n := node(OpLocalDefn, kw)
	n.TypeRef = &tr
	n.Name = name.Lexeme
	n.Args, n.ALen, err = p.varSuffix()
	if err != nil {
		return nil, err
	}
	if p.match(ASSIGN) {
		init, err := p.rawExprRequired("expected initializer", SEMI)
		if err != nil {
			return nil, err
		}
		n.Init = init
	}
	if _, err := p.need(SEMI, "expected ';' after local definition"); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *parser) typedefSimple(kw Token) (*Node, *Error) {
	tr, err := p.typeRef()
	if err != nil {
		return nil, err
	}
	name, err := p.need(ID, "expected new type name in typedef")
	if err != nil {
		return nil, err
	}
	n := node(OpTypedef, kw)
	n.TypeRef = &tr
	n.Name = name.Lexeme
	if p.match(LSQUARE) {
		alen, err := p.rawExprRequired("expected array length", RSQUARE)
		if err != nil {
			return nil, err
		}
		n.ALen = alen
		if _, err := p.need(RSQUARE, "expected ']' after array length"); err != nil {
			return nil, err
		}
	}
	if _, err := p.need(SEMI, "expected ';' after typedef"); err != nil {
		return nil, err
	}
	return n, nil
}

/* ─────────────────────────── struct & enum ─────────────────────────────── */

// structOrVar handles a statement starting with `struct` that is not part
// of a typedef: either a definition or `struct NAME var...;`.
func (p *parser) structOrVar() (*Node, *Error) {
	next := p.peekN(1)
	if next.Type == ID {
		after := p.peekN(2)
		if after.Type != LCURLY && after.Type != LROUND {
			// `struct NAME var...;`
			first := p.peek()
			tr, err := p.typeRef()
			if err != nil {
				return nil, err
			}
			name, err := p.need(ID, "expected variable name")
			if err != nil {
				return nil, err
			}
			return p.varTail(first, tr, name)
		}
	}
	return p.structDefn(false, p.peek())
}

// structDefn parses `(typedef)? struct (NAME)? (params)? { body }
// (NAME (args)? ([len])?)? ;` with the typedef keyword already consumed.
func (p *parser) structDefn(typedef bool, first Token) (*Node, *Error) {
	if _, err := p.need(STRUCT, "expected 'struct'"); err != nil {
		return nil, err
	}
	n := node(OpStructDefn, first)
	n.Typedef = typedef
	if p.match(ID) {
		n.Name = p.prev().Lexeme
	}
	if p.match(LROUND) {
		if p.peek().Type != RROUND {
			for {
				pt, err := p.typeRef()
				if err != nil {
					return nil, err
				}
				pn, err := p.need(ID, "expected parameter name")
				if err != nil {
					return nil, err
				}
				n.Params = append(n.Params, Param{Type: pt, Name: pn.Lexeme})
				if !p.match(COMMA) {
					break
				}
			}
		}
		if _, err := p.need(RROUND, "expected ')' after struct parameters"); err != nil {
			return nil, err
		}
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	n.Body = body
	if p.match(ID) {
		n.VarName = p.prev().Lexeme
		n.Args, n.ALen, err = p.varSuffix()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.need(SEMI, "expected ';' after struct definition"); err != nil {
		return nil, err
	}
	return n, nil
}

// enumOrVar handles a statement starting with `enum` that is not part of a
// typedef.
func (p *parser) enumOrVar() (*Node, *Error) {
	next := p.peekN(1)
	if next.Type == ID && p.peekN(2).Type != LCURLY {
		// `enum NAME var...;`
		first := p.peek()
		tr, err := p.typeRef()
		if err != nil {
			return nil, err
		}
		name, err := p.need(ID, "expected variable name")
		if err != nil {
			return nil, err
		}
		return p.varTail(first, tr, name)
	}
	return p.enumDefn(false, p.peek())
}

// enumDefn parses `(typedef)? enum (<TYPE>)? (NAME)? { MEMBER (= expr)?,
// ... } (NAME)? ;` with the typedef keyword already consumed.
func (p *parser) enumDefn(typedef bool, first Token) (*Node, *Error) {
	if _, err := p.need(ENUM, "expected 'enum'"); err != nil {
		return nil, err
	}
	n := node(OpEnumDefn, first)
	n.Typedef = typedef
	if p.match(LESS) {
		tr, err := p.typeRef()
		if err != nil {
			return nil, err
		}
		n.TypeRef = &tr
		if _, err := p.need(GREATER, "expected '>' after enum base type"); err != nil {
			return nil, err
		}
	}
	if p.match(ID) {
		n.Name = p.prev().Lexeme
	}
	if _, err := p.need(LCURLY, "expected '{' in enum definition"); err != nil {
		return nil, err
	}
	for p.peek().Type != RCURLY {
		mname, err := p.need(ID, "expected enum member name")
		if err != nil {
			return nil, err
		}
		m := EnumMember{Name: mname.Lexeme}
		if p.match(ASSIGN) {
			v, err := p.rawExprRequired("expected enum member value", COMMA, RCURLY)
			if err != nil {
				return nil, err
			}
			m.Value = v
		}
		n.Members = append(n.Members, m)
		if !p.match(COMMA) {
			break
		}
	}
	if _, err := p.need(RCURLY, "expected '}' to close enum"); err != nil {
		return nil, err
	}
	if len(n.Members) == 0 {
		return nil, p.errHere("enum must declare at least one member")
	}
	if p.match(ID) {
		n.VarName = p.prev().Lexeme
		var err *Error
		_, n.ALen, err = p.arrayOnlySuffix()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.need(SEMI, "expected ';' after enum definition"); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *parser) arrayOnlySuffix() ([]*Node, *Node, *Error) {
	if !p.match(LSQUARE) {
		return nil, nil, nil
	}
	a, err := p.rawExprRequired("expected array length", RSQUARE)
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.need(RSQUARE, "expected ']' after array length"); err != nil {
		return nil, nil, err
	}
	return nil, a, nil
}

/* ─────────────────────────── expression capture ────────────────────────── */

// binarySymbols maps binary operator tokens to their folding symbol.
var binarySymbols = map[TokenType]string{
	PLUS: "+", MINUS: "-", MULT: "*", DIV: "/", MOD: "%",
	SHL: "<<", SHR: ">>",
	LESS: "<", LESS_EQ: "<=", GREATER: ">", GREATER_EQ: ">=",
	EQ: "==", NEQ: "!=",
	AMP: "&", CARET: "^", PIPE: "|",
	LOG_AND: "&&", LOG_OR: "||",
	ASSIGN: "=",
}

func tokenIn(t TokenType, set []TokenType) bool {
	for _, s := range set {
		if t == s {
			return true
		}
	}
	return false
}

// rawExpr captures a flat expression element list until one of the stop
// tokens appears where an operand or operator is expected. The stop token is
// not consumed. Returns nil for an empty expression.
func (p *parser) rawExpr(stops ...TokenType) (*Node, *Error) {
	first := p.peek()
	raw := node(OpRawExpr, first)
	expectOperand := true

	for {
		t := p.peek()
		if expectOperand {
			if len(raw.Kids) == 0 && tokenIn(t.Type, stops) {
				return nil, nil // empty expression
			}
			if t.Type == BANG || t.Type == TILDE {
				opn := node(OpOperator, t)
				opn.Name = t.Lexeme
				raw.Kids = append(raw.Kids, opn)
				p.i++
				continue
			}
			operand, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			raw.Kids = append(raw.Kids, operand)
			expectOperand = false
			continue
		}
		if tokenIn(t.Type, stops) {
			return raw, nil
		}
		if sym, ok := binarySymbols[t.Type]; ok {
			opn := node(OpOperator, t)
			opn.Name = sym
			raw.Kids = append(raw.Kids, opn)
			p.i++
			expectOperand = true
			continue
		}
		return nil, p.errHere(fmt.Sprintf("unexpected token %q in expression", t.Lexeme))
	}
}

// rawExprRequired is rawExpr that rejects emptiness.
func (p *parser) rawExprRequired(msg string, stops ...TokenType) (*Node, *Error) {
	e, err := p.rawExpr(stops...)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, p.errHere(msg)
	}
	return e, nil
}

// parseOperand parses one operand: a literal, a path reference, a call, a
// parenthesized sub-expression, a discarded cast, or a unary minus applied
// to the following operand.
func (p *parser) parseOperand() (*Node, *Error) {
	t := p.peek()
	switch t.Type {
	case MINUS:
		p.i++
		kid, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		n := node(OpNeg, t)
		n.Kids = []*Node{kid}
		return n, nil

	case INTEGER:
		p.i++
		n := node(OpNum, t)
		n.Num = t.Num
		return n, nil

	case STRING:
		p.i++
		n := node(OpStr, t)
		n.Str = t.Str
		return n, nil

	case LROUND:
		if p.castAhead() {
			p.skipCast()
			return p.parseOperand()
		}
		p.i++
		inner, err := p.rawExprRequired("expected expression after '('", RROUND)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(RROUND, "expected ')'"); err != nil {
			return nil, err
		}
		return inner, nil

	case ID:
		p.i++
		if p.peek().Type == LROUND {
			return p.callTail(t)
		}
		return p.pathTail(t)
	}
	return nil, p.errHere(fmt.Sprintf("expected expression, got %q", t.Lexeme))
}

// castAhead reports whether the '(' at the cursor opens a discarded cast:
// `( unsigned NAME )` or `( ALIAS )` for a fixed builtin alias.
func (p *parser) castAhead() bool {
	if p.peekN(1).Type == UNSIGNED {
		return p.peekN(2).Type == ID && p.peekN(3).Type == RROUND
	}
	if p.peekN(1).Type == ID && isBuiltinAlias(p.peekN(1).Lexeme) {
		return p.peekN(2).Type == RROUND
	}
	return false
}

func (p *parser) skipCast() {
	p.i++ // '('
	if p.peek().Type == UNSIGNED {
		p.i++
	}
	p.i++ // type name
	p.i++ // ')'
}

// callTail parses `NAME ( args )` with NAME already consumed.
func (p *parser) callTail(name Token) (*Node, *Error) {
	p.i++ // '('
	n := node(OpCall, name)
	n.Name = name.Lexeme
	if p.peek().Type != RROUND {
		for {
			a, err := p.rawExprRequired("expected call argument", COMMA, RROUND)
			if err != nil {
				return nil, err
			}
			n.Args = append(n.Args, a)
			if !p.match(COMMA) {
				break
			}
		}
	}
	if _, err := p.need(RROUND, "expected ')' after call arguments"); err != nil {
		return nil, err
	}
	return n, nil
}

// pathTail parses `NAME (.NAME | [EXPR])*` with NAME already consumed.
func (p *parser) pathTail(head Token) (*Node, *Error) {
	n := node(OpRef, head)
	n.Name = head.Lexeme
	for {
		switch p.peek().Type {
		case PERIOD:
			p.i++
			m, err := p.need(ID, "expected member name after '.'")
			if err != nil {
				return nil, err
			}
			suf := node(OpMemberSuffix, m)
			suf.Name = m.Lexeme
			n.Kids = append(n.Kids, suf)
		case LSQUARE:
			open := p.peek()
			p.i++
			idx, err := p.rawExprRequired("expected index expression", RSQUARE)
			if err != nil {
				return nil, err
			}
			if _, err := p.need(RSQUARE, "expected ']' after index"); err != nil {
				return nil, err
			}
			suf := node(OpIndexSuffix, open)
			suf.Kids = []*Node{idx}
			n.Kids = append(n.Kids, suf)
		default:
			return n, nil
		}
	}
}
