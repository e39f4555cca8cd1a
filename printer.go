// printer.go — renders a folded AST back to template source.
//
// The output is deterministic and reparses to a structurally identical tree:
// expressions are fully parenthesized so no precedence information is lost,
// and `for` loops carrying only a condition render as `while`. That gives
// the fixed point
//
//	FormatTemplate(parse(FormatTemplate(parse(src)))) == FormatTemplate(parse(src))
//
// which the printer tests assert over a corpus of templates.
package bt

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTemplate renders a parsed template.
func FormatTemplate(root *Node) string {
	var b strings.Builder
	for _, s := range root.Kids {
		printStmt(&b, s, 0)
	}
	return b.String()
}

/* ===========================
   PRIVATE
   =========================== */

const indentUnit = "    "

func printStmt(b *strings.Builder, n *Node, depth int) {
	ind := strings.Repeat(indentUnit, depth)
	switch n.Op {
	case OpNop:
		fmt.Fprintf(b, "%s;\n", ind)
	case OpBlock:
		fmt.Fprintf(b, "%s{\n", ind)
		for _, k := range n.Kids {
			printStmt(b, k, depth+1)
		}
		fmt.Fprintf(b, "%s}\n", ind)
	case OpVarDefn:
		fmt.Fprintf(b, "%s%s %s%s%s;\n", ind, typeRefText(n.TypeRef), n.Name, argsText(n.Args), alenText(n.ALen))
	case OpLocalDefn:
		fmt.Fprintf(b, "%slocal %s %s%s%s", ind, typeRefText(n.TypeRef), n.Name, argsText(n.Args), alenText(n.ALen))
		if n.Init != nil {
			fmt.Fprintf(b, " = %s", exprText(n.Init))
		}
		b.WriteString(";\n")
	case OpStructDefn:
		b.WriteString(ind)
		if n.Typedef {
			b.WriteString("typedef ")
		}
		b.WriteString("struct")
		if n.Name != "" {
			fmt.Fprintf(b, " %s", n.Name)
		}
		if len(n.Params) > 0 {
			b.WriteString(paramsText(n.Params))
		}
		b.WriteString(" {\n")
		for _, k := range n.Body.Kids {
			printStmt(b, k, depth+1)
		}
		fmt.Fprintf(b, "%s}", ind)
		if n.VarName != "" {
			fmt.Fprintf(b, " %s%s%s", n.VarName, argsText(n.Args), alenText(n.ALen))
		}
		b.WriteString(";\n")
	case OpEnumDefn:
		b.WriteString(ind)
		if n.Typedef {
			b.WriteString("typedef ")
		}
		b.WriteString("enum")
		if n.TypeRef != nil {
			fmt.Fprintf(b, " <%s>", typeRefText(n.TypeRef))
		}
		if n.Name != "" {
			fmt.Fprintf(b, " %s", n.Name)
		}
		b.WriteString(" {\n")
		for i, m := range n.Members {
			fmt.Fprintf(b, "%s%s%s", ind, indentUnit, m.Name)
			if m.Value != nil {
				fmt.Fprintf(b, " = %s", exprText(m.Value))
			}
			if i < len(n.Members)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(b, "%s}", ind)
		if n.VarName != "" {
			fmt.Fprintf(b, " %s%s", n.VarName, alenText(n.ALen))
		}
		b.WriteString(";\n")
	case OpTypedef:
		fmt.Fprintf(b, "%stypedef %s %s%s;\n", ind, typeRefText(n.TypeRef), n.Name, alenText(n.ALen))
	case OpFuncDefn:
		fmt.Fprintf(b, "%s%s %s%s ", ind, typeRefText(n.TypeRef), n.Name, paramsText(n.Params))
		printBlockInline(b, n.Body, depth)
		b.WriteString("\n")
	case OpIf:
		fmt.Fprintf(b, "%sif (%s)\n", ind, exprText(n.Cond))
		printStmt(b, n.Body, depth+1)
		if n.Else != nil {
			fmt.Fprintf(b, "%selse\n", ind)
			printStmt(b, n.Else, depth+1)
		}
	case OpFor:
		switch {
		case n.Init == nil && n.Iter == nil && n.Cond != nil:
			fmt.Fprintf(b, "%swhile (%s)\n", ind, exprText(n.Cond))
		default:
			fmt.Fprintf(b, "%sfor (%s %s; %s)\n", ind, forInitText(n.Init), condText(n.Cond), condText(n.Iter))
		}
		printStmt(b, n.Body, depth+1)
	case OpSwitch:
		fmt.Fprintf(b, "%sswitch (%s) {\n", ind, exprText(n.Cond))
		for _, c := range n.Cases {
			if c.IsDefault {
				fmt.Fprintf(b, "%sdefault:\n", ind)
			} else {
				fmt.Fprintf(b, "%scase %s:\n", ind, exprText(c.Value))
			}
			for _, s := range c.Stmts {
				printStmt(b, s, depth+1)
			}
		}
		fmt.Fprintf(b, "%s}\n", ind)
	case OpReturn:
		if n.Init != nil {
			fmt.Fprintf(b, "%sreturn %s;\n", ind, exprText(n.Init))
		} else {
			fmt.Fprintf(b, "%sreturn;\n", ind)
		}
	case OpBreak:
		fmt.Fprintf(b, "%sbreak;\n", ind)
	case OpContinue:
		fmt.Fprintf(b, "%scontinue;\n", ind)
	case OpExprStmt:
		fmt.Fprintf(b, "%s%s;\n", ind, exprText(n.Kids[0]))
	}
}

// printBlockInline prints a block whose '{' stays on the current line.
func printBlockInline(b *strings.Builder, blk *Node, depth int) {
	ind := strings.Repeat(indentUnit, depth)
	b.WriteString("{\n")
	for _, k := range blk.Kids {
		printStmt(b, k, depth+1)
	}
	fmt.Fprintf(b, "%s}", ind)
}

func forInitText(init *Node) string {
	if init == nil {
		return ";"
	}
	var b strings.Builder
	printStmt(&b, init, 0)
	return strings.TrimRight(b.String(), "\n")
}

func condText(e *Node) string {
	if e == nil {
		return ""
	}
	return exprText(e)
}

func typeRefText(tr *TypeRef) string {
	return typeRefString(tr)
}

func paramsText(params []Param) string {
	var parts []string
	for _, p := range params {
		parts = append(parts, typeRefText(&p.Type)+" "+p.Name)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func argsText(args []*Node) string {
	if len(args) == 0 {
		return ""
	}
	var parts []string
	for _, a := range args {
		parts = append(parts, exprText(a))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func alenText(alen *Node) string {
	if alen == nil {
		return ""
	}
	return "[" + exprText(alen) + "]"
}

var opSymbols = map[Op]string{
	OpMul: "*", OpDiv: "/", OpMod: "%",
	OpAdd: "+", OpSub: "-",
	OpShl: "<<", OpShr: ">>",
	OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpEq: "==", OpNe: "!=",
	OpBitAnd: "&", OpBitXor: "^", OpBitOr: "|",
	OpLogAnd: "&&", OpLogOr: "||",
	OpAssign: "=",
}

func exprText(n *Node) string {
	switch n.Op {
	case OpNum:
		return strconv.FormatInt(n.Num, 10)
	case OpStr:
		return quoteTemplateString(n.Str)
	case OpRef:
		var b strings.Builder
		b.WriteString(n.Name)
		for _, suf := range n.Kids {
			if suf.Op == OpMemberSuffix {
				b.WriteString("." + suf.Name)
			} else {
				b.WriteString("[" + exprText(suf.Kids[0]) + "]")
			}
		}
		return b.String()
	case OpCall:
		return n.Name + argsTextAlways(n.Args)
	case OpNeg:
		return "(-" + exprText(n.Kids[0]) + ")"
	case OpNot:
		return "(!" + exprText(n.Kids[0]) + ")"
	case OpBitNot:
		return "(~" + exprText(n.Kids[0]) + ")"
	}
	if sym, ok := opSymbols[n.Op]; ok {
		return "(" + exprText(n.Kids[0]) + " " + sym + " " + exprText(n.Kids[1]) + ")"
	}
	return "<?>"
}

func argsTextAlways(args []*Node) string {
	var parts []string
	for _, a := range args {
		parts = append(parts, exprText(a))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// quoteTemplateString escapes with the subset the lexer understands.
func quoteTemplateString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		case 0:
			b.WriteString("\\0")
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&b, "\\x%02x", c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
