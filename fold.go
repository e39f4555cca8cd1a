// fold.go — expression compilation: folding flat token captures into
// precedence-correct trees.
//
// The parser leaves every expression as an OpRawExpr whose children
// alternate between operand nodes and OpOperator symbol nodes. This pass
// walks the element list once per precedence tier, tightest first, reducing
// matched neighborhoods into unary or binary nodes. The tier table below is
// the single source of truth for precedence and associativity.
package bt

type foldTier struct {
	unary      bool
	rightAssoc bool
	ops        map[string]Op
}

// foldTiers, tightest first.
var foldTiers = []foldTier{
	{unary: true, rightAssoc: true, ops: map[string]Op{"!": OpNot, "~": OpBitNot}},
	{ops: map[string]Op{"*": OpMul, "/": OpDiv, "%": OpMod}},
	{ops: map[string]Op{"+": OpAdd, "-": OpSub}},
	{ops: map[string]Op{"<<": OpShl, ">>": OpShr}},
	{ops: map[string]Op{"<": OpLt, "<=": OpLe, ">": OpGt, ">=": OpGe}},
	{ops: map[string]Op{"==": OpEq, "!=": OpNe}},
	{ops: map[string]Op{"&": OpBitAnd}},
	{ops: map[string]Op{"^": OpBitXor}},
	{ops: map[string]Op{"|": OpBitOr}},
	{ops: map[string]Op{"&&": OpLogAnd}},
	{ops: map[string]Op{"||": OpLogOr}},
	{rightAssoc: true, ops: map[string]Op{"=": OpAssign}},
}

// foldTemplate replaces every raw expression in the statement tree.
func foldTemplate(root *Node) *Error {
	return foldStmt(root)
}

func foldStmt(n *Node) *Error {
	if n == nil {
		return nil
	}
	switch n.Op {
	case OpBlock:
		for _, k := range n.Kids {
			if err := foldStmt(k); err != nil {
				return err
			}
		}
	case OpVarDefn:
		if err := foldFields(&n.ALen); err != nil {
			return err
		}
		return foldList(n.Args)
	case OpLocalDefn:
		if err := foldFields(&n.ALen, &n.Init); err != nil {
			return err
		}
		return foldList(n.Args)
	case OpStructDefn:
		if err := foldFields(&n.ALen); err != nil {
			return err
		}
		if err := foldList(n.Args); err != nil {
			return err
		}
		return foldStmt(n.Body)
	case OpEnumDefn:
		if err := foldFields(&n.ALen); err != nil {
			return err
		}
		for i := range n.Members {
			if n.Members[i].Value != nil {
				f, err := foldExpr(n.Members[i].Value)
				if err != nil {
					return err
				}
				n.Members[i].Value = f
			}
		}
	case OpTypedef:
		return foldFields(&n.ALen)
	case OpFuncDefn:
		return foldStmt(n.Body)
	case OpIf:
		if err := foldFields(&n.Cond); err != nil {
			return err
		}
		if err := foldStmt(n.Body); err != nil {
			return err
		}
		return foldStmt(n.Else)
	case OpFor:
		if err := foldStmt(n.Init); err != nil {
			return err
		}
		if err := foldFields(&n.Cond, &n.Iter); err != nil {
			return err
		}
		return foldStmt(n.Body)
	case OpSwitch:
		if err := foldFields(&n.Cond); err != nil {
			return err
		}
		for i := range n.Cases {
			if n.Cases[i].Value != nil {
				f, err := foldExpr(n.Cases[i].Value)
				if err != nil {
					return err
				}
				n.Cases[i].Value = f
			}
			for _, s := range n.Cases[i].Stmts {
				if err := foldStmt(s); err != nil {
					return err
				}
			}
		}
	case OpReturn:
		return foldFields(&n.Init)
	case OpExprStmt:
		f, err := foldExpr(n.Kids[0])
		if err != nil {
			return err
		}
		n.Kids[0] = f
	}
	return nil
}

func foldFields(fields ...**Node) *Error {
	for _, f := range fields {
		if *f == nil {
			continue
		}
		folded, err := foldExpr(*f)
		if err != nil {
			return err
		}
		*f = folded
	}
	return nil
}

func foldList(list []*Node) *Error {
	for i, e := range list {
		if e == nil {
			continue
		}
		f, err := foldExpr(e)
		if err != nil {
			return err
		}
		list[i] = f
	}
	return nil
}

// foldExpr folds one expression node and its sub-expressions.
func foldExpr(n *Node) (*Node, *Error) {
	if n == nil {
		return nil, nil
	}
	switch n.Op {
	case OpRawExpr:
		return foldRaw(n)
	case OpNeg, OpNot, OpBitNot:
		k, err := foldExpr(n.Kids[0])
		if err != nil {
			return nil, err
		}
		n.Kids[0] = k
		return n, nil
	case OpRef:
		for _, suf := range n.Kids {
			if suf.Op == OpIndexSuffix {
				k, err := foldExpr(suf.Kids[0])
				if err != nil {
					return nil, err
				}
				suf.Kids[0] = k
			}
		}
		return n, nil
	case OpCall:
		if err := foldList(n.Args); err != nil {
			return nil, err
		}
		return n, nil
	default:
		if isBinaryOp(n.Op) {
			for i, k := range n.Kids {
				f, err := foldExpr(k)
				if err != nil {
					return nil, err
				}
				n.Kids[i] = f
			}
		}
		return n, nil
	}
}

// foldRaw reduces a flat element list tier by tier.
func foldRaw(raw *Node) (*Node, *Error) {
	elems := make([]*Node, len(raw.Kids))
	copy(elems, raw.Kids)

	// Fold operands first (nested sub-expressions, call args, indexes).
	for i, e := range elems {
		if e.Op == OpOperator {
			continue
		}
		f, err := foldExpr(e)
		if err != nil {
			return nil, err
		}
		elems[i] = f
	}

	for _, tier := range foldTiers {
		var err *Error
		if tier.unary {
			elems, err = foldUnaryTier(elems, tier)
		} else if tier.rightAssoc {
			elems, err = foldBinaryTierRight(elems, tier)
		} else {
			elems, err = foldBinaryTierLeft(elems, tier)
		}
		if err != nil {
			return nil, err
		}
	}

	if len(elems) != 1 || elems[0].Op == OpOperator {
		return nil, errMalformed(raw)
	}
	return elems[0], nil
}

func errMalformed(n *Node) *Error {
	return errAt(n, KindParse, "malformed expression")
}

func isOperatorElem(n *Node, tier foldTier) (Op, bool) {
	if n.Op != OpOperator {
		return 0, false
	}
	op, ok := tier.ops[n.Name]
	return op, ok
}

// foldUnaryTier reduces prefix operators right-to-left (right associative):
// an operator element that is at the start or preceded by another operator
// binds the operand to its right.
func foldUnaryTier(elems []*Node, tier foldTier) ([]*Node, *Error) {
	for i := len(elems) - 1; i >= 0; i-- {
		op, ok := isOperatorElem(elems[i], tier)
		if !ok {
			continue
		}
		if i > 0 && elems[i-1].Op != OpOperator {
			continue // binary position; belongs to a later tier symbol set
		}
		if i+1 >= len(elems) || elems[i+1].Op == OpOperator {
			return nil, errMalformed(elems[i])
		}
		n := &Node{Op: op, File: elems[i].File, Line: elems[i].Line, Kids: []*Node{elems[i+1]}}
		elems = append(elems[:i], append([]*Node{n}, elems[i+2:]...)...)
	}
	return elems, nil
}

func reduceBinary(elems []*Node, i int, op Op) []*Node {
	n := &Node{
		Op:   op,
		File: elems[i+1].File,
		Line: elems[i+1].Line,
		Kids: []*Node{elems[i], elems[i+2]},
	}
	return append(elems[:i], append([]*Node{n}, elems[i+3:]...)...)
}

func foldBinaryTierLeft(elems []*Node, tier foldTier) ([]*Node, *Error) {
	i := 0
	for i+2 < len(elems) {
		op, ok := isOperatorElem(elems[i+1], tier)
		if !ok || elems[i].Op == OpOperator || elems[i+2].Op == OpOperator {
			i++
			continue
		}
		elems = reduceBinary(elems, i, op)
		// stay at i: the reduced node may be the left operand of the next
		// same-tier operator (left associativity)
	}
	return elems, nil
}

func foldBinaryTierRight(elems []*Node, tier foldTier) ([]*Node, *Error) {
	for i := len(elems) - 3; i >= 0; i-- {
		if i+2 >= len(elems) {
			continue
		}
		op, ok := isOperatorElem(elems[i+1], tier)
		if !ok || elems[i].Op == OpOperator || elems[i+2].Op == OpOperator {
			continue
		}
		elems = reduceBinary(elems, i, op)
	}
	return elems, nil
}
