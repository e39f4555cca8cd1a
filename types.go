// types.go
//
// Type descriptors for the template language.
//
// A Type is one of:
//   - a primitive numeric (fixed length, signedness, int/float kind, and a
//     pair of endian codes the host uses to tag annotated ranges),
//   - the string type (no fixed length; literals and function args only),
//   - a user struct (name, resolved parameter list, body AST),
//   - an array wrapper over any of the above (IsArray flag; ArrayLen holds
//     the fixed length of a typedef'd array or the element count of a bound
//     array variable).
//
// Primitive types are pre-registered under the fixed alias table below; the
// set of aliases never changes at runtime. User structs, enums, and typedefs
// are registered per-frame during execution (see context.go).
package bt

// Base discriminates the descriptor sum.
type Base int

const (
	BaseNumber Base = iota
	BaseString
	BaseStruct
)

// StructParam is one declared struct parameter, resolved at definition time.
type StructParam struct {
	Type *Type
	Name string
}

// Type describes the shape and decoding of a template value.
type Type struct {
	Base Base
	Name string // display name: alias, struct, or enum name

	// Primitive numerics.
	Length int // bytes: 1, 2, 4 or 8
	Signed bool
	Float  bool
	CodeLE string
	CodeBE string

	// Structs.
	Params []StructParam
	Body   *Node

	// Arrays.
	IsArray  bool
	ArrayLen int64 // typedef'd arrays: fixed length; bound variables: element count; 0 = per-declaration
}

// EndianCode returns the host code for the current endianness, or "" when
// the type has none (structs, strings).
func (t *Type) EndianCode(big bool) string {
	if big {
		return t.CodeBE
	}
	return t.CodeLE
}

// Elem returns the element type of an array type.
func (t *Type) Elem() *Type {
	if !t.IsArray {
		return t
	}
	e := *t
	e.IsArray = false
	e.ArrayLen = 0
	return &e
}

// ArrayOf returns an array wrapper over t.
func (t *Type) ArrayOf(fixed int64) *Type {
	a := *t
	a.IsArray = true
	a.ArrayLen = fixed
	return &a
}

func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	name := t.Name
	if name == "" {
		switch t.Base {
		case BaseStruct:
			name = "struct"
		case BaseString:
			name = "string"
		default:
			name = "number"
		}
	}
	if t.IsArray {
		return name + "[]"
	}
	return name
}

// assignable reports whether a value of type src may be assigned (or
// returned) where dst is expected: both void, both numeric, or both string,
// with matching arrayness. Structs are never assignable.
func assignable(dst, src *Type) bool {
	if dst == nil || src == nil {
		return dst == nil && src == nil
	}
	if dst.Base == BaseStruct || src.Base == BaseStruct {
		return false
	}
	if dst.IsArray != src.IsArray {
		return false
	}
	return dst.Base == src.Base
}

/* ===========================
   The fixed primitive table
   =========================== */

var (
	tyS8  = &Type{Base: BaseNumber, Name: "char", Length: 1, Signed: true, CodeLE: CodeS8, CodeBE: CodeS8}
	tyU8  = &Type{Base: BaseNumber, Name: "uchar", Length: 1, CodeLE: CodeU8, CodeBE: CodeU8}
	tyS16 = &Type{Base: BaseNumber, Name: "short", Length: 2, Signed: true, CodeLE: CodeS16LE, CodeBE: CodeS16BE}
	tyU16 = &Type{Base: BaseNumber, Name: "ushort", Length: 2, CodeLE: CodeU16LE, CodeBE: CodeU16BE}
	tyS32 = &Type{Base: BaseNumber, Name: "int", Length: 4, Signed: true, CodeLE: CodeS32LE, CodeBE: CodeS32BE}
	tyU32 = &Type{Base: BaseNumber, Name: "uint", Length: 4, CodeLE: CodeU32LE, CodeBE: CodeU32BE}
	tyS64 = &Type{Base: BaseNumber, Name: "int64", Length: 8, Signed: true, CodeLE: CodeS64LE, CodeBE: CodeS64BE}
	tyU64 = &Type{Base: BaseNumber, Name: "uint64", Length: 8, CodeLE: CodeU64LE, CodeBE: CodeU64BE}
	tyF32 = &Type{Base: BaseNumber, Name: "float", Length: 4, Signed: true, Float: true, CodeLE: CodeF32LE, CodeBE: CodeF32BE}
	tyF64 = &Type{Base: BaseNumber, Name: "double", Length: 8, Signed: true, Float: true, CodeLE: CodeF64LE, CodeBE: CodeF64BE}

	tyString = &Type{Base: BaseString, Name: "string"}
)

// primitiveTypes is the fixed alias table (identifiers recognized in
// templates). Read-only.
var primitiveTypes = map[string]*Type{
	"char": tyS8, "byte": tyS8, "CHAR": tyS8, "BYTE": tyS8,
	"uchar": tyU8, "ubyte": tyU8, "UCHAR": tyU8, "UBYTE": tyU8,
	"short": tyS16, "int16": tyS16, "SHORT": tyS16, "INT16": tyS16,
	"ushort": tyU16, "uint16": tyU16, "USHORT": tyU16, "UINT16": tyU16, "WORD": tyU16,
	"int": tyS32, "int32": tyS32, "long": tyS32, "INT": tyS32, "INT32": tyS32, "LONG": tyS32,
	"uint": tyU32, "uint32": tyU32, "ulong": tyU32, "UINT": tyU32, "UINT32": tyU32, "ULONG": tyU32, "DWORD": tyU32,
	"int64": tyS64, "quad": tyS64, "QUAD": tyS64, "INT64": tyS64, "__int64": tyS64,
	"uint64": tyU64, "uquad": tyU64, "UQUAD": tyU64, "UINT64": tyU64, "QWORD": tyU64, "__uint64": tyU64,
	"float": tyF32, "FLOAT": tyF32,
	"double": tyF64, "DOUBLE": tyF64,
	"string": tyString,
}

// unsignedTwin maps a signed integer primitive to the unsigned primitive of
// the same width, for the `unsigned NAME` type form. Returns nil when the
// type has no unsigned variant.
func unsignedTwin(t *Type) *Type {
	if t == nil || t.Base != BaseNumber || t.Float {
		return nil
	}
	if !t.Signed {
		return t
	}
	switch t.Length {
	case 1:
		return tyU8
	case 2:
		return tyU16
	case 4:
		return tyU32
	case 8:
		return tyU64
	}
	return nil
}

// isBuiltinAlias reports whether name is in the fixed alias table. The
// parser uses this to recognize casts.
func isBuiltinAlias(name string) bool {
	_, ok := primitiveTypes[name]
	return ok
}
