// value.go — the polymorphic value cells of the interpreter.
//
// A Cell exposes Get/Set. Reference expressions yield Cells that stay
// aliased to their storage: re-reading a file-backed variable re-reads the
// target buffer through the host, which is observable behavior (the buffer
// may have been annotated against a live document).
//
//	ConstCell   in-memory, immutable (literals, expression results)
//	VarCell     in-memory, mutable (local variables)
//	FileCell    lazily reads its bytes through the Host on every Get
//	StructCell  ordered member mapping, declaration order preserved
//	ArrayCell   ordered element cells
//
// A FileCell whose read comes up short yields the null datum; see
// interpreter_ops.go for how null propagates into expressions.
package bt

import (
	"encoding/binary"
	"math"
)

// DatumTag discriminates Datum.
type DatumTag int

const (
	DNull DatumTag = iota
	DInt
	DFloat
	DStr
)

// Datum is the dynamic result of reading a Cell.
type Datum struct {
	Tag   DatumTag
	Int   int64
	Float float64
	Str   string
}

func IntDatum(v int64) Datum     { return Datum{Tag: DInt, Int: v} }
func FloatDatum(v float64) Datum { return Datum{Tag: DFloat, Float: v} }
func StrDatum(s string) Datum    { return Datum{Tag: DStr, Str: s} }

// Cell is a readable, possibly writable value slot. Set returns a kind-only
// *Error (no location); the evaluator stamps the offending node.
type Cell interface {
	Get() Datum
	Set(Datum) *Error
}

/* ===========================
   ConstCell
   =========================== */

type ConstCell struct{ D Datum }

func (c *ConstCell) Get() Datum { return c.D }
func (c *ConstCell) Set(Datum) *Error {
	return &Error{Kind: KindAssignmentToConstant, Msg: "cannot assign to a constant value"}
}

/* ===========================
   VarCell
   =========================== */

type VarCell struct{ D Datum }

func (c *VarCell) Get() Datum { return c.D }
func (c *VarCell) Set(d Datum) *Error {
	c.D = d
	return nil
}

/* ===========================
   FileCell
   =========================== */

// FileCell reads Length bytes at Off through the host and decodes them with
// the endianness captured at bind time.
type FileCell struct {
	Host   Host
	Off    int64
	Length int64
	Signed bool
	Float  bool
	Big    bool
}

func (c *FileCell) Get() Datum {
	b := c.Host.ReadData(c.Off, c.Length)
	if int64(len(b)) < c.Length {
		return Datum{} // short read: no value
	}
	return decodeScalar(b, c.Signed, c.Float, c.Big)
}

func (c *FileCell) Set(Datum) *Error {
	return &Error{Kind: KindAssignmentToFileVariable, Msg: "cannot assign to a file-backed variable"}
}

// decodeScalar decodes a fixed-width scalar from b.
func decodeScalar(b []byte, signed, float, big bool) Datum {
	var order binary.ByteOrder = binary.LittleEndian
	if big {
		order = binary.BigEndian
	}
	if float {
		switch len(b) {
		case 4:
			return FloatDatum(float64(math.Float32frombits(order.Uint32(b))))
		case 8:
			return FloatDatum(math.Float64frombits(order.Uint64(b)))
		}
		return Datum{}
	}
	var u uint64
	switch len(b) {
	case 1:
		u = uint64(b[0])
	case 2:
		u = uint64(order.Uint16(b))
	case 4:
		u = uint64(order.Uint32(b))
	case 8:
		u = order.Uint64(b)
	default:
		return Datum{}
	}
	if !signed {
		return IntDatum(int64(u))
	}
	switch len(b) {
	case 1:
		return IntDatum(int64(int8(u)))
	case 2:
		return IntDatum(int64(int16(u)))
	case 4:
		return IntDatum(int64(int32(u)))
	default:
		return IntDatum(int64(u))
	}
}

/* ===========================
   StructCell
   =========================== */

// MemberMap is an ordered mapping from name to (type, cell). Declaration
// order is preserved; it backs struct values, stack-frame locals, and the
// globals table.
type MemberMap struct {
	entries map[string]memberEntry
	names   []string
}

type memberEntry struct {
	typ  *Type
	cell Cell
}

func NewMemberMap() *MemberMap {
	return &MemberMap{entries: map[string]memberEntry{}}
}

// Add registers a new entry; it reports false when the name already exists.
func (m *MemberMap) Add(name string, typ *Type, cell Cell) bool {
	if _, dup := m.entries[name]; dup {
		return false
	}
	m.entries[name] = memberEntry{typ: typ, cell: cell}
	m.names = append(m.names, name)
	return true
}

func (m *MemberMap) Get(name string) (*Type, Cell, bool) {
	e, ok := m.entries[name]
	return e.typ, e.cell, ok
}

func (m *MemberMap) Has(name string) bool {
	_, ok := m.entries[name]
	return ok
}

func (m *MemberMap) Names() []string { return m.names }
func (m *MemberMap) Len() int        { return len(m.names) }

type StructCell struct{ Members *MemberMap }

func (c *StructCell) Get() Datum { return Datum{} }
func (c *StructCell) Set(Datum) *Error {
	return &Error{Kind: KindTypeMismatch, Msg: "cannot assign to a struct value"}
}

/* ===========================
   ArrayCell
   =========================== */

type ArrayCell struct {
	Elems []Cell
}

func (c *ArrayCell) Get() Datum { return Datum{} }
func (c *ArrayCell) Set(Datum) *Error {
	return &Error{Kind: KindTypeMismatch, Msg: "cannot assign to an array value"}
}

// zeroDatum is the initial value of an uninitialized local variable.
func zeroDatum(t *Type) Datum {
	switch {
	case t.Base == BaseString:
		return StrDatum("")
	case t.Float:
		return FloatDatum(0)
	default:
		return IntDatum(0)
	}
}
