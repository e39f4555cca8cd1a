// host.go — the boundary between the interpreter and the embedding
// application.
//
// The interpreter reaches the outside world exclusively through the Host
// interface: reading bytes from the target buffer, tagging byte ranges with
// typed-data codes and comments, printing diagnostics, and yielding for
// cooperative cancellation. Everything else (storage, undo, UI) belongs to
// the embedder.
//
// Two adapters are provided:
//
//   - SubRangeHost applies a constant selection offset so a template can be
//     executed against a sub-range of a larger document.
//   - BufferHost is an in-memory document that records annotations in call
//     order. It backs the CLI and the test suite.
package bt

import (
	"fmt"
	"io"
)

// Endian codes passed to SetDataType. These labels are stable and must match
// the downstream consumer exactly.
const (
	CodeS8    = "s8"
	CodeU8    = "u8"
	CodeS16LE = "s16le"
	CodeS16BE = "s16be"
	CodeU16LE = "u16le"
	CodeU16BE = "u16be"
	CodeS32LE = "s32le"
	CodeS32BE = "s32be"
	CodeU32LE = "u32le"
	CodeU32BE = "u32be"
	CodeS64LE = "s64le"
	CodeS64BE = "s64be"
	CodeU64LE = "u64le"
	CodeU64BE = "u64be"
	CodeF32LE = "f32le"
	CodeF32BE = "f32be"
	CodeF64LE = "f64le"
	CodeF64BE = "f64be"
)

// Host is the set of operations the interpreter requires from its embedder.
type Host interface {
	// SetDataType marks [off, off+length) as having encoding code.
	SetDataType(off, length int64, code string)

	// SetComment attaches text as the comment on [off, off+length).
	SetComment(off, length int64, text string)

	// ReadData returns the bytes at [off, off+length). A short read at the
	// end of the buffer is not an error; fewer bytes are returned.
	ReadData(off, length int64) []byte

	// FileLength returns the total addressable length.
	FileLength() int64

	// Print receives diagnostic output (Printf).
	Print(s string)

	// Yield lets the embedder pump events and check for cancellation. A
	// non-nil return aborts template execution.
	Yield() error
}

/* ===========================
   SubRangeHost
   =========================== */

// SubRangeHost executes a template against a window of a larger document:
// all offsets are rebased by SelectionOff and reads are clamped to the
// window. SelectionLen < 0 means "to the end of the document".
type SubRangeHost struct {
	Doc          Host
	SelectionOff int64
	SelectionLen int64
}

func (h *SubRangeHost) window() int64 {
	total := h.Doc.FileLength() - h.SelectionOff
	if total < 0 {
		total = 0
	}
	if h.SelectionLen >= 0 && h.SelectionLen < total {
		total = h.SelectionLen
	}
	return total
}

func (h *SubRangeHost) SetDataType(off, length int64, code string) {
	h.Doc.SetDataType(off+h.SelectionOff, length, code)
}

func (h *SubRangeHost) SetComment(off, length int64, text string) {
	h.Doc.SetComment(off+h.SelectionOff, length, text)
}

func (h *SubRangeHost) ReadData(off, length int64) []byte {
	win := h.window()
	if off >= win {
		return nil
	}
	if off+length > win {
		length = win - off
	}
	return h.Doc.ReadData(off+h.SelectionOff, length)
}

func (h *SubRangeHost) FileLength() int64 { return h.window() }
func (h *SubRangeHost) Print(s string)    { h.Doc.Print(s) }
func (h *SubRangeHost) Yield() error      { return h.Doc.Yield() }

/* ===========================
   BufferHost
   =========================== */

// DataRange is one typed-data annotation recorded by BufferHost.
type DataRange struct {
	Offset int64  `json:"offset" yaml:"offset"`
	Length int64  `json:"length" yaml:"length"`
	Code   string `json:"code" yaml:"code"`
}

// Comment is one named-comment annotation recorded by BufferHost.
type Comment struct {
	Offset int64  `json:"offset" yaml:"offset"`
	Length int64  `json:"length" yaml:"length"`
	Text   string `json:"text" yaml:"text"`
}

// BufferHost is an in-memory document. Annotations are appended in the order
// the interpreter emits them, which is the template's statement order.
type BufferHost struct {
	Data     []byte
	Types    []DataRange
	Comments []Comment

	// Output receives Print text; nil discards it.
	Output io.Writer

	// YieldHook, when non-nil, is consulted on every Yield call. Returning
	// an error aborts the running template.
	YieldHook func() error
}

func NewBufferHost(data []byte) *BufferHost {
	return &BufferHost{Data: data}
}

func (h *BufferHost) SetDataType(off, length int64, code string) {
	h.Types = append(h.Types, DataRange{Offset: off, Length: length, Code: code})
}

func (h *BufferHost) SetComment(off, length int64, text string) {
	h.Comments = append(h.Comments, Comment{Offset: off, Length: length, Text: text})
}

func (h *BufferHost) ReadData(off, length int64) []byte {
	if off < 0 || off >= int64(len(h.Data)) || length <= 0 {
		return nil
	}
	end := off + length
	if end > int64(len(h.Data)) {
		end = int64(len(h.Data))
	}
	out := make([]byte, end-off)
	copy(out, h.Data[off:end])
	return out
}

func (h *BufferHost) FileLength() int64 { return int64(len(h.Data)) }

func (h *BufferHost) Print(s string) {
	if h.Output != nil {
		fmt.Fprint(h.Output, s)
	}
}

func (h *BufferHost) Yield() error {
	if h.YieldHook != nil {
		return h.YieldHook()
	}
	return nil
}
