// value_test.go
package bt

import "testing"

func fileCell(data []byte, off, length int64, signed, float, big bool) *FileCell {
	return &FileCell{
		Host: NewBufferHost(data),
		Off:  off, Length: length,
		Signed: signed, Float: float, Big: big,
	}
}

func Test_Value_FileCell_DecodeWidths(t *testing.T) {
	data := []byte{0xff, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80}

	if d := fileCell(data, 0, 1, true, false, false).Get(); d.Tag != DInt || d.Int != -1 {
		t.Fatalf("s8: %+v", d)
	}
	if d := fileCell(data, 0, 1, false, false, false).Get(); d.Int != 255 {
		t.Fatalf("u8: %+v", d)
	}
	if d := fileCell(data, 0, 2, false, false, false).Get(); d.Int != 0x01ff {
		t.Fatalf("u16le: %+v", d)
	}
	if d := fileCell(data, 0, 2, false, false, true).Get(); d.Int != 0xff01 {
		t.Fatalf("u16be: %+v", d)
	}
	if d := fileCell(data, 0, 4, true, false, false).Get(); d.Int != 0x000001ff {
		t.Fatalf("s32le: %+v", d)
	}
	if d := fileCell(data, 0, 8, false, false, false).Get(); d.Int != int64(-9223372036854775808)+0x1ff {
		// 0x80000000000001ff as unsigned wraps in int64 space
		t.Fatalf("u64le: %+v", d)
	}
}

func Test_Value_FileCell_SignExtension(t *testing.T) {
	data := []byte{0xfe, 0xff, 0xff, 0xff}
	if d := fileCell(data, 0, 2, true, false, false).Get(); d.Int != -2 {
		t.Fatalf("s16le sign extension: %+v", d)
	}
	if d := fileCell(data, 0, 4, true, false, false).Get(); d.Int != -2 {
		t.Fatalf("s32le sign extension: %+v", d)
	}
	if d := fileCell(data, 0, 2, false, false, false).Get(); d.Int != 0xfffe {
		t.Fatalf("u16le no sign extension: %+v", d)
	}
}

func Test_Value_FileCell_Floats(t *testing.T) {
	// 1.5 as f32le: 0x3FC00000
	f32 := []byte{0x00, 0x00, 0xc0, 0x3f}
	if d := fileCell(f32, 0, 4, true, true, false).Get(); d.Tag != DFloat || d.Float != 1.5 {
		t.Fatalf("f32le: %+v", d)
	}
	// -2.0 as f64be: 0xC000000000000000
	f64 := []byte{0xc0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if d := fileCell(f64, 0, 8, true, true, true).Get(); d.Tag != DFloat || d.Float != -2.0 {
		t.Fatalf("f64be: %+v", d)
	}
}

func Test_Value_FileCell_ShortReadYieldsNull(t *testing.T) {
	data := []byte{0x01, 0x02}
	if d := fileCell(data, 0, 4, false, false, false).Get(); d.Tag != DNull {
		t.Fatalf("expected null datum on short read, got %+v", d)
	}
	if d := fileCell(data, 5, 1, false, false, false).Get(); d.Tag != DNull {
		t.Fatalf("expected null datum past EOF, got %+v", d)
	}
}

func Test_Value_FileCell_RereadsThroughHost(t *testing.T) {
	host := NewBufferHost([]byte{1, 0, 0, 0})
	c := &FileCell{Host: host, Off: 0, Length: 4, Signed: true}
	if d := c.Get(); d.Int != 1 {
		t.Fatalf("first read: %+v", d)
	}
	host.Data[0] = 9
	if d := c.Get(); d.Int != 9 {
		t.Fatalf("file cell must re-read storage, got %+v", d)
	}
}

func Test_Value_SetSemantics(t *testing.T) {
	cc := &ConstCell{D: IntDatum(1)}
	if err := cc.Set(IntDatum(2)); err == nil || err.Kind != KindAssignmentToConstant {
		t.Fatalf("const set: %v", err)
	}
	fc := fileCell([]byte{0}, 0, 1, false, false, false)
	if err := fc.Set(IntDatum(2)); err == nil || err.Kind != KindAssignmentToFileVariable {
		t.Fatalf("file set: %v", err)
	}
	vc := &VarCell{D: IntDatum(1)}
	if err := vc.Set(IntDatum(2)); err != nil || vc.D.Int != 2 {
		t.Fatalf("var set: %v %+v", err, vc.D)
	}
}

func Test_Value_MemberMap_OrderAndDuplicates(t *testing.T) {
	m := NewMemberMap()
	if !m.Add("b", tyS32, &VarCell{}) || !m.Add("a", tyS32, &VarCell{}) || !m.Add("c", tyS32, &VarCell{}) {
		t.Fatalf("adds failed")
	}
	if m.Add("a", tyS32, &VarCell{}) {
		t.Fatalf("duplicate add must fail")
	}
	want := []string{"b", "a", "c"}
	got := m.Names()
	if len(got) != len(want) {
		t.Fatalf("names: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("declaration order not preserved: %v", got)
		}
	}
	if ty, _, ok := m.Get("a"); !ok || ty != tyS32 {
		t.Fatalf("get failed")
	}
}
