package binfmt

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestAppendHelpers(t *testing.T) {
	var buf []byte
	buf = AppendByte(buf, 7)
	buf = AppendBool(buf, true)
	buf = AppendUint32(buf, 0x01020304)
	buf = AppendUint64(buf, 0x0102030405060708)
	buf = AppendRaw(buf, []byte("hi"))

	want := []byte{7, 1, 4, 3, 2, 1, 8, 7, 6, 5, 4, 3, 2, 1, 'h', 'i'}
	if !reflect.DeepEqual(buf, want) {
		t.Fatalf("buf = %x, wanted %x", buf, want)
	}

	d := MakeDecoder(buf)
	if v, err := d.Byte(); err != nil || v != 7 {
		t.Fatalf("Byte = (%d, %v), wanted 7", v, err)
	}
	if v, err := d.Byte(); err != nil || v != 1 {
		t.Fatalf("Byte = (%d, %v), wanted 1", v, err)
	}
	if v, err := d.Uint32(); err != nil || v != 0x01020304 {
		t.Fatalf("Uint32 = (%x, %v), wanted 01020304", v, err)
	}
	if v, err := d.Uint64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("Uint64 = (%x, %v), wanted 0102030405060708", v, err)
	}
	if d.Off() != 14 || d.Remaining() != 2 {
		t.Fatalf("Off = %d, Remaining = %d, wanted 14, 2", d.Off(), d.Remaining())
	}
	if v, err := d.Raw(2); err != nil || string(v) != "hi" {
		t.Fatalf("Raw = (%q, %v), wanted hi", v, err)
	}
	if d.Remaining() != 0 {
		t.Fatalf("Remaining = %d, wanted 0", d.Remaining())
	}
}

func TestAppendInt32_Overflow(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	AppendInt32(nil, -1)
}

func TestDecoder_ShortRead(t *testing.T) {
	d := MakeDecoder([]byte{1, 2})
	_, err := d.Uint32()
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("err = %T, wanted *DataError", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("errors.Is(err, io.ErrUnexpectedEOF) = false, wanted true")
	}
}

func TestReader(t *testing.T) {
	t.Run("clean EOF", func(t *testing.T) {
		r := NewReader(bytes.NewReader(nil))
		if _, err := r.Uint32(); err != io.EOF {
			t.Fatalf("err = %v, wanted io.EOF", err)
		}
	})
	t.Run("partial field", func(t *testing.T) {
		r := NewReader(bytes.NewReader([]byte{1, 2, 3}))
		_, err := r.Uint32()
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Fatalf("err = %v, wanted io.ErrUnexpectedEOF", err)
		}
	})
	t.Run("fields and offset", func(t *testing.T) {
		r := NewReader(bytes.NewReader([]byte{9, 1, 0, 0, 0}))
		b, err := r.Byte()
		if err != nil || b != 9 {
			t.Fatalf("Byte = (%d, %v), wanted 9", b, err)
		}
		v, err := r.Uint32()
		if err != nil || v != 1 {
			t.Fatalf("Uint32 = (%d, %v), wanted 1", v, err)
		}
		if r.Offset() != 5 {
			t.Fatalf("Offset = %d, wanted 5", r.Offset())
		}
	})
	t.Run("NotEOF", func(t *testing.T) {
		if !errors.Is(NotEOF(io.EOF), io.ErrUnexpectedEOF) {
			t.Fatalf("NotEOF(io.EOF) does not wrap io.ErrUnexpectedEOF")
		}
		if NotEOF(nil) != nil {
			t.Fatalf("NotEOF(nil) != nil")
		}
	})
}

func TestDataError_Error(t *testing.T) {
	inner := errors.New("inner")
	s := Errorf([]byte{0xAA, 0xBB}, 1, inner, "oops").Error()
	if !strings.Contains(s, "oops") || !strings.Contains(s, "inner") || !strings.Contains(s, "(2)") {
		t.Fatalf("Error() = %q, wanted oops/inner/(2)", s)
	}

	data := make([]byte, 200)
	s = Errorf(data, 0, nil, "oops").Error()
	if !strings.Contains(s, "(200)") || !strings.Contains(s, "...") {
		t.Fatalf("Error() = %q, wanted (200) and ...", s)
	}

	s = Errorf(nil, 12, nil, "bad").Error()
	if s != "bad at 12" {
		t.Fatalf("Error() = %q, wanted %q", s, "bad at 12")
	}
}
