package encoding

import "reflect"

type Stream interface {
	BlockSize() int
	Offset() uint64
	Skip(int) error
	Read([]byte) (int, error)
	ReadFloat() (float32, error)
	ReadDouble() (float64, error)
	ReadString() (string, error)
	ReadStream() (Stream, error)
	Write([]byte) (int, error)
	WriteFloat(float32) error
	WriteDouble(float64) error
	WriteString(string) error
	WriteStream(int) (Stream, error)
}

// inlineStream makes ReadStream yield the stream itself, for top-level
// slice and string destinations that already arrive by reference.
type inlineStream struct {
	Stream
}

func (s inlineStream) ReadStream() (Stream, error) {
	return s.Stream, nil
}

// structSize is a stream layout plan, one entry per contiguous chunk.
type structSize []int

func (ss structSize) Add(size structSize) structSize {
	return append(ss, size...)
}

func (ss structSize) Size() (total int) {
	for _, size := range ss {
		total += size
	}
	return
}

// isInline reports whether values of typ lay out in the stream exactly
// as their host bytes, with no per-value handling.
func isInline(typ reflect.Type, bs int) bool {
	switch typ.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Int, reflect.Uint, reflect.Uintptr, reflect.UnsafePointer:
		return int(typ.Size()) == bs
	default:
		return false
	}
}
