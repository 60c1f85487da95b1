package encoding

import (
	"iter"
	"reflect"
	"unsafe"
)

type fieldCodec struct {
	handler handler
	offset  int
}

type codecFunc func(reflect.Type, int) (handler, structSize)

func encodeStruct(typ reflect.Type, bs int) (handler, structSize) {
	if plan, ok := flatFields(typ, bs); ok {
		total := plan.Size()
		return func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Write(unsafe.Slice((*byte)(ptr), total))
			return err
		}, plan
	}
	fields, plan, pad := structFields(typ, bs, encode)
	return walkFields(fields, pad), plan
}

func decodeStruct(typ reflect.Type, bs int) (handler, structSize) {
	if plan, ok := flatFields(typ, bs); ok {
		total := plan.Size()
		return func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Read(unsafe.Slice((*byte)(ptr), total))
			return err
		}, plan
	}
	fields, plan, pad := structFields(typ, bs, decode)
	return walkFields(fields, pad), plan
}

// flatFields reports the chunked layout of a struct whose every field
// copies raw, false when any field needs per-type handling or carries
// an `encoding:"ignore"` tag.
func flatFields(typ reflect.Type, bs int) (structSize, bool) {
	plan := make(structSize, 0, typ.NumField())
	var offset uintptr
	for field := range rangeField(typ) {
		if field.Tag.Get("encoding") == "ignore" || !isInline(field.Type, bs) {
			return nil, false
		}
		if s := field.Offset - offset; s != 0 {
			plan = append(plan, int(s))
		}
		offset = field.Offset
	}
	return append(plan, int(typ.Size()-offset)), true
}

// structFields builds per-field handlers, aligning each field to its
// first chunk and padding the tail to the widest chunk.
func structFields(typ reflect.Type, bs int, codec codecFunc) ([]fieldCodec, structSize, int) {
	plan := make(structSize, 0, typ.NumField())
	fields := make([]fieldCodec, 0, typ.NumField())
	for field := range rangeField(typ) {
		if field.Tag.Get("encoding") == "ignore" {
			continue
		}
		h, fieldPlan := codec(field.Type, bs)
		h, fieldPlan = alignField(h, fieldPlan, plan.Size())
		plan = plan.Add(fieldPlan)
		fields = append(fields, fieldCodec{h, int(field.Offset)})
	}
	var widest int
	for _, s := range plan {
		widest = max(widest, s)
	}
	pad := align(plan.Size(), widest) - plan.Size()
	if pad > 0 {
		plan = append(plan, pad)
	}
	return fields, plan, pad
}

func alignField(h handler, plan structSize, offset int) (handler, structSize) {
	addr := align(offset, plan[0])
	if addr == offset {
		return h, plan
	}
	pad := addr - offset
	return func(stream Stream, ptr unsafe.Pointer) error {
		err := stream.Skip(pad)
		if err != nil {
			return err
		}
		return h(stream, ptr)
	}, append(structSize{pad}, plan...)
}

func walkFields(fields []fieldCodec, pad int) handler {
	return func(stream Stream, ptr unsafe.Pointer) error {
		for _, f := range fields {
			err := f.handler(stream, unsafe.Add(ptr, f.offset))
			if err != nil {
				return err
			}
		}
		if pad > 0 {
			return stream.Skip(pad)
		}
		return nil
	}
}

func rangeField(typ reflect.Type) iter.Seq[reflect.StructField] {
	return func(yield func(reflect.StructField) bool) {
		count := typ.NumField()
		for i := 0; i < count; i++ {
			if !yield(typ.Field(i)) {
				break
			}
		}
	}
}

func align(a, b int) int {
	return (a + b - 1) &^ (b - 1)
}
