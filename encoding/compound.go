package encoding

import (
	"reflect"
	"unsafe"
)

type sliceData struct {
	Data unsafe.Pointer
	Len  int
}

func flatPlan(count, elemSize int) structSize {
	plan := make(structSize, count)
	for i := range plan {
		plan[i] = elemSize
	}
	return plan
}

func repeatPlan(elem structSize, count int) structSize {
	plan := make(structSize, 0, count*len(elem))
	for i := 0; i < count; i++ {
		plan = plan.Add(elem)
	}
	return plan
}

func encodeArray(typ reflect.Type, bs int) (handler, structSize) {
	count := typ.Len()
	elem := typ.Elem()
	if isInline(elem, bs) {
		plan := flatPlan(count, int(elem.Size()))
		total := plan.Size()
		return func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Write(unsafe.Slice((*byte)(ptr), total))
			return err
		}, plan
	}
	marshal, elemPlan := encode(elem, bs)
	stride := int(elem.Size())
	return func(stream Stream, ptr unsafe.Pointer) error {
		for i := 0; i < count; i++ {
			err := marshal(stream, ptr)
			if err != nil {
				return err
			}
			ptr = unsafe.Add(ptr, stride)
		}
		return nil
	}, repeatPlan(elemPlan, count)
}

func decodeArray(typ reflect.Type, bs int) (handler, structSize) {
	count := typ.Len()
	elem := typ.Elem()
	if isInline(elem, bs) {
		plan := flatPlan(count, int(elem.Size()))
		total := plan.Size()
		return func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Read(unsafe.Slice((*byte)(ptr), total))
			return err
		}, plan
	}
	unmarshal, elemPlan := decode(elem, bs)
	stride := int(elem.Size())
	return func(stream Stream, ptr unsafe.Pointer) error {
		for i := 0; i < count; i++ {
			err := unmarshal(stream, ptr)
			if err != nil {
				return err
			}
			ptr = unsafe.Add(ptr, stride)
		}
		return nil
	}, repeatPlan(elemPlan, count)
}

func encodeSlice(typ reflect.Type, bs int) (handler, structSize) {
	elem := typ.Elem()
	if isInline(elem, bs) {
		elemSize := int(elem.Size())
		return func(stream Stream, ptr unsafe.Pointer) error {
			slice := (*sliceData)(ptr)
			total := elemSize * slice.Len
			sub, err := stream.WriteStream(total)
			if err != nil {
				return err
			}
			_, err = sub.Write(unsafe.Slice((*byte)(slice.Data), total))
			return err
		}, structSize{bs}
	}
	marshal, elemPlan := encode(elem, bs)
	elemTotal := elemPlan.Size()
	stride := int(elem.Size())
	return func(stream Stream, ptr unsafe.Pointer) error {
		slice := (*sliceData)(ptr)
		sub, err := stream.WriteStream(elemTotal * slice.Len)
		if err != nil {
			return err
		}
		ptr = slice.Data
		for i := 0; i < slice.Len; i++ {
			err = marshal(sub, ptr)
			if err != nil {
				return err
			}
			ptr = unsafe.Add(ptr, stride)
		}
		return nil
	}, structSize{bs}
}

func decodeSlice(typ reflect.Type, bs int) (handler, structSize) {
	elem := typ.Elem()
	if isInline(elem, bs) {
		elemSize := int(elem.Size())
		return func(stream Stream, ptr unsafe.Pointer) error {
			sub, err := stream.ReadStream()
			if err != nil {
				return err
			} else if sub.Offset() == 0 {
				return nil
			}
			slice := (*sliceData)(ptr)
			_, err = sub.Read(unsafe.Slice((*byte)(slice.Data), elemSize*slice.Len))
			return err
		}, structSize{bs}
	}
	unmarshal, _ := decode(elem, bs)
	stride := int(elem.Size())
	return func(stream Stream, ptr unsafe.Pointer) error {
		sub, err := stream.ReadStream()
		if err != nil {
			return err
		} else if sub.Offset() == 0 {
			return nil
		}
		slice := (*sliceData)(ptr)
		ptr = slice.Data
		for i := 0; i < slice.Len; i++ {
			err = unmarshal(sub, ptr)
			if err != nil {
				return err
			}
			ptr = unsafe.Add(ptr, stride)
		}
		return nil
	}, structSize{bs}
}

func encodeString(bs int) (handler, structSize) {
	return func(stream Stream, ptr unsafe.Pointer) error {
		slice := (*sliceData)(ptr)
		sub, err := stream.WriteStream(slice.Len + 1)
		if err != nil {
			return err
		}
		return sub.WriteString(unsafe.String((*byte)(slice.Data), slice.Len))
	}, structSize{bs, bs}
}

func decodeString(bs int) (handler, structSize) {
	return func(stream Stream, ptr unsafe.Pointer) error {
		sub, err := stream.ReadStream()
		if err != nil {
			return err
		} else if sub.Offset() == 0 {
			return nil
		}
		str, err := sub.ReadString()
		if err != nil {
			return err
		}
		*(*string)(ptr) = str
		return nil
	}, structSize{bs, bs}
}
