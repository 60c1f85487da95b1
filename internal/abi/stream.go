package abi

import (
	"errors"
	"io"
	"math"

	"github.com/wnxd/microsandbox/emulator"
	"github.com/wnxd/microsandbox/encoding"
)

type pointerStream struct {
	ptr   emulator.Pointer
	alloc func(uint64) (emulator.Pointer, error)
	size  int
}

func PointerStream(ptr emulator.Pointer, alloc func(uint64) (emulator.Pointer, error), size int) encoding.Stream {
	return &pointerStream{ptr, alloc, size}
}

func (ps *pointerStream) BlockSize() int {
	return ps.size
}

func (ps *pointerStream) Offset() uint64 {
	return ps.ptr.Address()
}

func (ps *pointerStream) Skip(n int) error {
	ps.ptr = ps.ptr.Add(uint64(n))
	return nil
}

func (ps *pointerStream) Read(b []byte) (int, error) {
	n, err := ps.ptr.ReadAt(b, 0)
	if err == nil {
		ps.Skip(n)
	}
	return n, err
}

func (ps *pointerStream) ReadFloat() (float32, error) {
	var f float32
	_, err := ps.Read(ToPtrRaw(&f))
	return f, err
}

func (ps *pointerStream) ReadDouble() (float64, error) {
	var d float64
	_, err := ps.Read(ToPtrRaw(&d))
	return d, err
}

func (ps *pointerStream) ReadString() (string, error) {
	str, err := ps.ptr.MemReadString()
	if err == nil {
		ps.Skip(len(str) + 1)
	}
	return str, err
}

func (ps *pointerStream) ReadStream() (encoding.Stream, error) {
	ptr, err := ps.ptr.MemReadPointer()
	if err != nil {
		return nil, err
	}
	ps.Skip(ps.size)
	return PointerStream(ptr, ps.alloc, ps.size), nil
}

func (ps *pointerStream) Write(b []byte) (int, error) {
	n, err := ps.ptr.WriteAt(b, 0)
	if err == nil {
		ps.Skip(n)
	}
	return n, err
}

func (ps *pointerStream) WriteFloat(f float32) error {
	_, err := ps.Write(ToPtrRaw(&f))
	return err
}

func (ps *pointerStream) WriteDouble(d float64) error {
	_, err := ps.Write(ToPtrRaw(&d))
	return err
}

func (ps *pointerStream) WriteString(str string) error {
	_, err := ps.Write([]byte(str))
	if err != nil {
		return err
	}
	_, err = ps.Write([]byte{0})
	return err
}

func (ps *pointerStream) WriteStream(size int) (encoding.Stream, error) {
	ptr, err := ps.alloc(uint64(size))
	if err != nil {
		return nil, err
	}
	addr := ptr.Address()
	ps.Write(ToPtrRaw(&addr)[:ps.size])
	return PointerStream(ptr, ps.alloc, ps.size), nil
}

// regStream spreads argument bytes over a register window and a spill
// area. The write side accumulates spill bytes in a Buffer flushed onto
// the guest stack; the read side reads the spill directly from guest
// memory above the return slot.
type regStream struct {
	m       *Machine
	argRegs []emulator.Reg
	fltRegs []emulator.Reg
	groff   int
	vroff   int
	stoff   int
	value   uint64
	spill   *Buffer
	stack   interface {
		io.ReaderAt
		io.WriterAt
	}
}

func newArgWriter(m *Machine, argRegs, fltRegs []emulator.Reg) *regStream {
	spill := new(Buffer)
	return &regStream{m: m, argRegs: argRegs, fltRegs: fltRegs, spill: spill, stack: spill}
}

func newArgReader(m *Machine, argRegs, fltRegs []emulator.Reg, spillBase uint64) *regStream {
	var stack interface {
		io.ReaderAt
		io.WriterAt
	} = m.Pointer(spillBase)
	if m.prof.Order == emulator.BO_BIG_ENDIAN {
		stack = beStack{m.Pointer(spillBase), m.prof.WordSize}
	}
	return &regStream{m: m, argRegs: argRegs, fltRegs: fltRegs, stack: stack}
}

// align rounds the window offsets up to a word boundary so the next
// argument starts in a fresh register or stack slot.
func (rs *regStream) align() {
	ws := rs.m.prof.WordSize
	rs.groff = emulator.Align(rs.groff, ws)
	rs.stoff = emulator.Align(rs.stoff, ws)
}

func (rs *regStream) window() int {
	return len(rs.argRegs) * rs.m.prof.WordSize
}

func (rs *regStream) fltWindow() int {
	return len(rs.fltRegs) * rs.m.prof.WordSize
}

func (rs *regStream) BlockSize() int {
	return rs.m.prof.WordSize
}

func (rs *regStream) Offset() uint64 {
	return 0
}

func (rs *regStream) Skip(n int) error {
	if rs.groff < rs.window() {
		rs.groff += n
	} else {
		rs.stoff += n
	}
	return nil
}

func (rs *regStream) Read(b []byte) (int, error) {
	ws := rs.m.prof.WordSize
	if rs.groff >= rs.window() {
		n, err := rs.stack.ReadAt(b, int64(rs.stoff))
		rs.stoff += n
		return n, err
	}
	var i int
	count := rs.groff / ws
	if i = rs.groff % ws; i > 0 {
		i = copy(b, ToPtrRaw(&rs.value)[i:ws])
		rs.groff += i
		count++
	}
	for i < len(b) {
		if rs.groff >= rs.window() {
			n, err := rs.stack.ReadAt(b[i:], int64(rs.stoff))
			rs.stoff += n
			return i + n, err
		}
		var err error
		rs.value, err = rs.m.emu.RegRead(rs.argRegs[count])
		if err != nil {
			return i, err
		}
		n := copy(b[i:], ToPtrRaw(&rs.value)[:ws])
		i += n
		rs.groff += n
		count++
	}
	return i, nil
}

func (rs *regStream) ReadFloat() (float32, error) {
	ws := rs.m.prof.WordSize
	if rs.vroff >= rs.fltWindow() {
		var f float32
		_, err := rs.stack.ReadAt(ToPtrRaw(&f), int64(rs.stoff))
		rs.stoff += 4
		return f, err
	}
	rs.vroff = emulator.Align(rs.vroff, ws)
	count := rs.vroff / ws
	value, err := rs.m.emu.RegRead(rs.fltRegs[count])
	if err != nil {
		return 0, err
	}
	rs.vroff += ws
	return math.Float32frombits(uint32(value)), nil
}

func (rs *regStream) ReadDouble() (float64, error) {
	ws := rs.m.prof.WordSize
	if rs.vroff >= rs.fltWindow() {
		var d float64
		_, err := rs.stack.ReadAt(ToPtrRaw(&d), int64(rs.stoff))
		rs.stoff += 8
		return d, err
	}
	rs.vroff = emulator.Align(rs.vroff, ws)
	count := rs.vroff / ws
	value, err := rs.m.emu.RegRead(rs.fltRegs[count])
	if err != nil {
		return 0, err
	}
	rs.vroff += ws
	return math.Float64frombits(value), nil
}

func (rs *regStream) ReadString() (string, error) {
	return "", errors.ErrUnsupported
}

func (rs *regStream) ReadStream() (encoding.Stream, error) {
	ws := rs.m.prof.WordSize
	b := make([]byte, ws)
	_, err := rs.Read(b)
	if err != nil {
		return nil, err
	}
	var addr uint64
	if ws == 4 {
		addr = uint64(ReadPtrRaw[uint32](b))
	} else {
		addr = ReadPtrRaw[uint64](b)
	}
	return PointerStream(rs.m.Pointer(addr), rs.m.StackAlloc, ws), nil
}

func (rs *regStream) Write(b []byte) (int, error) {
	ws := rs.m.prof.WordSize
	if rs.groff >= rs.window() {
		n, err := rs.stack.WriteAt(b, int64(rs.stoff))
		rs.stoff += n
		return n, err
	}
	var i int
	count := rs.groff / ws
	if i = rs.groff % ws; i > 0 {
		i = copy(ToPtrRaw(&rs.value)[i:ws], b)
		err := rs.m.emu.RegWrite(rs.argRegs[count], rs.value)
		if err != nil {
			return 0, err
		}
		rs.groff += i
		count++
	}
	for i < len(b) {
		if rs.groff >= rs.window() {
			n, err := rs.stack.WriteAt(b[i:], int64(rs.stoff))
			rs.stoff += n
			return i + n, err
		}
		rs.value = 0
		n := copy(ToPtrRaw(&rs.value)[:ws], b[i:])
		err := rs.m.emu.RegWrite(rs.argRegs[count], rs.value)
		if err != nil {
			return i, err
		}
		i += n
		rs.groff += n
		count++
	}
	return i, nil
}

func (rs *regStream) WriteFloat(f float32) error {
	ws := rs.m.prof.WordSize
	if rs.vroff >= rs.fltWindow() {
		_, err := rs.stack.WriteAt(ToPtrRaw(&f), int64(rs.stoff))
		rs.stoff += 4
		return err
	}
	rs.vroff = emulator.Align(rs.vroff, ws)
	count := rs.vroff / ws
	err := rs.m.emu.RegWrite(rs.fltRegs[count], uint64(math.Float32bits(f)))
	if err != nil {
		return err
	}
	rs.vroff += ws
	return nil
}

func (rs *regStream) WriteDouble(d float64) error {
	ws := rs.m.prof.WordSize
	if rs.vroff >= rs.fltWindow() {
		_, err := rs.stack.WriteAt(ToPtrRaw(&d), int64(rs.stoff))
		rs.stoff += 8
		return err
	}
	rs.vroff = emulator.Align(rs.vroff, ws)
	count := rs.vroff / ws
	err := rs.m.emu.RegWrite(rs.fltRegs[count], math.Float64bits(d))
	if err != nil {
		return err
	}
	rs.vroff += ws
	return nil
}

func (rs *regStream) WriteString(string) error {
	return errors.ErrUnsupported
}

func (rs *regStream) WriteStream(size int) (encoding.Stream, error) {
	ptr, err := rs.m.StackAlloc(uint64(size))
	if err != nil {
		return nil, err
	}
	addr := ptr.Address()
	_, err = rs.Write(ToPtrRaw(&addr)[:rs.m.prof.WordSize])
	if err != nil {
		return nil, err
	}
	return PointerStream(ptr, rs.m.StackAlloc, rs.m.prof.WordSize), nil
}

// Flush writes the spill area below SP, then reserves shadow space. The
// reserved extent is the aligned stoff, not the buffer length, so a
// trailing partial slot still occupies a full one.
func (rs *regStream) Flush(shadow int) error {
	if rs.stoff == 0 && shadow == 0 {
		return nil
	}
	sp, err := rs.m.SP()
	if err != nil {
		return err
	}
	if rs.stoff > 0 {
		b := make([]byte, rs.stoff)
		copy(b, *rs.spill)
		sp -= uint64(rs.stoff)
		err = rs.m.emu.MemWrite(sp, guestWords(rs.m, b))
		if err != nil {
			return err
		}
	}
	sp -= uint64(shadow)
	return rs.m.SetSP(sp)
}

// guestWords converts host-order word bytes to the profile's byte order;
// identity on little-endian targets. Trailing partial words pass through.
func guestWords(m *Machine, b []byte) []byte {
	if m.prof.Order == emulator.BO_LITTLE_ENDIAN {
		return b
	}
	return swapWords(b, m.prof.WordSize)
}

// beStack exposes big-endian guest stack memory to the stream's
// host-order byte domain, swapping whole words in place.
type beStack struct {
	ptr emulator.Pointer
	ws  int
}

func (s beStack) ReadAt(b []byte, off int64) (int, error) {
	n, err := s.ptr.ReadAt(b, off)
	if err == nil {
		copy(b[:n], swapWords(b[:n], s.ws))
	}
	return n, err
}

func (s beStack) WriteAt(b []byte, off int64) (int, error) {
	return s.ptr.WriteAt(swapWords(b, s.ws), off)
}

func swapWords(b []byte, ws int) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	for i := 0; i+ws <= len(out); i += ws {
		for l, r := i, i+ws-1; l < r; l, r = l+1, r-1 {
			out[l], out[r] = out[r], out[l]
		}
	}
	return out
}
