package abi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/microsandbox/internal/abi"
)

func TestMapStackPointsAtTop(t *testing.T) {
	m, policy, eng := newMachine(t, abi.ARCH_X86_32, abi.OS_LINUX)
	prof := policy.Profile
	sp, err := m.SP()
	require.NoError(t, err)
	assert.Equal(t, prof.StackBase+prof.StackSize, sp)
	regions, err := eng.MemRegions()
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.True(t, regions[0].Contains(prof.StackBase))
	assert.True(t, regions[0].Contains(prof.StackBase+prof.StackSize-1))
	assert.False(t, regions[0].Contains(prof.StackBase+prof.StackSize))
}

func TestPushPop(t *testing.T) {
	pairs := []struct {
		arch abi.ArchID
		os   abi.OSID
	}{
		{abi.ARCH_X86_32, abi.OS_LINUX},
		{abi.ARCH_X86_64, abi.OS_LINUX},
		{abi.ARCH_ARMB, abi.OS_LINUX},
		{abi.ARCH_AARCH64B, abi.OS_LINUX},
	}
	values := []uint64{1, 0xdeadbeef, 0x1122334455667788}
	for _, pair := range pairs {
		t.Run(pair.arch.String(), func(t *testing.T) {
			m, policy, _ := newMachine(t, pair.arch, pair.os)
			top, err := m.SP()
			require.NoError(t, err)
			ws := uint64(policy.Profile.WordSize)
			for _, v := range values {
				require.NoError(t, m.Push(v))
			}
			sp, err := m.SP()
			require.NoError(t, err)
			assert.Equal(t, top-ws*uint64(len(values)), sp)
			for i := len(values) - 1; i >= 0; i-- {
				got, err := m.Pop()
				require.NoError(t, err)
				want := values[i]
				if ws == 4 {
					want = uint64(uint32(want))
				}
				assert.Equal(t, want, got)
			}
			sp, err = m.SP()
			require.NoError(t, err)
			assert.Equal(t, top, sp)
		})
	}
}

func TestPushStringExactBytes(t *testing.T) {
	m, _, _ := newMachine(t, abi.ARCH_X86_32, abi.OS_LINUX)
	top, err := m.SP()
	require.NoError(t, err)
	addr, err := m.PushString("abc")
	require.NoError(t, err)
	assert.Equal(t, top-4, addr)
	sp, err := m.SP()
	require.NoError(t, err)
	assert.Equal(t, addr, sp)
	s, err := m.Pointer(addr).MemReadString()
	require.NoError(t, err)
	assert.Equal(t, "abc", s)
}

func TestStackAllocAlignment(t *testing.T) {
	m, policy, _ := newMachine(t, abi.ARCH_AARCH64L, abi.OS_LINUX)
	require.EqualValues(t, 16, policy.Profile.StackAlign)
	top, err := m.SP()
	require.NoError(t, err)
	ptr, err := m.StackAlloc(1)
	require.NoError(t, err)
	assert.Equal(t, top-16, ptr.Address())
	require.NoError(t, m.StackFree(1))
	sp, err := m.SP()
	require.NoError(t, err)
	assert.Equal(t, top, sp)
}

func TestWordBigEndian(t *testing.T) {
	m, _, eng := newMachine(t, abi.ARCH_ARMB, abi.OS_LINUX)
	require.NoError(t, m.PutWord(0x100000, 0x11223344))
	raw, err := eng.MemRead(0x100000, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44}, raw)
	v, err := m.Word(0x100000)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x11223344), v)
}
