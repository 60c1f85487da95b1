package loader_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/microsandbox/emulator"
	"github.com/wnxd/microsandbox/emulator/emutest"
	"github.com/wnxd/microsandbox/loader"
)

func newEngine(t *testing.T) *emutest.Engine {
	t.Helper()
	eng, err := emutest.New(emulator.ARCH_ARM, emulator.BO_LITTLE_ENDIAN)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestRawLoad(t *testing.T) {
	eng := newEngine(t)
	data := make([]byte, 0x20)
	for i := range data {
		data[i] = byte(i)
	}

	img, err := loader.Raw{Base: 0x10010}.Load(eng, data, loader.Options{Name: "blob.bin"})
	require.NoError(t, err)
	assert.Equal(t, "blob.bin", img.Name)
	assert.Equal(t, uint64(0x10010), img.Base)
	assert.Equal(t, uint64(0x20), img.Size)
	assert.Zero(t, img.Entry)
	assert.Empty(t, img.Imports)

	buf, err := eng.MemRead(0x10010, uint64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, buf)

	regions, err := eng.MemRegions()
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, uint64(0x10000), regions[0].Addr, "mapping rounds down to the page")
	assert.Equal(t, uint64(0x1000), regions[0].Size)
	assert.Equal(t, emulator.MEM_PROT_READ|emulator.MEM_PROT_WRITE, regions[0].Prot)
}

func TestRawLoadStraddlesPages(t *testing.T) {
	eng := newEngine(t)
	data := make([]byte, 0x800)

	img, err := loader.Raw{Base: 0x10c00}.Load(eng, data, loader.Options{})
	require.NoError(t, err)
	assert.True(t, img.Contains(0x10c00))
	assert.True(t, img.Contains(0x113ff))
	assert.False(t, img.Contains(0x11400))

	regions, err := eng.MemRegions()
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, uint64(0x10000), regions[0].Addr)
	assert.Equal(t, uint64(0x2000), regions[0].Size)
}

func TestRawLoadEmpty(t *testing.T) {
	eng := newEngine(t)
	_, err := loader.Raw{Base: 0x10000}.Load(eng, nil, loader.Options{Name: "empty"})
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrImageEmpty)
	var lerr *loader.LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "empty", lerr.Name)
}

func TestImageLookups(t *testing.T) {
	img := &loader.Image{
		Base: 0x400000,
		Size: 0x1000,
		Imports: []loader.Import{
			{Library: "msvcrt.dll", Symbol: "puts", Stub: 0x400010},
			{Library: "kernel32.dll", Symbol: "ExitProcess", Stub: 0x400014},
		},
	}

	imp, ok := img.ImportAt(0x400014)
	require.True(t, ok)
	assert.Equal(t, "ExitProcess", imp.Symbol)
	_, ok = img.ImportAt(0x400018)
	assert.False(t, ok)

	imp, ok = img.FindImport("", "puts")
	require.True(t, ok)
	assert.Equal(t, "msvcrt.dll", imp.Library)
	imp, ok = img.FindImport("kernel32.dll", "ExitProcess")
	require.True(t, ok)
	assert.Equal(t, uint64(0x400014), imp.Stub)
	_, ok = img.FindImport("msvcrt.dll", "ExitProcess")
	assert.False(t, ok)
}
