package debug_test

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/microsandbox/debug"
)

func serveSession(t *testing.T, ctx context.Context, session *debug.Session) (net.Addr, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := debug.NewServer(session, 0)
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ServeListener(ctx, ln)
	}()
	return ln.Addr(), errc
}

func dialServer(t *testing.T, addr net.Addr) (net.Conn, *bufio.Scanner) {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewScanner(conn)
}

func roundTrip(t *testing.T, conn net.Conn, sc *bufio.Scanner, cmd string) string {
	t.Helper()
	_, err := conn.Write([]byte(cmd + "\n"))
	require.NoError(t, err)
	require.True(t, sc.Scan(), "server reply to %q", cmd)
	return sc.Text()
}

func TestServerProtocol(t *testing.T) {
	session, eng := newSteppingSession(t)
	require.NoError(t, eng.MemWrite(codeBase, []byte{0xde, 0xad, 0xbe, 0xef}))
	addr, errc := serveSession(t, context.Background(), session)
	conn, sc := dialServer(t, addr)

	require.True(t, sc.Scan())
	assert.Equal(t, "ok sandbox pc=0x1000", sc.Text())

	assert.Equal(t, "ok pc=0x1004", roundTrip(t, conn, sc, "s"))
	assert.Equal(t, "ok", roundTrip(t, conn, sc, "b 0x100c"))
	assert.Equal(t, "ok 0x100c", roundTrip(t, conn, sc, "i"))
	assert.Equal(t, "ok pc=0x100c breakpoint", roundTrip(t, conn, sc, "c"))
	assert.Equal(t, "ok pc=0x100c", roundTrip(t, conn, sc, "pc"))

	regs := roundTrip(t, conn, sc, "r")
	assert.Contains(t, regs, "eip=0x100c")
	assert.Contains(t, regs, "eax=0x0")

	assert.Equal(t, "ok deadbeef", roundTrip(t, conn, sc, "x 0x1000 4"))
	reply := roundTrip(t, conn, sc, "x 0x1000")
	assert.Len(t, reply, len("ok ")+32, "default length is 16 bytes")

	assert.Equal(t, "ok", roundTrip(t, conn, sc, "d 0x100c"))
	assert.Equal(t, "ok", roundTrip(t, conn, sc, "i"))
	assert.Equal(t, "err unknown command", roundTrip(t, conn, sc, "zzz"))
	assert.Equal(t, "err usage: b|d <addr>", roundTrip(t, conn, sc, "b"))
	assert.Equal(t, "err bad address", roundTrip(t, conn, sc, "b nope"))

	assert.Equal(t, "ok bye", roundTrip(t, conn, sc, "q"))
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after quit")
	}
}

func TestServerContextCanceled(t *testing.T) {
	session, _ := newSteppingSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	_, errc := serveSession(t, ctx, session)

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop on cancellation")
	}
}

func TestServerCancelClosesClient(t *testing.T) {
	session, _ := newSteppingSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	addr, errc := serveSession(t, ctx, session)
	conn, sc := dialServer(t, addr)
	require.True(t, sc.Scan(), "greeting")

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop on cancellation")
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for sc.Scan() {
	}
	assert.False(t, sc.Scan(), "connection is closed")
}

func TestServerAddr(t *testing.T) {
	session, _ := newSteppingSession(t)
	srv := debug.NewServer(session, 5555)
	assert.Equal(t, "127.0.0.1:5555", srv.Addr())
}
