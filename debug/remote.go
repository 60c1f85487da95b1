package debug

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Server exposes a session over TCP with a newline-delimited text
// protocol, one client at a time. Commands mirror the interactive shell:
// s, c, b <addr>, d <addr>, r, x <addr> [len], pc, i, q.
type Server struct {
	session *Session
	addr    string
}

func NewServer(session *Session, port int) *Server {
	return &Server{
		session: session,
		addr:    net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
	}
}

func (srv *Server) Addr() string {
	return srv.addr
}

// Serve blocks until a client sends q or ctx is done.
func (srv *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", srv.addr)
	if err != nil {
		return err
	}
	return srv.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener, which it takes
// ownership of.
func (srv *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-done:
		}
		return ln.Close()
	})
	g.Go(func() error {
		defer close(done)
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return err
			}
			stop := context.AfterFunc(gctx, func() { conn.Close() })
			quit := srv.serveConn(conn)
			stop()
			conn.Close()
			if quit {
				return nil
			}
			if gctx.Err() != nil {
				return gctx.Err()
			}
		}
	})
	err := g.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// serveConn handles one client, reporting whether it asked to shut the
// server down.
func (srv *Server) serveConn(conn net.Conn) bool {
	fmt.Fprintf(conn, "ok sandbox pc=%#x\n", srv.session.PC())
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "q" || fields[0] == "quit" {
			fmt.Fprintln(conn, "ok bye")
			return true
		}
		fmt.Fprintln(conn, srv.command(fields[0], fields[1:]))
	}
	return false
}

func (srv *Server) command(cmd string, args []string) string {
	switch cmd {
	case "s", "step":
		return srv.report(srv.session.Step())
	case "c", "continue":
		return srv.report(srv.session.Continue())
	case "b", "break":
		return srv.breakpoint(args, srv.session.AddBreakpoint)
	case "d", "delete":
		return srv.breakpoint(args, srv.session.RemoveBreakpoint)
	case "r", "regs":
		return srv.registers()
	case "x", "examine":
		return srv.examine(args)
	case "pc":
		return fmt.Sprintf("ok pc=%#x", srv.session.PC())
	case "i", "info":
		return srv.info()
	default:
		return "err unknown command"
	}
}

func (srv *Server) report(pc uint64, err error) string {
	if err != nil {
		return "err " + err.Error()
	}
	if srv.session.AtBreakpoint() {
		return fmt.Sprintf("ok pc=%#x breakpoint", pc)
	}
	return fmt.Sprintf("ok pc=%#x", pc)
}

func (srv *Server) breakpoint(args []string, apply func(uint64) error) string {
	if len(args) != 1 {
		return "err usage: b|d <addr>"
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return "err bad address"
	}
	if err := apply(addr); err != nil {
		return "err " + err.Error()
	}
	return "ok"
}

func (srv *Server) registers() string {
	regs, err := srv.session.Regs()
	if err != nil {
		return "err " + err.Error()
	}
	var b strings.Builder
	b.WriteString("ok")
	for _, r := range regs {
		fmt.Fprintf(&b, " %s=%#x", r.Name, r.Value)
	}
	return b.String()
}

func (srv *Server) examine(args []string) string {
	if len(args) < 1 || len(args) > 2 {
		return "err usage: x <addr> [len]"
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return "err bad address"
	}
	size := uint64(16)
	if len(args) == 2 {
		size, err = strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			return "err bad length"
		}
	}
	data, err := srv.session.ReadMem(addr, size)
	if err != nil {
		return "err " + err.Error()
	}
	return fmt.Sprintf("ok %x", data)
}

func (srv *Server) info() string {
	bps := srv.session.Breakpoints()
	var b strings.Builder
	b.WriteString("ok")
	for _, addr := range bps {
		fmt.Fprintf(&b, " %#x", addr)
	}
	return b.String()
}
