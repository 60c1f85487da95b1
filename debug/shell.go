package debug

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5F5FD7")).
			Padding(0, 1)

	addrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	breakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const historyLines = 16

// Shell is the interactive stepping frontend over a session.
type Shell struct {
	session *Session
}

func NewShell(session *Session) *Shell {
	return &Shell{session: session}
}

// Run blocks until the user quits or ctx is done.
func (sh *Shell) Run(ctx context.Context) error {
	p := tea.NewProgram(newShellModel(sh.session), tea.WithContext(ctx))
	_, err := p.Run()
	if err == tea.ErrProgramKilled && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

type shellModel struct {
	session *Session
	input   textinput.Model
	lines   []string
	lastCmd string
	busy    bool
}

type execDoneMsg struct {
	pc   uint64
	atBp bool
	err  error
}

func newShellModel(session *Session) *shellModel {
	ti := textinput.New()
	ti.Prompt = "(sandbox) "
	ti.Focus()
	return &shellModel{session: session, input: ti}
}

func (m *shellModel) Init() tea.Cmd {
	m.say("stopped at " + addrStyle.Render(fmtAddr(m.session.PC())))
	return textinput.Blink
}

func (m *shellModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			if m.busy {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				line = m.lastCmd
			}
			if line == "" {
				return m, nil
			}
			return m.command(line)
		}

	case execDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.say(errorStyle.Render(msg.err.Error()))
			return m, nil
		}
		where := "stopped at " + addrStyle.Render(fmtAddr(msg.pc))
		if msg.atBp {
			where += breakStyle.Render("  [breakpoint]")
		}
		m.say(where)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *shellModel) command(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	m.say(helpStyle.Render("> " + line))
	switch cmd {
	case "s", "step":
		m.lastCmd = cmd
		m.busy = true
		return m, m.exec(m.session.Step)
	case "c", "continue":
		m.lastCmd = cmd
		m.busy = true
		return m, m.exec(m.session.Continue)
	case "b", "break":
		m.breakpoint(args, m.session.AddBreakpoint, "breakpoint set at ")
	case "d", "delete":
		m.breakpoint(args, m.session.RemoveBreakpoint, "breakpoint removed at ")
	case "r", "regs":
		m.registers()
	case "x", "examine":
		m.examine(args)
	case "i", "info":
		m.info()
	case "h", "help", "?":
		m.say(helpStyle.Render("s step  c continue  b/d <addr> breakpoints  r regs  x <addr> [n] memory  i info  q quit"))
	case "q", "quit":
		return m, tea.Quit
	default:
		m.say(errorStyle.Render("unknown command: " + cmd))
	}
	return m, nil
}

func (m *shellModel) exec(run func() (uint64, error)) tea.Cmd {
	return func() tea.Msg {
		pc, err := run()
		return execDoneMsg{pc: pc, atBp: m.session.AtBreakpoint(), err: err}
	}
}

func (m *shellModel) breakpoint(args []string, apply func(uint64) error, verb string) {
	if len(args) != 1 {
		m.say(errorStyle.Render("usage: b|d <addr>"))
		return
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		m.say(errorStyle.Render("bad address: " + args[0]))
		return
	}
	if err := apply(addr); err != nil {
		m.say(errorStyle.Render(err.Error()))
		return
	}
	m.say(verb + addrStyle.Render(fmtAddr(addr)))
}

func (m *shellModel) registers() {
	regs, err := m.session.Regs()
	if err != nil {
		m.say(errorStyle.Render(err.Error()))
		return
	}
	var b strings.Builder
	for i, r := range regs {
		fmt.Fprintf(&b, "%-6s %016x", r.Name, r.Value)
		if (i+1)%4 == 0 || i == len(regs)-1 {
			m.say(b.String())
			b.Reset()
		} else {
			b.WriteString("  ")
		}
	}
}

func (m *shellModel) examine(args []string) {
	if len(args) < 1 || len(args) > 2 {
		m.say(errorStyle.Render("usage: x <addr> [len]"))
		return
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		m.say(errorStyle.Render("bad address: " + args[0]))
		return
	}
	size := uint64(64)
	if len(args) == 2 {
		size, err = strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			m.say(errorStyle.Render("bad length: " + args[1]))
			return
		}
	}
	data, err := m.session.ReadMem(addr, size)
	if err != nil {
		m.say(errorStyle.Render(err.Error()))
		return
	}
	for off := 0; off < len(data); off += 16 {
		end := min(off+16, len(data))
		m.say(fmtAddr(addr+uint64(off)) + ": " + hexRow(data[off:end]))
	}
}

func (m *shellModel) info() {
	bps := m.session.Breakpoints()
	if len(bps) == 0 {
		m.say("no breakpoints")
		return
	}
	for _, addr := range bps {
		m.say("breakpoint " + addrStyle.Render(fmtAddr(addr)))
	}
}

func (m *shellModel) say(line string) {
	m.lines = append(m.lines, line)
	if n := len(m.lines) - historyLines; n > 0 {
		m.lines = m.lines[n:]
	}
}

func (m *shellModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("sandbox debugger"))
	b.WriteString("\n\n")
	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.busy {
		b.WriteString(helpStyle.Render("running..."))
	} else {
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter repeats last step/continue • h help • ctrl+c quit"))
	return b.String()
}

func fmtAddr(addr uint64) string {
	return fmt.Sprintf("%#x", addr)
}

func hexRow(data []byte) string {
	var b strings.Builder
	for i, c := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", c)
	}
	b.WriteString("  ")
	for _, c := range data {
		if c >= 0x20 && c < 0x7f {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}
