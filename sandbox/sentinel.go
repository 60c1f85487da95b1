package sandbox

// Guard addresses parked outside every mapped region. Execution arriving
// at ExitSentinel means the guest returned from its outermost frame;
// CallSentinel is the return address planted for direct invocations.
const (
	ExitSentinel uint64 = 0x1337beef
	CallSentinel uint64 = 0x1337babe
)

// checkSentinels verifies both guard addresses stay unmapped, so the
// engine can only reach them through a planted return address, never by
// falling through mapped code.
func (s *Sandbox) checkSentinels() error {
	regions, err := s.emu.MemRegions()
	if err != nil {
		return err
	}
	for _, addr := range [...]uint64{ExitSentinel, CallSentinel} {
		for _, r := range regions {
			if r.Contains(addr) {
				return &SentinelError{Addr: addr}
			}
		}
	}
	return nil
}

func (s *Sandbox) installExitGuard() error {
	_, err := s.AddBreakpoint(ExitSentinel, func(s *Sandbox) bool {
		s.markExited()
		return false
	})
	return err
}
