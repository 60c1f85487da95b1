package abi

// Boot layouts reproduce the exact pre-run state each OS/arch pairing
// expects: every push decrements SP before writing, strings are written
// NUL-terminated with no padding between them.

func bootWinX86_32(m *Machine, sentinel uint64, env *BootEnv) error {
	for _, v := range []uint64{2, 1, 0, sentinel} {
		if err := m.Push(v); err != nil {
			return err
		}
	}
	return nil
}

func bootWinX86_64(m *Machine, sentinel uint64, env *BootEnv) error {
	for i := 0; i < 4; i++ {
		if err := m.Push(0); err != nil {
			return err
		}
	}
	return m.Push(sentinel)
}

func bootLinuxX86(m *Machine, sentinel uint64, env *BootEnv) error {
	if !env.Mimic {
		return m.Push(sentinel)
	}
	envPtrs, argvPtrs, err := writeStrings(m, env)
	if err != nil {
		return err
	}
	if err := m.Push(sentinel); err != nil {
		return err
	}
	return pushVectors(m, envPtrs, argvPtrs)
}

func bootLinuxARM(m *Machine, sentinel uint64, env *BootEnv) error {
	if env.Mimic {
		envPtrs, argvPtrs, err := writeStrings(m, env)
		if err != nil {
			return err
		}
		if err := pushVectors(m, envPtrs, argvPtrs); err != nil {
			return err
		}
	}
	return m.emu.RegWrite(m.prof.LR, sentinel)
}

func bootRaw(m *Machine, sentinel uint64, env *BootEnv) error {
	return m.emu.RegWrite(m.prof.LR, sentinel)
}

func writeStrings(m *Machine, env *BootEnv) (envPtrs, argvPtrs []uint64, err error) {
	for _, e := range env.Envp {
		ptr, err := m.PushString(e)
		if err != nil {
			return nil, nil, err
		}
		envPtrs = append(envPtrs, ptr)
	}
	for _, a := range env.Argv {
		ptr, err := m.PushString(a)
		if err != nil {
			return nil, nil, err
		}
		argvPtrs = append(argvPtrs, ptr)
	}
	return envPtrs, argvPtrs, nil
}

// pushVectors lays out envp and argv so that after the final push the
// stack reads, from SP upward: argc, argv pointers, NULL, envp pointers,
// NULL.
func pushVectors(m *Machine, envPtrs, argvPtrs []uint64) error {
	if err := m.Push(0); err != nil {
		return err
	}
	for i := len(envPtrs) - 1; i >= 0; i-- {
		if err := m.Push(envPtrs[i]); err != nil {
			return err
		}
	}
	if err := m.Push(0); err != nil {
		return err
	}
	for i := len(argvPtrs) - 1; i >= 0; i-- {
		if err := m.Push(argvPtrs[i]); err != nil {
			return err
		}
	}
	return m.Push(uint64(len(argvPtrs)))
}
