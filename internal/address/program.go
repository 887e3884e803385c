package address

// ProgramAddresses is the fixed account set every instruction references.
type ProgramAddresses struct {
	Program     Address `json:"program"`
	Global      Address `json:"global_state"`
	Vault       Address `json:"vault"`
	FocusPool   Address `json:"focus_pool_vault"`
	FailurePool Address `json:"failure_pool_vault"`
}

// ForProgram derives the global ledger and its custody accounts.
func ForProgram(program Address) ProgramAddresses {
	global := Derive(program, TagGlobalState)
	return ProgramAddresses{
		Program:     program,
		Global:      global,
		Vault:       Derive(program, TagVault, global),
		FocusPool:   Derive(program, TagFocusPool, global),
		FailurePool: Derive(program, TagFailurePool, global),
	}
}

// UserState derives the session record address for owner.
func UserState(program, owner Address) Address {
	return Derive(program, TagUserState, owner)
}

// UserState derives the session record address for owner under p.Program.
func (p ProgramAddresses) UserState(owner Address) Address {
	return UserState(p.Program, owner)
}
