package program

import (
	"fmt"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/idl"
)

// AccountsFor resolves every account role an instruction declares from the
// program ID and the signer. recipient is used only by the withdrawals.
func AccountsFor(program address.Address, instruction string, signer, recipient address.Address) (map[string]address.Address, error) {
	ins, err := idl.MustLoad().Instruction(instruction)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ledger.ErrUnknownInstruction, instruction)
	}
	addrs := address.ForProgram(program)
	accounts := make(map[string]address.Address, len(ins.Accounts))
	for _, acct := range ins.Accounts {
		switch acct.Name {
		case idl.RoleGlobalState:
			accounts[acct.Name] = addrs.Global
		case idl.RoleVault:
			accounts[acct.Name] = addrs.Vault
		case idl.RoleFocusPool:
			accounts[acct.Name] = addrs.FocusPool
		case idl.RoleFailurePool:
			accounts[acct.Name] = addrs.FailurePool
		case idl.RoleUserState:
			accounts[acct.Name] = addrs.UserState(signer)
		case idl.RoleUser, idl.RoleAuthority:
			accounts[acct.Name] = signer
		case idl.RoleRecipient:
			if recipient.IsZero() {
				recipient = signer
			}
			accounts[acct.Name] = recipient
		default:
			return nil, fmt.Errorf("no resolver for account role %q", acct.Name)
		}
	}
	return accounts, nil
}
