package ledger

import (
	"fmt"

	"github.com/rpggio/focusstake/internal/codec"
)

// DecodeGlobal decodes the data of a global_state account.
func DecodeGlobal(acct *Account) (*GlobalLedger, error) {
	if acct.Kind != KindGlobal {
		return nil, fmt.Errorf("account %s is %s, not %s", acct.Address.Short(), acct.Kind, KindGlobal)
	}
	var g GlobalLedger
	if err := codec.Unmarshal(acct.Data, &g); err != nil {
		return nil, fmt.Errorf("decoding global ledger: %w", err)
	}
	return &g, nil
}

// DecodeSession decodes the data of a user_state account.
func DecodeSession(acct *Account) (*SessionRecord, error) {
	if acct.Kind != KindSession {
		return nil, fmt.Errorf("account %s is %s, not %s", acct.Address.Short(), acct.Kind, KindSession)
	}
	var s SessionRecord
	if err := codec.Unmarshal(acct.Data, &s); err != nil {
		return nil, fmt.Errorf("decoding session record: %w", err)
	}
	return &s, nil
}
