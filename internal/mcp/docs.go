package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `focusstake is a staking ledger for focus sessions.

A user stakes tokens on a timed session with a task checklist. Completing the
session returns 99% of the stake; failing it sends 99% to the failure pool.
The other 1% of every stake goes to the focus pool at start.

Read tools:
- get_global_state: authority, completion mode, pool balances.
- get_session(owner): the session record of a wallet.
- get_balance(address), get_signature_status(signature), get_recent_activity.
- derive_addresses(owner?): every account an instruction needs.

Writes go through submit_transaction with a transaction signed by the user's
key. Never fabricate signatures. A DuplicateSubmission error means the
transaction was already processed; its receipt is the outcome.

Docs:
- focusstake://docs/index
- focusstake://docs/instructions
- focusstake://docs/errors
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "focusstake://docs/index",
		Name:        "docs_index",
		Title:       "focusstake docs index",
		Description: "Entry point: accounts, lifecycle and where to read next.",
		Content: `# focusstake

## Accounts

All addresses are 32 bytes, hex encoded, derived from the program ID:

- global_state: the singleton ledger (authority, pool totals, session count).
- vault: holds the 99% remainder of every active stake.
- focus_pool_vault: collects the 1% skim.
- failure_pool_vault: collects forfeited stakes.
- user_state: one session record per wallet, derived from the wallet address.

Use ` + "`derive_addresses`" + ` instead of computing them yourself.

## Session lifecycle

1. ` + "`start_focus_session`" + ` stakes tokens. 1% goes to the focus pool and
   99% to the vault. A refundable record deposit is held on the session record.
2. ` + "`update_task`" + ` toggles checklist items.
3. ` + "`complete_focus_session`" + ` returns the 99% to the user, or
   ` + "`fail_focus_session`" + ` sends it to the failure pool.
4. In deferred completion mode the payout waits on the record until
   ` + "`claim_rewards`" + `.

A wallet has at most one session record at a time.

## More

- ` + "`focusstake://docs/instructions`" + ` for argument and account shapes.
- ` + "`focusstake://docs/errors`" + ` for error codes and what to do.
`,
	},
	{
		URI:         "focusstake://docs/instructions",
		Name:        "docs_instructions",
		Title:       "Instructions",
		Description: "Instruction names, arguments and account roles.",
		Content: `# Instructions

A transaction message names the program, one instruction, its JSON
arguments, the accounts by role and the signer. The signature is ed25519
over the SHA-256 of the RFC 8785 canonical JSON of the message, where the
arguments are replaced by args_hash: the hex SHA-256 of the arguments with
sorted keys, no whitespace and number literals unchanged. Signatures are
lower-case hex.

| Instruction | Arguments | Accounts |
|---|---|---|
| initialize | completion_mode? ("immediate", "deferred") | global_state, vault, focus_pool_vault, failure_pool_vault, authority |
| start_focus_session | stake_amount, duration_minutes, tasks[{description, completed}] | user_state, global_state, vault, focus_pool_vault, user |
| complete_focus_session | none | user_state, global_state, vault, user |
| fail_focus_session | none | user_state, global_state, vault, failure_pool_vault, user |
| claim_rewards | none | user_state, global_state, vault, failure_pool_vault, user |
| update_task | task_index, completed | user_state, user |
| withdraw_focus_pool | amount | global_state, focus_pool_vault, recipient, authority |
| withdraw_failure_pool | amount | global_state, failure_pool_vault, recipient, authority |

Amounts are base units; 1 token is 1000000000 base units. The minimum
stake is 10000000. Durations are 1 to 480 minutes; tasks 1 to 20.
`,
	},
	{
		URI:         "focusstake://docs/errors",
		Name:        "docs_errors",
		Title:       "Error codes",
		Description: "Ledger error codes and recovery.",
		Content: `# Errors

Rejected transactions change nothing, but a failed receipt is recorded under
the signature, so resubmitting returns the same outcome.

- NotInitialized / AlreadyInitialized: ledger lifecycle.
- StakeTooLow, InvalidDuration, InvalidTasks: start arguments out of range.
- SessionAlreadyActive: the wallet already has a session record.
- SessionNotFound, SessionNotActive, SessionStillActive: wrong session state.
- NothingToClaim: no deferred payout.
- TaskIndexOutOfBounds: update_task index past the checklist.
- InsufficientPoolBalance, InsufficientFunds, InvalidAmount: money checks.
- Unauthorized: the signer may not run the instruction.
- AccountMismatch: a declared account is not the derived one.
- InvalidSignature, InvalidArguments, UnknownInstruction: malformed transaction.
- DuplicateSubmission: already processed; not an error for the caller.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
