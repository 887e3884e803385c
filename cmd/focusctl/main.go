package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/client"
	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/rpc"
	"github.com/rpggio/focusstake/internal/transport"
	"github.com/rpggio/focusstake/internal/tx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	url     string
	token   string
	keyPath string
	program string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "focusctl",
		Short:         "Stake tokens on focus sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.url, "url", envOr("FOCUSCTL_URL", "http://localhost:8080/rpc"), "node JSON-RPC endpoint")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("FOCUSCTL_TOKEN"), "bearer token")
	root.PersistentFlags().StringVar(&opts.keyPath, "key", envOr("FOCUSCTL_KEY", defaultKeyPath()), "private key file")
	root.PersistentFlags().StringVar(&opts.program, "program", "", "program ID (hex); default program when empty")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(newKeygenCmd(opts))
	root.AddCommand(newAddressCmd(opts))
	root.AddCommand(newAirdropCmd(opts))
	root.AddCommand(newBalanceCmd(opts))
	root.AddCommand(newInitCmd(opts))
	root.AddCommand(newStartCmd(opts))
	root.AddCommand(newEndCmd(opts, "complete", "Complete the active session and recover the stake", (*client.Client).CompleteSession))
	root.AddCommand(newEndCmd(opts, "fail", "Abandon the active session and forfeit the stake", (*client.Client).FailSession))
	root.AddCommand(newEndCmd(opts, "claim", "Claim a deferred session payout", (*client.Client).ClaimRewards))
	root.AddCommand(newTaskCmd(opts))
	root.AddCommand(newWithdrawCmd(opts))
	root.AddCommand(newStateCmd(opts))
	root.AddCommand(newSessionCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newActivityCmd(opts))
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultKeyPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "focusstake.key"
	}
	return filepath.Join(dir, "focusstake", "id.key")
}

func (o *options) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), o.timeout)
}

func (o *options) programAddress() (address.Address, error) {
	if o.program == "" {
		return address.DefaultProgram, nil
	}
	addr, err := address.Parse(o.program)
	if err != nil {
		return address.Address{}, fmt.Errorf("--program: %w", err)
	}
	return addr, nil
}

func (o *options) rpcClient() (*rpc.Client, error) {
	return rpc.NewClient(rpc.ClientConfig{URL: o.url, Token: o.token})
}

// session opens a node connection and a client signing with the key file.
func (o *options) session() (*client.Client, error) {
	prog, err := o.programAddress()
	if err != nil {
		return nil, err
	}
	key, err := tx.LoadKeypair(o.keyPath)
	if err != nil {
		return nil, fmt.Errorf("%w (run focusctl keygen)", err)
	}
	conn, err := o.rpcClient()
	if err != nil {
		return nil, err
	}
	return client.New(conn, key, prog, nil), nil
}

func newKeygenCmd(opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a wallet key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(opts.keyPath); err == nil && !force {
				return fmt.Errorf("%s exists; use --force to replace it", opts.keyPath)
			}
			key, err := tx.GenerateKeypair()
			if err != nil {
				return err
			}
			if err := tx.SaveKeypair(opts.keyPath, key); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "address: %s\nkey: %s\n", key.Address(), opts.keyPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key")
	return cmd
}

func newAddressCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the wallet and program addresses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			prog, err := opts.programAddress()
			if err != nil {
				return err
			}
			key, err := tx.LoadKeypair(opts.keyPath)
			if err != nil {
				return err
			}
			addrs := address.ForProgram(prog)
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "wallet: %s\n", key.Address())
			_, _ = fmt.Fprintf(out, "session: %s\n", addrs.UserState(key.Address()))
			_, _ = fmt.Fprintf(out, "global: %s\nvault: %s\nfocus_pool: %s\nfailure_pool: %s\n",
				addrs.Global, addrs.Vault, addrs.FocusPool, addrs.FailurePool)
			return nil
		},
	}
}

func newAirdropCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop <tokens> [address]",
		Short: "Request faucet tokens",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := ledger.ParseTokens(args[0])
			if err != nil {
				return err
			}
			to, err := targetAddress(opts, args[1:])
			if err != nil {
				return err
			}
			conn, err := opts.rpcClient()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context()
			defer cancel()
			receipt, err := conn.RequestAirdrop(ctx, to, amount)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "airdropped %s to %s (%s)\n", ledger.ToTokens(amount), to, receipt.Signature)
			return nil
		},
	}
}

func newBalanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show an account balance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := targetAddress(opts, args)
			if err != nil {
				return err
			}
			conn, err := opts.rpcClient()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context()
			defer cancel()
			balance, err := conn.GetBalance(ctx, addr)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s tokens (%d base units)\n", ledger.ToTokens(balance), balance)
			return nil
		},
	}
}

// targetAddress returns the address in args, or the key file address.
func targetAddress(opts *options, args []string) (address.Address, error) {
	if len(args) > 0 && args[0] != "" {
		return address.Parse(args[0])
	}
	key, err := tx.LoadKeypair(opts.keyPath)
	if err != nil {
		return address.Address{}, err
	}
	return key.Address(), nil
}

func newInitCmd(opts *options) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the global ledger with this wallet as authority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.session()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context()
			defer cancel()
			receipt, err := c.Initialize(ctx, ledger.CompletionMode(mode))
			if err != nil {
				return err
			}
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "completion mode: immediate|deferred")
	return cmd
}

func newStartCmd(opts *options) *cobra.Command {
	var stake string
	var minutes uint64
	var tasks []string
	cmd := &cobra.Command{
		Use:   "start --stake <tokens> --minutes <n> --task <description>...",
		Short: "Stake tokens on a focus session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := ledger.ParseTokens(stake)
			if err != nil {
				return fmt.Errorf("--stake: %w", err)
			}
			list := make([]ledger.Task, 0, len(tasks))
			for _, d := range tasks {
				list = append(list, ledger.Task{Description: strings.TrimSpace(d)})
			}
			c, err := opts.session()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context()
			defer cancel()
			receipt, err := c.StartSession(ctx, amount, minutes, list)
			if err != nil {
				return err
			}
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
	cmd.Flags().StringVar(&stake, "stake", "0.01", "stake in tokens")
	cmd.Flags().Uint64Var(&minutes, "minutes", 25, "session length in minutes")
	cmd.Flags().StringArrayVar(&tasks, "task", nil, "task description (repeatable)")
	return cmd
}

func newEndCmd(opts *options, use, short string, op func(*client.Client, context.Context) (*ledger.Receipt, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.session()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context()
			defer cancel()
			receipt, err := op(c, ctx)
			if err != nil {
				return err
			}
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
}

func newTaskCmd(opts *options) *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "task <index>...",
		Short: "Mark session tasks as done",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indices := make([]uint32, len(args))
			for i, arg := range args {
				index, err := strconv.ParseUint(arg, 10, 32)
				if err != nil {
					return fmt.Errorf("task index %q: %w", arg, err)
				}
				indices[i] = uint32(index)
			}
			c, err := opts.session()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context()
			defer cancel()
			receipts, err := c.UpdateTasks(ctx, indices, !undo)
			for _, r := range receipts {
				printReceipt(cmd.OutOrStdout(), r)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "mark the tasks as not done")
	return cmd
}

func newWithdrawCmd(opts *options) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "withdraw focus|failure <tokens>",
		Short: "Withdraw from a pool (authority only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := ledger.ParseTokens(args[1])
			if err != nil {
				return err
			}
			var recipient address.Address
			if to != "" {
				if recipient, err = address.Parse(to); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}
			c, err := opts.session()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context()
			defer cancel()

			var receipt *ledger.Receipt
			switch args[0] {
			case "focus":
				receipt, err = c.WithdrawFocusPool(ctx, amount, recipient)
			case "failure":
				receipt, err = c.WithdrawFailurePool(ctx, amount, recipient)
			default:
				return fmt.Errorf("unknown pool %q: want focus or failure", args[0])
			}
			if err != nil {
				return err
			}
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address; defaults to the authority")
	return cmd
}

func newStateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the global ledger and pool balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := opts.rpcClient()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context()
			defer cancel()
			state, err := conn.GetProgramState(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "authority: %s\nmode: %s\nsessions: %d\n",
				state.Global.Authority, state.Global.CompletionMode, state.Global.TotalSessions)
			_, _ = fmt.Fprintf(out, "vault: %s\nfocus_pool: %s\nfailure_pool: %s\n",
				ledger.ToTokens(state.VaultBalance), ledger.ToTokens(state.FocusPoolBalance), ledger.ToTokens(state.FailurePoolBalance))
			return nil
		},
	}
}

func newSessionCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "session [owner]",
		Short: "Show a focus session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := targetAddress(opts, args)
			if err != nil {
				return err
			}
			conn, err := opts.rpcClient()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context()
			defer cancel()
			view, err := conn.GetSession(ctx, owner)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, view)
			}
			rec := view.Record
			_, _ = fmt.Fprintf(out, "status: %s\nstake: %s\n", rec.Status, ledger.ToTokens(rec.StakeAmount))
			if view.IsActive {
				_, _ = fmt.Fprintf(out, "remaining: %s\n", time.Duration(view.RemainingSeconds)*time.Second)
			}
			if rec.PendingBalance > 0 {
				_, _ = fmt.Fprintf(out, "pending: %s\n", ledger.ToTokens(rec.PendingBalance))
			}
			for i, task := range rec.Tasks {
				mark := " "
				if task.Completed {
					mark = "x"
				}
				_, _ = fmt.Fprintf(out, "[%s] %d %s\n", mark, i, task.Description)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <signature>",
		Short: "Show the receipt of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := opts.rpcClient()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context()
			defer cancel()
			receipt, err := conn.GetSignatureStatus(ctx, args[0])
			if err != nil {
				return err
			}
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
}

func newActivityCmd(opts *options) *cobra.Command {
	var actor, kind string
	var limit int
	var mine bool
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "List recent ledger activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := transport.ActivityParams{Actor: actor, Limit: limit}
			if kind != "" {
				t := activity.ActivityType(kind)
				params.Type = &t
			}
			if mine {
				key, err := tx.LoadKeypair(opts.keyPath)
				if err != nil {
					return err
				}
				params.Actor = key.Address().String()
			}
			conn, err := opts.rpcClient()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context()
			defer cancel()
			entries, err := conn.GetRecentActivity(ctx, params)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no activity")
				return nil
			}
			for _, e := range entries {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.ActivityType, e.Summary)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "only entries signed by this address")
	cmd.Flags().StringVar(&kind, "type", "", "only entries of this type")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries")
	cmd.Flags().BoolVar(&mine, "mine", false, "only entries signed by this wallet")
	return cmd
}

func printReceipt(w io.Writer, r *ledger.Receipt) {
	_, _ = fmt.Fprintf(w, "%s %s %s\n", r.Instruction, r.Status, r.Signature)
	if r.ErrorCode != "" {
		_, _ = fmt.Fprintf(w, "error: %s: %s\n", r.ErrorCode, r.Error)
	}
	for _, t := range r.Transfers {
		from := "mint"
		if !t.From.IsZero() {
			from = t.From.Short()
		}
		_, _ = fmt.Fprintf(w, "  %s -> %s %s\n", from, t.To.Short(), ledger.ToTokens(t.Amount))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
