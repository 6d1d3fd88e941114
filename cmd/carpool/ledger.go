package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"blackroad-os/carpool/pkg/cli"
	"blackroad-os/carpool/pkg/config"
	"blackroad-os/carpool/pkg/ledger"
	"blackroad-os/carpool/pkg/ledger/chain"
	"blackroad-os/carpool/pkg/processing/costs"
	"blackroad-os/carpool/pkg/routing"
)

// verifyChunk is how many entries `ledger verify` checks between progress
// updates.
const verifyChunk = 1000

var entryFlags struct {
	entryType      string
	amount         string
	from           string
	to             string
	currency       string
	metadata       string
	idempotencyKey string
	externalRef    string
}

var burnFlags struct {
	model            string
	promptTokens     int
	completionTokens int
}

var listFlags struct {
	entity    string
	entryType string
	limit     int
	offset    int
}

var verifyFlags struct {
	from     int64
	to       int64
	progress bool
}

var balanceFlags struct {
	currency string
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Append to, query and verify the credit ledger",
	Long: `Work with the append-only, hash-chained credit ledger.

Entities are written as type:id where type is one of user, org, agent or
system. Amounts are decimal strings and may not carry more decimal places
than ledger.amount_scale.`,
}

var ledgerAppendCmd = &cobra.Command{
	Use:   "append",
	Short: "Append an entry of any type",
	Long: `Append a ledger entry.

Examples:
  carpool ledger append --type reward --to agent:a1 --amount 5
  carpool ledger append --type payout --from agent:a1 --amount 5 --external-ref po_123
  carpool ledger append --type verification --metadata '{"note":"manual audit"}'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return appendEntry(cmd, entryFlags.entryType)
	},
}

var ledgerGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant credits to an entity",
	Long: `Record a credit_grant. Without --from the credits are minted. A --from
entity is debited like any other source, so a system entity used as the
source must be funded first.

Example:
  carpool ledger grant --to user:alice --amount 100 --idempotency-key order-42`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return appendEntry(cmd, string(ledger.EntryCreditGrant))
	},
}

var ledgerBurnCmd = &cobra.Command{
	Use:   "burn",
	Short: "Burn credits held by an entity",
	Long: `Record a credit_burn. Fails without writing if the balance is too low.

Give either --amount, or --model with the token counts of a completed call.
With --model the amount is the catalog rate applied to the usage, rounded to
ledger.amount_scale, and the usage is recorded in the entry metadata.

Examples:
  carpool ledger burn --from user:alice --amount 2.5
  carpool ledger burn --from user:alice --model gpt-4o --prompt-tokens 900 --completion-tokens 300`,
	Args: cobra.NoArgs,
	RunE: runBurn,
}

var ledgerTransferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Move credits between two entities",
	Long: `Record a transfer. Fails without writing if the source balance is too low.

Example:
  carpool ledger transfer --from user:alice --to org:acme --amount 10`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return appendEntry(cmd, string(ledger.EntryTransfer))
	},
}

var ledgerBalanceCmd = &cobra.Command{
	Use:   "balance <entity>",
	Short: "Show balances held by an entity",
	Long: `Show an entity's balances in every currency, or in one with --currency.

Examples:
  carpool ledger balance user:alice
  carpool ledger balance user:alice --currency ROADCOIN --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runBalance,
}

var ledgerEntriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List entries, newest first",
	Long: `List ledger entries, newest first.

Examples:
  carpool ledger entries --limit 20
  carpool ledger entries --entity user:alice --type transfer --output csv`,
	Args: cobra.NoArgs,
	RunE: runEntries,
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute hashes and check chain links",
	Long: `Verify a range of the chain. Without flags the whole chain is checked,
starting from the genesis link. A range that is inverted or reaches past
the tail is rejected with status 3.

The command exits with status 5 when the chain is broken.

Examples:
  carpool ledger verify
  carpool ledger verify --from 1000 --to 2000 --progress`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

var ledgerReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare cached balances with a replay of the chain",
	Long: `Replay every entry from genesis and report balances whose cached value
differs. The command fails when any drift is found.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerAppendCmd, ledgerGrantCmd, ledgerBurnCmd, ledgerTransferCmd,
		ledgerBalanceCmd, ledgerEntriesCmd, ledgerVerifyCmd, ledgerReconcileCmd)

	ledgerAppendCmd.Flags().StringVarP(&entryFlags.entryType, "type", "t", "", "entry type (credit_grant, credit_burn, transfer, verification, reward, payout)")
	_ = ledgerAppendCmd.MarkFlagRequired("type")

	for _, c := range []*cobra.Command{ledgerAppendCmd, ledgerGrantCmd, ledgerBurnCmd, ledgerTransferCmd} {
		f := c.Flags()
		f.StringVar(&entryFlags.amount, "amount", "", "amount as a decimal string")
		f.StringVar(&entryFlags.currency, "currency", "", "currency (defaults to ledger.default_currency)")
		f.StringVar(&entryFlags.metadata, "metadata", "", "metadata as a JSON object")
		f.StringVar(&entryFlags.idempotencyKey, "idempotency-key", "", "key that makes the append safe to repeat")
		f.StringVar(&entryFlags.externalRef, "external-ref", "", "payment processor reference")
		f.StringVar(&entryFlags.from, "from", "", "source entity (type:id)")
		f.StringVar(&entryFlags.to, "to", "", "destination entity (type:id)")
	}
	_ = ledgerGrantCmd.MarkFlagRequired("to")
	_ = ledgerBurnCmd.MarkFlagRequired("from")
	_ = ledgerTransferCmd.MarkFlagRequired("from")
	_ = ledgerTransferCmd.MarkFlagRequired("to")
	for _, c := range []*cobra.Command{ledgerGrantCmd, ledgerTransferCmd} {
		_ = c.MarkFlagRequired("amount")
	}
	ledgerBurnCmd.Flags().StringVar(&burnFlags.model, "model", "", "catalog key of the model whose usage is billed")
	ledgerBurnCmd.Flags().IntVar(&burnFlags.promptTokens, "prompt-tokens", 0, "prompt tokens consumed (with --model)")
	ledgerBurnCmd.Flags().IntVar(&burnFlags.completionTokens, "completion-tokens", 0, "completion tokens produced (with --model)")
	ledgerBurnCmd.MarkFlagsMutuallyExclusive("amount", "model")

	ledgerBalanceCmd.Flags().StringVar(&balanceFlags.currency, "currency", "", "show one currency only")

	ledgerEntriesCmd.Flags().StringVar(&listFlags.entity, "entity", "", "only entries touching this entity (type:id)")
	ledgerEntriesCmd.Flags().StringVar(&listFlags.entryType, "type", "", "only entries of this type")
	ledgerEntriesCmd.Flags().IntVar(&listFlags.limit, "limit", 0, "maximum entries to list (0 = default)")
	ledgerEntriesCmd.Flags().IntVar(&listFlags.offset, "offset", 0, "matching entries to skip")

	ledgerVerifyCmd.Flags().Int64Var(&verifyFlags.from, "from", 0, "first sequence to check (0 = genesis)")
	ledgerVerifyCmd.Flags().Int64Var(&verifyFlags.to, "to", 0, "last sequence to check (0 = tail)")
	ledgerVerifyCmd.Flags().BoolVar(&verifyFlags.progress, "progress", false, "show a progress bar on stderr")
}

// buildAppendRequest turns the entry flags into a request for entryType.
func buildAppendRequest(entryType string) (chain.AppendRequest, error) {
	typ, err := ledger.ParseEntryType(entryType)
	if err != nil {
		return chain.AppendRequest{}, ledger.NewValidationError("type", "%v", err)
	}
	req := chain.AppendRequest{
		Type:           typ,
		Currency:       entryFlags.currency,
		IdempotencyKey: entryFlags.idempotencyKey,
		ExternalRef:    entryFlags.externalRef,
	}

	if entryFlags.amount != "" {
		amount, err := decimal.NewFromString(entryFlags.amount)
		if err != nil {
			return req, ledger.NewValidationError("amount", "%q is not a decimal number", entryFlags.amount)
		}
		req.Amount = amount
	}
	if entryFlags.from != "" {
		ref, err := ledger.ParseEntityRef(entryFlags.from)
		if err != nil {
			return req, ledger.NewValidationError("from", "%v", err)
		}
		req.From = &ref
	}
	if entryFlags.to != "" {
		ref, err := ledger.ParseEntityRef(entryFlags.to)
		if err != nil {
			return req, ledger.NewValidationError("to", "%v", err)
		}
		req.To = &ref
	}
	if entryFlags.metadata != "" {
		dec := json.NewDecoder(strings.NewReader(entryFlags.metadata))
		dec.UseNumber()
		if err := dec.Decode(&req.Metadata); err != nil {
			return req, ledger.NewValidationError("metadata", "must be a JSON object: %v", err)
		}
	}
	return req, nil
}

func appendEntry(cmd *cobra.Command, entryType string) error {
	req, err := buildAppendRequest(entryType)
	if err != nil {
		return err
	}
	return withLedger(cmd, func(ctx context.Context, l *chain.Ledger) error {
		entry, err := l.Append(ctx, req)
		if err != nil {
			return err
		}
		return printResult(cmd, entriesResult{entry})
	})
}

// runBurn burns a fixed amount, or bills usage of a catalog model.
func runBurn(cmd *cobra.Command, args []string) error {
	if burnFlags.model == "" {
		if entryFlags.amount == "" {
			return ledger.NewValidationError("amount", "either --amount or --model is required")
		}
		if burnFlags.promptTokens != 0 || burnFlags.completionTokens != 0 {
			return ledger.NewValidationError("model", "token counts require --model")
		}
		return appendEntry(cmd, string(ledger.EntryCreditBurn))
	}

	req, err := buildAppendRequest(string(ledger.EntryCreditBurn))
	if err != nil {
		return err
	}
	usage := costs.TokenUsage{
		Model:            burnFlags.model,
		PromptTokens:     burnFlags.promptTokens,
		CompletionTokens: burnFlags.completionTokens,
	}

	return withLedgerConfig(cmd, func(ctx context.Context, cfg *config.Config, l *chain.Ledger) error {
		catalog, err := routing.CatalogFromConfig(&cfg.Routing)
		if err != nil {
			return cli.NewConfigError("routing.catalog", err.Error())
		}
		capability, ok := catalog.Lookup(usage.Model)
		if !ok {
			return ledger.NewValidationError("model", "%q is not in the routing catalog", usage.Model)
		}

		entry, err := l.ChargeUsage(ctx, *req.From, usage, capability.CostPer1KTokens, req)
		if err != nil {
			return err
		}
		return printResult(cmd, entriesResult{entry})
	})
}

func runBalance(cmd *cobra.Command, args []string) error {
	ref, err := ledger.ParseEntityRef(args[0])
	if err != nil {
		return ledger.NewValidationError("entity", "%v", err)
	}

	return withLedger(cmd, func(ctx context.Context, l *chain.Ledger) error {
		if balanceFlags.currency != "" {
			amount, err := l.Balance(ctx, ref, balanceFlags.currency)
			if err != nil {
				return err
			}
			return printResult(cmd, balancesResult{{Entity: ref, Currency: balanceFlags.currency, Amount: amount}})
		}

		balances, err := l.Balances(ctx, &ref)
		if err != nil {
			return err
		}
		return printResult(cmd, balancesResult(balances))
	})
}

func runEntries(cmd *cobra.Command, args []string) error {
	if listFlags.limit < 0 || listFlags.offset < 0 {
		return cli.NewConfigError("limit", "limit and offset must be non-negative")
	}
	filter := ledger.EntryFilter{Limit: listFlags.limit, Offset: listFlags.offset}
	if listFlags.entity != "" {
		ref, err := ledger.ParseEntityRef(listFlags.entity)
		if err != nil {
			return ledger.NewValidationError("entity", "%v", err)
		}
		filter.Entity = &ref
	}
	if listFlags.entryType != "" {
		typ, err := ledger.ParseEntryType(listFlags.entryType)
		if err != nil {
			return ledger.NewValidationError("type", "%v", err)
		}
		filter.Type = typ
	}

	return withLedger(cmd, func(ctx context.Context, l *chain.Ledger) error {
		entries, err := l.Entries(ctx, filter)
		if err != nil {
			return err
		}
		return printResult(cmd, entriesResult(entries))
	})
}

func runVerify(cmd *cobra.Command, args []string) error {
	return withLedger(cmd, func(ctx context.Context, l *chain.Ledger) error {
		tail, _, err := l.Tail(ctx)
		if err != nil {
			return err
		}

		from, to, err := chain.ResolveRange(verifyFlags.from, verifyFlags.to, tail)
		if err != nil {
			return err
		}

		report, err := verifyChunked(ctx, l, from, to)
		if err != nil {
			return err
		}
		if err := printResult(cmd, reportResult{report}); err != nil {
			return err
		}
		if !report.Valid {
			return fmt.Errorf("%w at sequence %d: %v", cli.ErrChainBroken, report.FirstInvalid, report.Err())
		}
		return nil
	})
}

// verifyChunked checks [from, to] in verifyChunk slices and merges the
// reports, stopping at the first broken slice.
func verifyChunked(ctx context.Context, l *chain.Ledger, from, to int64) (*chain.Report, error) {
	merged := &chain.Report{From: from, To: to, Valid: true}
	if to < from {
		return merged, nil
	}

	var progress cli.ProgressReporter
	if verifyFlags.progress {
		progress = cli.NewProgressReporter(nil, "entries")
		progress.Start(to - from + 1)
	}

	for start := from; start <= to; start += verifyChunk {
		end := min(start+verifyChunk-1, to)
		r, err := l.VerifyRange(ctx, start, end)
		if err != nil {
			if progress != nil {
				progress.Error(err)
			}
			return nil, err
		}
		merged.Checked += r.Checked
		if !r.Valid {
			merged.Valid = false
			merged.FirstInvalid = r.FirstInvalid
			merged.Failure = r.Failure
			if progress != nil {
				progress.Error(r.Err())
			}
			return merged, nil
		}
		if progress != nil {
			progress.Update(end - from + 1)
		}
	}
	if progress != nil {
		progress.Finish()
	}
	return merged, nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	return withLedger(cmd, func(ctx context.Context, l *chain.Ledger) error {
		drift, err := l.Reconcile(ctx)
		if err != nil {
			return err
		}
		if err := printResult(cmd, driftResult(drift)); err != nil {
			return err
		}
		if len(drift) > 0 {
			return fmt.Errorf("%d cached balance(s) differ from the chain replay", len(drift))
		}
		return nil
	})
}

type balancesResult []ledger.Balance

func (r balancesResult) Header() []string { return []string{"ENTITY", "CURRENCY", "AMOUNT"} }

func (r balancesResult) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, b := range r {
		rows = append(rows, []string{b.Entity.String(), b.Currency, b.Amount.String()})
	}
	return rows
}

type entriesResult []*ledger.Entry

func (r entriesResult) Header() []string {
	return []string{"SEQ", "TYPE", "FROM", "TO", "AMOUNT", "CURRENCY", "CREATED", "HASH"}
}

func (r entriesResult) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, e := range r {
		rows = append(rows, []string{
			strconv.FormatInt(e.Sequence, 10),
			string(e.Type),
			refString(e.From),
			refString(e.To),
			e.Amount.String(),
			e.Currency,
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.Hash,
		})
	}
	return rows
}

func refString(r *ledger.EntityRef) string {
	if r == nil {
		return "-"
	}
	return r.String()
}

type driftResult []chain.Drift

func (r driftResult) Header() []string { return []string{"ENTITY", "CURRENCY", "CACHED", "REPLAYED"} }

func (r driftResult) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, d := range r {
		rows = append(rows, []string{d.Entity, d.Currency, d.Cached.String(), d.Replayed.String()})
	}
	return rows
}

type reportResult struct {
	*chain.Report
}

func (r reportResult) Header() []string { return []string{"FROM", "TO", "CHECKED", "VALID", "FIRST_INVALID", "REASON"} }

func (r reportResult) Rows() [][]string {
	firstInvalid, reason := "-", "-"
	if r.Failure != nil {
		firstInvalid = strconv.FormatInt(r.FirstInvalid, 10)
		reason = r.Failure.Reason
	}
	return [][]string{{
		strconv.FormatInt(r.From, 10),
		strconv.FormatInt(r.To, 10),
		strconv.Itoa(r.Checked),
		strconv.FormatBool(r.Valid),
		firstInvalid,
		reason,
	}}
}
