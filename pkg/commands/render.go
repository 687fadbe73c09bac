package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tocwex/slab-sub000/account"
	"github.com/tocwex/slab-sub000/mutation"
	"github.com/tocwex/slab-sub000/pkg/commands/flags"
	"github.com/tocwex/slab-sub000/proposal"
	"github.com/tocwex/slab-sub000/token"
)

// printer writes either tables or JSON depending on --json.
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(cmd *cobra.Command) printer {
	return printer{w: cmd.OutOrStdout(), json: flags.MustBool(cmd.Flags().GetBool("json"))}
}

// JSON prints v indented. It reports whether --json is set so callers can skip tables.
func (p printer) JSON(v any) (bool, error) {
	if !p.json {
		return false, nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return true, fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(p.w, string(b))

	return true, err
}

func (p printer) table(header []string, rows [][]string) {
	t := tablewriter.NewWriter(p.w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetBorders(tablewriter.Border{Left: false, Right: false, Top: true, Bottom: true})
	t.AppendBulk(rows)
	t.Render()
}

// fields prints label/value pairs.
func (p printer) fields(rows [][]string) {
	t := tablewriter.NewWriter(p.w)
	t.SetAutoWrapText(false)
	t.SetBorder(false)
	t.SetColumnSeparator("")
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.AppendBulk(rows)
	t.Render()
}

func (p printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p printer) holdings(h map[common.Address]account.Holding) {
	if len(h) == 0 {
		p.line("no holdings")
		return
	}

	rows := make([][]string, 0, len(h))
	for _, addr := range sortedHoldings(h) {
		hd := h[addr]
		rows = append(rows, []string{hd.Token.Label(), token.FormatAmount(hd.Balance, hd.Token.Decimals), tokenAddress(hd.Token)})
	}
	p.table([]string{"Token", "Balance", "Address"}, rows)
}

func (p printer) proposals(ps []proposal.Proposal) {
	if len(ps) == 0 {
		p.line("no pending proposals")
		return
	}

	rows := make([][]string, 0, len(ps))
	for _, pr := range ps {
		rows = append(rows, []string{
			pr.Tx.Nonce.Big().String(),
			pr.Tx.SafeTxHash.Hex(),
			pr.Intent.Kind().String(),
			pr.Intent.Describe(),
			fmt.Sprintf("%d/%d", pr.Confirmations, pr.Required),
			yesNo(pr.Executable),
		})
	}
	p.table([]string{"Nonce", "Safe Tx Hash", "Kind", "Intent", "Signed", "Executable"}, rows)
}

func (p printer) result(r mutation.Result) error {
	if ok, err := p.JSON(resultView(r)); ok {
		return err
	}

	rows := [][]string{{"Mode", string(r.Mode)}}
	if r.TxHash != (common.Hash{}) {
		rows = append(rows, []string{"Transaction", r.TxHash.Hex()})
	}
	if r.Safe != (common.Address{}) {
		rows = append(rows, []string{"Safe", r.Safe.Hex()})
	}
	if r.SafeTxHash != (common.Hash{}) {
		rows = append(rows, []string{"Safe Tx Hash", r.SafeTxHash.Hex()}, []string{"Nonce", strconv.FormatUint(r.Nonce, 10)})
	}
	if r.Address != (common.Address{}) {
		rows = append(rows, []string{"Address", r.Address.Hex()})
	}
	rows = append(rows, []string{"Report", r.ReportID})
	p.fields(rows)

	return nil
}

type resultJSON struct {
	Mode       mutation.Mode   `json:"mode"`
	ReportID   string          `json:"reportId"`
	TxHash     *common.Hash    `json:"txHash,omitempty"`
	Safe       *common.Address `json:"safe,omitempty"`
	SafeTxHash *common.Hash    `json:"safeTxHash,omitempty"`
	Nonce      *uint64         `json:"nonce,omitempty"`
	Address    *common.Address `json:"address,omitempty"`
}

func resultView(r mutation.Result) resultJSON {
	out := resultJSON{Mode: r.Mode, ReportID: r.ReportID}
	if r.TxHash != (common.Hash{}) {
		out.TxHash = &r.TxHash
	}
	if r.Safe != (common.Address{}) {
		out.Safe = &r.Safe
	}
	if r.SafeTxHash != (common.Hash{}) {
		out.SafeTxHash, out.Nonce = &r.SafeTxHash, &r.Nonce
	}
	if r.Address != (common.Address{}) {
		out.Address = &r.Address
	}

	return out
}

// sortedHoldings orders the native currency first, then by symbol.
func sortedHoldings(h map[common.Address]account.Holding) []common.Address {
	return slices.SortedFunc(maps.Keys(h), func(a, b common.Address) int {
		ta, tb := h[a].Token, h[b].Token
		if ta.Native != tb.Native {
			if ta.Native {
				return -1
			}
			return 1
		}
		if c := strings.Compare(ta.Label(), tb.Label()); c != 0 {
			return c
		}

		return a.Cmp(b)
	})
}

func tokenAddress(t token.Token) string {
	if t.Native {
		return "-"
	}

	return t.Address.Hex()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
