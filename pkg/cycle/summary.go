package cycle

import (
	"io"
	"time"

	"github.com/catalogfi/autoswap/pkg/swap/evmswap"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jedib0t/go-pretty/table"
)

// Record is the outcome of one iteration.
type Record struct {
	Iteration int
	Direction evmswap.Direction
	Result    evmswap.Result
	Err       error
	Delay     time.Duration // pause taken after the iteration
}

func (record Record) Succeeded() bool {
	return record.Err == nil
}

type Summary struct {
	Started  time.Time
	Finished time.Time
	Records  []Record
}

func (summary Summary) Succeeded() int {
	count := 0
	for _, record := range summary.Records {
		if record.Succeeded() {
			count++
		}
	}
	return count
}

func (summary Summary) Failed() int {
	return len(summary.Records) - summary.Succeeded()
}

// Render writes the summary to w as a table, one row per iteration.
func (summary Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Direction", "Amount", "Min Out", "Tx Hash", "Status", "Delay"})
	rows := make([]table.Row, len(summary.Records))
	for i, record := range summary.Records {
		status := "ok"
		if record.Err != nil {
			status = record.Err.Error()
		} else if record.Result.QuoteUnavailable {
			status = "ok (no quote)"
		}
		minOut := ""
		if record.Result.MinAmountOut != nil {
			minOut = record.Result.MinAmountOut.String()
		}
		txHash := ""
		if record.Result.TxHash != (common.Hash{}) {
			txHash = record.Result.TxHash.Hex()
		}
		rows[i] = table.Row{record.Iteration, record.Direction, record.Result.Amount.String(), minOut, txHash, status, record.Delay.Round(time.Millisecond)}
	}
	t.AppendRows(rows)
	t.AppendFooter(table.Row{"", "", "", "", "succeeded", summary.Succeeded(), summary.Finished.Sub(summary.Started).Round(time.Second)})
	t.Render()
}
