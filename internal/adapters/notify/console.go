package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

// Console implementa ports.Reporter escribiendo tablas formateadas.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un reporter que escribe a stdout.
// Con table=false imprime el resumen compacto de 1-2 líneas.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// ReportResults imprime los resultados por wallet.
func (c *Console) ReportResults(_ context.Context, results []domain.WalletResult) error {
	if len(results) == 0 {
		fmt.Fprintf(c.out, "[%s] no wallet results\n", time.Now().Format("15:04:05"))
		return nil
	}

	if !c.table {
		c.printCompactResults(results)
		return nil
	}

	fmt.Fprintf(c.out, "\n[%s] %d wallets computed\n", time.Now().Format("15:04:05"), len(results))

	table := tablewriter.NewWriter(c.out)
	table.Header("Wallet", "Realized", "Unrealized", "Total", "Open", "Closed", "Diags")

	for _, r := range results {
		table.Append(
			shorten(r.Wallet, 14),
			fmt.Sprintf("$%.2f", r.RealizedPnl),
			fmt.Sprintf("$%.2f", r.UnrealizedPnl),
			fmt.Sprintf("$%.2f", r.TotalPnl),
			fmt.Sprintf("%d", r.OpenPositionCount),
			fmt.Sprintf("%d", r.ClosedPositionCount),
			fmt.Sprintf("%d", len(r.Diagnostics)),
		)
	}
	table.Render()

	fmt.Fprintln(c.out, "  Realized = trades cerrados + mercados resueltos | Unrealized = mark-to-market")
	return nil
}

// ReportReconciliation imprime el veredicto de la reconciliación y el
// histograma de la taxonomía para los records fallidos.
func (c *Console) ReportReconciliation(_ context.Context, records []domain.ReconciliationRecord) error {
	if len(records) == 0 {
		fmt.Fprintf(c.out, "[%s] no reconciliation records\n", time.Now().Format("15:04:05"))
		return nil
	}

	passed := 0
	taxonomy := make(map[domain.OutlierCategory]int)
	for _, r := range records {
		if r.Passed {
			passed++
		} else {
			taxonomy[r.Category]++
		}
	}
	failed := len(records) - passed

	fmt.Fprintf(c.out, "\n[%s] reconciliation: %d wallets — pass:%d fail:%d (%.1f%% pass)\n",
		time.Now().Format("15:04:05"), len(records), passed, failed,
		100*float64(passed)/float64(len(records)))

	if c.table {
		table := tablewriter.NewWriter(c.out)
		table.Header("Wallet", "Benchmark", "Computed", "AbsErr", "PctErr", "Thresh", "Verdict", "Category")
		for _, r := range records {
			verdict := "PASS"
			category := ""
			if !r.Passed {
				verdict = "FAIL:" + string(r.FailureReason)
				category = string(r.Category)
			}
			table.Append(
				shorten(r.Wallet, 14),
				fmt.Sprintf("$%.2f", r.BenchmarkValue),
				fmt.Sprintf("$%.2f", r.ComputedValue),
				fmt.Sprintf("$%.2f", r.AbsoluteError),
				fmt.Sprintf("%.2f%%", r.PercentError),
				fmt.Sprintf("%.1f", r.ThresholdUsed),
				verdict,
				category,
			)
		}
		table.Render()
	}

	if failed > 0 {
		fmt.Fprintf(c.out, "  outlier taxonomy:")
		for _, cat := range sortedCategories(taxonomy) {
			fmt.Fprintf(c.out, " %s:%d", cat, taxonomy[cat])
		}
		fmt.Fprintln(c.out)
	}
	return nil
}

// printCompactResults imprime lo esencial en una línea.
func (c *Console) printCompactResults(results []domain.WalletResult) {
	var realized, unrealized float64
	open, withDiags := 0, 0
	for _, r := range results {
		realized += r.RealizedPnl
		unrealized += r.UnrealizedPnl
		open += r.OpenPositionCount
		if len(r.Diagnostics) > 0 {
			withDiags++
		}
	}
	fmt.Fprintf(c.out, "[%s] %d wallets | realized $%.2f | unrealized $%.2f | open pos %d | wallets w/diags %d\n",
		time.Now().Format("15:04:05"), len(results),
		domain.Round2(realized), domain.Round2(unrealized), open, withDiags)
}

func sortedCategories(taxonomy map[domain.OutlierCategory]int) []domain.OutlierCategory {
	cats := make([]domain.OutlierCategory, 0, len(taxonomy))
	for cat := range taxonomy {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		if taxonomy[cats[i]] != taxonomy[cats[j]] {
			return taxonomy[cats[i]] > taxonomy[cats[j]]
		}
		return cats[i] < cats[j]
	})
	return cats
}

func shorten(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
