package common

import (
	"fmt"
	"strings"
	"time"

	"veraguard-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// ANSI color helpers for console output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// ScoreColor maps a trust score to a console color band.
func ScoreColor(score int) string {
	switch {
	case score >= 80:
		return colorGreen
	case score >= 50:
		return colorYellow
	default:
		return colorRed
	}
}

// PrintReport renders a completed audit report to the console.
func PrintReport(report *models.AuditReport) {
	PrintHeader(fmt.Sprintf("AUDIT REPORT  %s", report.Address), DefaultWidth)

	fmt.Printf("\n  Score:  %s%d / 100%s\n", ScoreColor(report.Score), report.Score, colorReset)
	if report.Vitals != nil {
		fmt.Printf("  Vitals: %d bytes, %d txs, age %dd, verified=%v\n",
			report.Vitals.BytecodeSize, report.Vitals.TxCount, report.Vitals.AgeDays, report.Vitals.Verified)
	}
	if report.IsProxy {
		fmt.Printf("  %s! Proxy contract: logic may change after this scan%s\n", colorYellow, colorReset)
	}
	if report.RiskSummary != "" {
		fmt.Printf("\n  %s\n", report.RiskSummary)
	}

	if len(report.Warnings) > 0 {
		fmt.Println("\n  Warnings:")
		for _, w := range report.Warnings {
			fmt.Printf("    %s- %s%s\n", colorRed, w, colorReset)
		}
	}

	if len(report.Milestones) > 0 {
		fmt.Println("\n  Milestones:")
		for i, m := range report.Milestones {
			prefix := "│  "
			if i == len(report.Milestones)-1 {
				prefix = "└  "
			}
			fmt.Printf("    %s%s: %s\n", prefix, m.Label, m.Detail)
		}
	}

	fmt.Printf("\n  %sReport hash: %s%s\n", colorGray, report.ReportHash, colorReset)
	switch {
	case report.CreditSource == "recall":
		fmt.Printf("  %sReplayed from local history, nothing spent%s\n", colorGray, colorReset)
	case report.CostDeducted > 0:
		fmt.Printf("  Cost: %d credit(s) [%s]\n", report.CostDeducted, report.CreditSource)
	}
	PrintSeparator("=", DefaultWidth)
}

// PrintBalance renders the mirrored ledger snapshot.
func PrintBalance(balance *models.CreditBalance, synced bool) {
	marker := colorGreen + "●" + colorReset
	if !synced {
		marker = colorGray + "○ (last known)" + colorReset
	}
	member := ""
	if balance.IsMember {
		member = colorCyan + "  MEMBER" + colorReset
	}
	fmt.Printf("\n%s Credits: %d%s\n", marker, balance.Credits, member)
	if balance.LifetimeSpendEth.GreaterThan(decimal.Zero) {
		fmt.Printf("  Lifetime spend: %s ETH\n", balance.LifetimeSpendEth.String())
	}
}

// PrintQuoteCountdown renders a quote's remaining validity.
func PrintQuoteCountdown(quote *models.FeeQuote, now time.Time) {
	left := quote.TimeLeft(now)
	color := colorGreen
	if left < 10*time.Second {
		color = colorYellow
	}
	fmt.Printf("  Rate: %s ETH/credit  %sexpires in %ds%s\n",
		quote.AmountEthPerCredit.String(), color, int(left.Seconds()), colorReset)
}
