package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/wonny/rgm/internal/brain"
	"github.com/wonny/rgm/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a formatted command header with key/value details
func PrintHeader(title string, details [][2]string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	for _, kv := range details {
		fmt.Printf("  %-10s: %s\n", kv[0], kv[1])
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// printJSON writes v as indented JSON to stdout
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func flagList(flags []contracts.DiagnosticFlag) string {
	if len(flags) == 0 {
		return "-"
	}
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return strings.Join(out, ",")
}

// printFits prints the elasticity table of an estimation pass
func printFits(est *brain.EstimationResult) {
	widths := []int{12, 8, 18, 5, 15, 14, 8, 24}
	PrintTableHeader([]string{"SKU", "ELAST", "CI", "N", "QUALITY", "CATEGORY", "PRICE_CV", "FLAGS"}, widths)
	for _, f := range est.Fits {
		if f.Err != nil {
			PrintTableRow([]string{f.SKU, "-", "-", "-", "error", "-", "-", f.Err.Error()}, widths)
			continue
		}
		m := f.Elasticity
		PrintTableRow([]string{
			f.SKU,
			fmt.Sprintf("%.3f", m.Elasticity),
			fmt.Sprintf("[%.2f, %.2f]", m.CILower, m.CIUpper),
			fmt.Sprintf("%d", m.SampleSize),
			string(m.Quality),
			string(m.Category),
			fmt.Sprintf("%.3f", f.Variation.CV),
			flagList(f.Flags),
		}, widths)
	}
}

// printResult prints the recommendations of a scenario
func printResult(result *contracts.ScenarioResult) {
	PrintHeader("Scenario "+result.ScenarioID, [][2]string{
		{"Status", string(result.Status)},
		{"Iterations", fmt.Sprintf("%d", result.Iterations)},
		{"Objective", fmt.Sprintf("%.4f", result.Objective)},
		{"Config", shortHash(result.ConfigHash)},
	})

	widths := []int{12, 9, 9, 8, 10, 10, 7, 12, 24}
	PrintTableHeader([]string{"SKU", "CURRENT", "PRICE", "CHANGE", "ΔVOLUME", "ΔMARGIN", "TIER", "PROMO", "FLAGS"}, widths)
	for _, r := range result.Recommendations {
		price, change := "-", "-"
		if r.RecommendedPrice != nil {
			price = fmt.Sprintf("%.2f", *r.RecommendedPrice)
			change = fmt.Sprintf("%+.1f%%", r.PriceChangePct()*100)
		}
		promo := "-"
		if r.PromotionPlan != nil {
			promo = r.PromotionPlan.Mechanic
		}
		PrintTableRow([]string{
			r.SKU,
			fmt.Sprintf("%.2f", r.CurrentPrice),
			price,
			change,
			fmt.Sprintf("%+.0f", r.ExpectedVolumeDelta),
			fmt.Sprintf("%+.0f", r.ExpectedMarginDelta),
			string(r.ConfidenceTier),
			promo,
			flagList(r.Flags),
		}, widths)
	}

	for _, v := range result.Violations {
		PrintWarning(fmt.Sprintf("%s: %s", v.ConstraintID, v.Detail))
	}
	fmt.Println()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	if h == "" {
		return "-"
	}
	return h
}
