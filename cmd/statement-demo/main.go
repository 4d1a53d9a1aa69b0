package main

import (
	"encoding/json"
	"fmt"
	"os"

	edgar "github.com/RxDataLab/go-edgar-financials"
)

// metrics are printed in this order when present
var metrics = []string{
	"Revenue",
	"Gross Profit",
	"Operating Income",
	"Net Income",
	"Earnings Per Share Diluted",
	"Cash and Cash Equivalents",
	"Total Assets",
	"Total Liabilities",
	"Stockholders Equity",
	"Operating Cash Flow",
	"Capital Expenditures",
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <path-to-submission.txt>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example:\n")
		fmt.Fprintf(os.Stderr, "  %s testdata/submission_10k.txt\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Extracts key financial metrics from the statements rendered in a 10-K/10-Q full submission.\n")
		os.Exit(1)
	}

	filePath := os.Args[1]

	fmt.Fprintf(os.Stderr, "Loading: %s\n", filePath)
	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "File size: %.2f MB\n", float64(len(data))/1024/1024)

	filing, err := edgar.ParseFiling(string(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing submission: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Documents: %d\n", len(filing.Documents))

	reports, err := filing.AllStatements()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting statements: %v\n", err)
		os.Exit(1)
	}
	for _, r := range reports {
		fmt.Fprintf(os.Stderr, "  %s (%d periods)\n", r.Title, len(r.Snapshots))
	}

	latest := make(map[string]edgar.Fact)
	for _, r := range reports {
		for _, label := range metrics {
			if _, done := latest[label]; done {
				continue
			}
			if fact, err := r.Query().ByLabel(label).MostRecent(); err == nil {
				latest[label] = *fact
			}
		}
	}

	fmt.Println()
	fmt.Println("===================================================")
	fmt.Println("           Financial Statements")
	fmt.Println("===================================================")
	if d := filing.DateFiled(); !d.IsZero() {
		fmt.Printf("Filed: %s\n\n", d.Format("2006-01-02"))
	}

	fmt.Printf("%-35s %15s\n", "Metric", "Value")
	fmt.Printf("%-35s %15s\n", "-----------------------------------", "---------------")
	for _, label := range metrics {
		if fact, ok := latest[label]; ok {
			printMetric(label, fact.Value)
		}
	}
	fmt.Println("===================================================")
	fmt.Println()

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(latest); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func printMetric(label string, value float64) {
	abs := value
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= 1_000_000_000:
		fmt.Printf("%-35s %14.2fB\n", label, value/1_000_000_000)
	case abs >= 1_000_000:
		fmt.Printf("%-35s %14.1fM\n", label, value/1_000_000)
	default:
		fmt.Printf("%-35s %15.2f\n", label, value)
	}
}
