package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dvloznov/artifact-engine/internal/config"
	"github.com/dvloznov/artifact-engine/internal/pipeline"
	"github.com/dvloznov/artifact-engine/internal/record"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5B8DEF")).
			Padding(0, 1)
)

func banner(cfg *config.Config) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Synthetic Financial Document Generator"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s invoices=%d receipts=%d statements=%d\n",
		detailStyle.Render("requested:"), cfg.Invoices, cfg.Receipts, cfg.Statements)
	fmt.Fprintf(&b, "%s tier=%s dpi=%d format=%s output=%s",
		detailStyle.Render("settings:"), cfg.Tier, cfg.DPI, cfg.ExportFormat, cfg.OutputDir)
	if cfg.Seed != nil {
		fmt.Fprintf(&b, " seed=%d", *cfg.Seed)
	}
	return boxStyle.Render(b.String())
}

// renderSummary lists, per kind, how many items made it through, the
// stage timings, the dropped items and the files written.
func renderSummary(cfg *config.Config, reports []*pipeline.Report, published map[record.Kind]int64, elapsed time.Duration) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Run summary"))
	b.WriteString("\n")

	for _, r := range reports {
		layout := pipeline.Layout{Root: cfg.OutputDir, Kind: r.Kind}
		status := okStyle.Render(fmt.Sprintf("%d/%d", r.Succeeded(), r.Requested))
		fmt.Fprintf(&b, "\n%s %s\n", titleStyle.Render(r.Kind.Plural()), status)

		var timings []string
		for _, stage := range pipeline.Stages {
			if d, ok := r.Durations[stage]; ok {
				timings = append(timings, fmt.Sprintf("%s %s", stage, d.Round(time.Millisecond)))
			}
		}
		if len(timings) > 0 {
			fmt.Fprintf(&b, "  %s %s\n", detailStyle.Render("timings:"), strings.Join(timings, ", "))
		}

		if dropped := r.Dropped(); len(dropped) > 0 {
			fmt.Fprintf(&b, "  %s\n", warnStyle.Render(fmt.Sprintf("dropped %d:", len(dropped))))
			for _, it := range dropped {
				fmt.Fprintf(&b, "    %s at %s: %v\n", it.ID, it.Stage, it.Err)
			}
		}

		fmt.Fprintf(&b, "  %s\n", detailStyle.Render("output:"))
		fmt.Fprintf(&b, "    %s\n", layout.PDFDir()+string(filepath.Separator))
		if cfg.KeepClean {
			fmt.Fprintf(&b, "    %s\n", layout.CleanDir()+string(filepath.Separator))
		}
		fmt.Fprintf(&b, "    %s\n", layout.DegradedDir()+string(filepath.Separator))
		if r.ExportErr != nil {
			fmt.Fprintf(&b, "    %s\n", errorStyle.Render("export failed: "+r.ExportErr.Error()))
		} else {
			fmt.Fprintf(&b, "    %s\n    %s\n", r.Export.GroundTruth, r.Export.Summary)
		}

		if r.PublishErr != nil {
			fmt.Fprintf(&b, "  %s\n", errorStyle.Render("publish failed: "+r.PublishErr.Error()))
		} else if n, ok := published[r.Kind]; ok {
			fmt.Fprintf(&b, "  %s %d rows in BigQuery\n", detailStyle.Render("published:"), n)
		}
	}

	fmt.Fprintf(&b, "\n%s %s", detailStyle.Render("elapsed:"), elapsed.Round(time.Millisecond))
	return boxStyle.Render(b.String())
}
