package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"vaultrecon/internal/recon"
)

// ProgressBar tracks tables as they are reconciled
type ProgressBar struct {
	total     int
	current   int
	startTime time.Time
	mu        sync.Mutex

	reconciledCount int
	lossyCount      int
	failedCount     int
	currentTable    string
}

// NewProgressBar creates a new progress bar
func NewProgressBar(total int) *ProgressBar {
	return &ProgressBar{
		total:     total,
		startTime: time.Now(),
	}
}

// Update records the outcome of one table and redraws the bar
func (p *ProgressBar) Update(current int, table string, status recon.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	p.currentTable = table

	switch status {
	case recon.StatusFailed:
		p.failedCount++
	case recon.StatusLossy:
		p.reconciledCount++
		p.lossyCount++
	default:
		p.reconciledCount++
	}

	p.render()
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)

	fmt.Fprintf(out, "\n\n%s Reconciliation completed in %s\n",
		ColorSuccess("✓"),
		formatDuration(elapsed),
	)
	fmt.Fprintf(out, "  %s %d tables reconciled\n", ColorSuccess("✓"), p.reconciledCount)
	if p.lossyCount > 0 {
		fmt.Fprintf(out, "  %s %d tables with losses\n", ColorWarning("!"), p.lossyCount)
	}
	if p.failedCount > 0 {
		fmt.Fprintf(out, "  %s %d tables failed\n", ColorError("✗"), p.failedCount)
	}
}

func (p *ProgressBar) render() {
	if supportsColor {
		fmt.Fprint(out, "\r\033[K")
	} else {
		fmt.Fprint(out, "\n")
	}

	percentage := 100.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100
	}

	barWidth := 30
	filled := int(percentage / 100 * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	table := p.currentTable
	if len(table) > 40 {
		table = "..." + table[len(table)-37:]
	}

	fmt.Fprintf(out, "%s %s %.0f%% [%d/%d] %s - %s",
		ColorProgress("►"),
		bar,
		percentage,
		p.current,
		p.total,
		table,
		formatDuration(time.Since(p.startTime)),
	)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}
