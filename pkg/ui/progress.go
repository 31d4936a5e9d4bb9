package ui

import (
	"fmt"
	"strings"

	"prompthunter/pkg/models"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// Bar renders used/total as a fixed-width bar
func Bar(used, total, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := 0
	if total > 0 {
		filled = used * width / total
	}
	filled = min(max(filled, 0), width)

	return "[" + strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled) + "]"
}

// QuotaLine renders one quota dimension, colored by how much is spent
func QuotaLine(q models.QuotaStatus) string {
	percent := 0.0
	if q.Ceiling > 0 {
		percent = float64(q.Used) / float64(q.Ceiling) * 100
	}

	color := Green
	switch {
	case percent >= 90:
		color = Red
	case percent >= 70:
		color = Yellow
	}

	return fmt.Sprintf("%-15s %s %s %d/%d (%d left)",
		q.Dimension, q.Month, color(Bar(q.Used, q.Ceiling, 20)), q.Used, q.Ceiling, q.Remaining())
}
