package exporter

import (
	"fmt"
	"strconv"
)

// formatFloat formats a monetary or percentage value with exactly 2 decimal
// places, so 13.4 exports as 13.40.
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatFloat1 formats a value with 1 decimal place, the retention table
// precision.
func formatFloat1(f float64) string {
	return fmt.Sprintf("%.1f", f)
}

// formatInt formats an integer value for CSV output.
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatOptFloat formats a nullable value; nil exports as an empty cell,
// distinct from 0.00.
func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

// formatOptFloat1 is formatOptFloat at retention precision.
func formatOptFloat1(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat1(*f)
}

// formatOptPct formats a nullable 0..1 rate as a percentage; nil exports as
// an empty cell.
func formatOptPct(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f * 100)
}
