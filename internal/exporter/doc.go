// Package exporter writes the result tables of an analytics run.
//
// Each table goes to its own CSV file with a fixed column set, UTF-8 BOM
// prefixed so Excel opens them correctly. When the workbook output is
// enabled, the same tables are also written as one xlsx workbook with a
// sheet per table. Formatting is uniform: monetary values and percentages
// carry two decimals, cohort retention one.
package exporter
