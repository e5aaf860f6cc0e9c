package exporter

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"ecomcli/internal/pipeline"
)

// sheet is one workbook tab: a name, a header row, and data rows reusing
// the CSV cell formatting.
type sheet struct {
	name    string
	headers []string
	rows    [][]string
}

// exportWorkbook writes every table into one xlsx file, a sheet per table.
func (e *Exporter) exportWorkbook(result *pipeline.Result) error {
	sheets := []sheet{
		{"Monthly Metrics", monthlyHeaders(), nil},
		{"Cohort Retention", cohortHeaders(result.Cohort.Horizon), nil},
		{"Customer Segments", segmentHeaders(), nil},
		{"Seller Performance", sellerHeaders(), nil},
		{"Seller Concentration", concentrationHeaders(), nil},
		{"Category Concentration", concentrationHeaders(), nil},
		{"Delivery Buckets", deliveryHeaders(), nil},
	}
	for _, m := range result.Revenue.Months {
		sheets[0].rows = append(sheets[0].rows, monthlyRow(m))
	}
	for _, row := range result.Cohort.Matrix {
		sheets[1].rows = append(sheets[1].rows, cohortRow(row))
	}
	for _, c := range result.RFM.Customers {
		sheets[2].rows = append(sheets[2].rows, segmentRow(c))
	}
	for _, card := range result.Sellers.All() {
		sheets[3].rows = append(sheets[3].rows, sellerRow(card))
	}
	for _, rec := range result.SellerPareto.Records {
		sheets[4].rows = append(sheets[4].rows, concentrationRow(rec))
	}
	for _, rec := range result.CategoryPareto.Records {
		sheets[5].rows = append(sheets[5].rows, concentrationRow(rec))
	}
	for _, stat := range result.Delivery.Buckets {
		sheets[6].rows = append(sheets[6].rows, deliveryRow(stat))
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if err := writeSheet(f, i, s); err != nil {
			return fmt.Errorf("sheet %q: %w", s.name, err)
		}
	}

	path := filepath.Join(e.cfg.Dir, WorkbookName)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// writeSheet fills one sheet. The first table reuses the default sheet so
// the workbook never carries an empty "Sheet1".
func writeSheet(f *excelize.File, index int, s sheet) error {
	if index == 0 {
		if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
			return err
		}
	} else {
		if _, err := f.NewSheet(s.name); err != nil {
			return err
		}
	}

	header := make([]interface{}, len(s.headers))
	for i, h := range s.headers {
		header[i] = h
	}
	if err := f.SetSheetRow(s.name, "A1", &header); err != nil {
		return err
	}

	for rowIdx, row := range s.rows {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, cell, &cells); err != nil {
			return err
		}
	}

	return nil
}
