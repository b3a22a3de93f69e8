package importer

import (
	"fmt"
	"io"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/prite36/farm-monitor/internal/farm"
)

const SpreadsheetContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxBody caps the size of an uploaded import.
const maxBody = 10 << 20

// Parse reads an import body as a spreadsheet when contentType says so, and as JSON otherwise.
func Parse(contentType string, body io.Reader) ([]farm.ImportRecord, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == SpreadsheetContentType {
		return ParseSpreadsheet(body)
	}
	data, err := io.ReadAll(io.LimitReader(body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", farm.ErrImportParse, err)
	}
	return farm.ParseImportJSON(data)
}

// ParseSpreadsheet reads the first sheet of an xlsx workbook. The first row must
// name the field, plantType (or species) and date columns; an event column is optional.
func ParseSpreadsheet(r io.Reader) ([]farm.ImportRecord, error) {
	f, err := excelize.OpenReader(io.LimitReader(r, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", farm.ErrImportParse, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", farm.ErrImportParse)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", farm.ErrImportParse, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %s is empty", farm.ErrImportParse, sheets[0])
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "field":
			cols["field"] = i
		case "planttype", "plant type", "species":
			cols["species"] = i
		case "date":
			cols["date"] = i
		case "event":
			cols["event"] = i
		}
	}
	for _, required := range []string{"field", "species", "date"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing %s column", farm.ErrImportParse, required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]farm.ImportRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, farm.ImportRecord{
			Field:   cell(row, "field"),
			Species: cell(row, "species"),
			Date:    normalizeDate(cell(row, "date")),
			Event:   cell(row, "event"),
		})
	}
	return records, nil
}

// normalizeDate turns an Excel date serial into an ISO date. Text values are returned unchanged.
func normalizeDate(v string) string {
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v
	}
	return t.Format(time.DateOnly)
}
