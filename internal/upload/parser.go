// Package upload turns trade-history uploads (CSV, Excel, JSON, HTML
// statements) and inline trade_data into a message resource.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/set-night/agentchat/internal/domain"
)

// Resource sources.
const (
	SourceCSV       = "csv_file"
	SourceExcel     = "excel_file"
	SourceJSON      = "json_file"
	SourceHTML      = "html_file"
	SourceTradeData = "trade_data"
)

type Parser struct {
	maxBytes int64
}

// NewParser returns a parser rejecting inputs over maxBytes; 0 means no limit.
func NewParser(maxBytes int64) *Parser {
	return &Parser{maxBytes: maxBytes}
}

// Parse dispatches on the file extension.
func (p *Parser) Parse(filename string, r io.Reader) (domain.Resource, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv", ".xlsx", ".xlsm", ".json", ".html", ".htm":
	case ".xls":
		return nil, fmt.Errorf("%w: legacy .xls workbooks are not supported, save as .xlsx", domain.ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, filename)
	}

	data, err := p.read(r)
	if err != nil {
		return nil, err
	}

	var res domain.Resource
	switch ext {
	case ".csv":
		res, err = parseCSV(data)
	case ".xlsx", ".xlsm":
		res, err = parseExcel(data)
	case ".json":
		res, err = parseJSON(data, SourceJSON)
	case ".html", ".htm":
		res, err = parseHTML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return res, nil
}

// ParseInline parses a JSON object or array sent as a form field.
func (p *Parser) ParseInline(s string) (domain.Resource, error) {
	data, err := p.read(strings.NewReader(s))
	if err != nil {
		return nil, err
	}
	res, err := parseJSON(data, SourceTradeData)
	if err != nil {
		return nil, fmt.Errorf("parse trade_data: %w", err)
	}
	return res, nil
}

func (p *Parser) read(r io.Reader) ([]byte, error) {
	if p.maxBytes > 0 {
		r = io.LimitReader(r, p.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if p.maxBytes > 0 && int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", domain.ErrInvalidPayload, p.maxBytes)
	}
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), nil
}

// tabular builds the resource shared by every table-shaped source.
func tabular(header []string, rows [][]string, source string) domain.Resource {
	columns := columnNames(header)
	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		rec := make(map[string]any, len(columns))
		for i, col := range columns {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			rec[col] = typeCell(cell)
		}
		records = append(records, rec)
	}
	return domain.Resource{
		"data":      records,
		"columns":   columns,
		"row_count": len(records),
		"source":    source,
	}
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
