package upload

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/set-night/agentchat/internal/domain"
)

// parseExcel reads the first worksheet, first row as header.
func parseExcel(data []byte) (domain.Resource, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", domain.ErrInvalidPayload, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrInvalidPayload)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", domain.ErrInvalidPayload, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", domain.ErrInvalidPayload, sheets[0])
	}
	return tabular(rows[0], rows[1:], SourceExcel), nil
}
