package upload

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/set-night/agentchat/internal/domain"
)

func parseCSV(data []byte) (domain.Resource, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty csv", domain.ErrInvalidPayload)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %v", domain.ErrInvalidPayload, err)
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv: %v", domain.ErrInvalidPayload, err)
	}
	return tabular(header, rows, SourceCSV), nil
}
