package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/xuri/excelize/v2"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
)

// naTokens are the cell texts read as missing, matching the usual dataframe
// reader defaults.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// Decoder turns raw file bytes into a record table.
type Decoder struct {
	zstdDecoder *zstd.Decoder
}

// NewDecoder creates a new decoder.
func NewDecoder() (*Decoder, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Decoder{zstdDecoder: dec}, nil
}

// Close releases decoder resources.
func (d *Decoder) Close() {
	if d.zstdDecoder != nil {
		d.zstdDecoder.Close()
	}
}

// Decode picks a format from the name's extension. A trailing .zst is
// decompressed first and the remaining extension decides the format.
func (d *Decoder) Decode(name string, data []byte) (*table.Table, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zst"):
		raw, err := d.zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return d.Decode(name[:len(name)-len(".zst")], raw)
	case strings.HasSuffix(lower, ".csv"):
		return DecodeDelimited(bytes.NewReader(data), ',')
	case strings.HasSuffix(lower, ".tsv"):
		return DecodeDelimited(bytes.NewReader(data), '\t')
	case strings.HasSuffix(lower, ".xlsx"):
		return DecodeXLSX(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// DecodeDelimited reads a header line followed by records. Short records are
// padded with missing values; long records are an error.
func DecodeDelimited(r io.Reader, comma rune) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return buildTable(header, records)
}

// DecodeXLSX reads the first sheet of a workbook, header row first.
func DecodeXLSX(r io.Reader) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, errors.New("empty file")
	}
	return buildTable(rows[0], rows[1:])
}

func buildTable(header []string, records [][]string) (*table.Table, error) {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rows := make([]table.Row, 0, len(records))
	for i, rec := range records {
		if len(rec) > len(header) {
			return nil, fmt.Errorf("record %d has %d fields, header has %d", i+1, len(rec), len(header))
		}
		row := make(table.Row, len(header))
		for c, cell := range rec {
			row[c] = cellValue(cell)
		}
		rows = append(rows, row)
	}
	return table.New(header, rows)
}

func cellValue(cell string) table.Value {
	if _, na := naTokens[cell]; na {
		return table.Missing()
	}
	return table.String(cell)
}
