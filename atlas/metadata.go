package atlas

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Record is the placement of one glyph. X and Y locate the glyph pixels,
// margins excluded; Width and Height are the glyph size.
type Record struct {
	Char   rune `json:"char"`
	Page   int  `json:"page_id"`
	X      int  `json:"x"`
	Y      int  `json:"y"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
}

// Format selects the metadata encoding.
type Format int

const (
	// FormatCSV writes a header row followed by one row per glyph.
	FormatCSV Format = iota
	// FormatJSON writes an array of objects.
	FormatJSON
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// Ext returns the file extension for the format, without a dot.
func (f Format) Ext() string { return f.String() }

// ParseFormat parses "csv" or "json", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", "":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

var csvHeader = []string{"char", "page_id", "x", "y", "width", "height"}

// WriteMetadata encodes records in push order. Characters are written as
// integer code points.
func WriteMetadata(w io.Writer, f Format, records []Record) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, records)
	case FormatJSON:
		return writeJSON(w, records)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownFormat, int(f))
	}
}

// SaveMetadata writes all placements recorded so far.
func (a *Assembler) SaveMetadata(w io.Writer, f Format) error {
	return WriteMetadata(w, f, a.Records())
}

func writeCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	row := make([]string, len(csvHeader))
	for _, r := range records {
		row[0] = strconv.Itoa(int(r.Char))
		row[1] = strconv.Itoa(r.Page)
		row[2] = strconv.Itoa(r.X)
		row[3] = strconv.Itoa(r.Y)
		row[4] = strconv.Itoa(r.Width)
		row[5] = strconv.Itoa(r.Height)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// ReadMetadata decodes metadata written by WriteMetadata.
func ReadMetadata(r io.Reader, f Format) ([]Record, error) {
	switch f {
	case FormatCSV:
		return readCSV(r)
	case FormatJSON:
		var records []Record
		if err := json.NewDecoder(r).Decode(&records); err != nil {
			return nil, fmt.Errorf("atlas: decode metadata: %w", err)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, int(f))
	}
}

func readCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("atlas: decode metadata: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		var v [6]int
		for j, s := range row {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("atlas: metadata row %d column %s: %w", i+1, csvHeader[j], err)
			}
			v[j] = n
		}
		records = append(records, Record{
			Char: rune(v[0]), Page: v[1], X: v[2], Y: v[3], Width: v[4], Height: v[5],
		})
	}
	return records, nil
}
