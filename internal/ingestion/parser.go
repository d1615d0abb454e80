package ingestion

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/xuri/excelize/v2"
)

// Parse errors. Each one stops an upload before any mapping happens.
var (
	ErrEmptyInput        = errors.New("no data found in upload")
	ErrUnsupportedFormat = errors.New("unsupported file type (use .csv, .tsv, .txt or .xlsx)")
	ErrUnreadable        = errors.New("could not read the uploaded file")
)

// SampleSize is how many example values are shown per header
const SampleSize = 5

// MaxUploadSize is the largest upload accepted; bigger files are rejected whole
const MaxUploadSize = 20 << 20

// Parser turns spreadsheets and pasted text into a Table.
type Parser struct {
	known func(header string) bool
}

// NewParser builds a parser. known reports whether a cell looks like a
// candidate column header; it decides if row 1 holds headers.
func NewParser(known func(string) bool) *Parser {
	if known == nil {
		known = func(string) bool { return true }
	}
	return &Parser{known: known}
}

// SupportedExtension reports whether filename can be parsed
func SupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".tsv", ".txt", ".xlsx":
		return true
	}
	return false
}

// ParseFile parses an uploaded file, choosing the reader by extension.
func (p *Parser) ParseFile(filename string, r io.Reader) (*models.Table, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !SupportedExtension(filename) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrUnreadable, MaxUploadSize)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyInput
	}

	if ext == ".xlsx" {
		return p.parseXLSX(data)
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not UTF-8 text", ErrUnreadable, filename)
	}
	return p.ParseText(string(data))
}

// ParseText parses delimited text such as a clipboard paste from a sheet.
func (p *Parser) ParseText(text string) (*models.Table, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = DetectDelimiter(text)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return p.build(records)
}

func (p *Parser) parseXLSX(data []byte) (*models.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyInput
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return p.build(records)
}

// DetectDelimiter picks tab, then comma, then pipe.
func DetectDelimiter(text string) rune {
	switch {
	case strings.Contains(text, "\t"):
		return '\t'
	case strings.Contains(text, ","):
		return ','
	default:
		return '|'
	}
}

func (p *Parser) build(records [][]string) (*models.Table, error) {
	var nonEmpty [][]string
	for _, rec := range records {
		if !blank(rec) {
			nonEmpty = append(nonEmpty, rec)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, ErrEmptyInput
	}

	table := &models.Table{}
	data := nonEmpty
	if p.looksLikeHeader(nonEmpty[0]) {
		table.HasHeader = true
		table.Headers = dedupeHeaders(nonEmpty[0])
		data = nonEmpty[1:]
	} else {
		width := 0
		for _, rec := range nonEmpty {
			if len(rec) > width {
				width = len(rec)
			}
		}
		table.Headers = make([]string, width)
		for i := range table.Headers {
			table.Headers[i] = "col_" + strconv.Itoa(i+1)
		}
	}

	for _, rec := range data {
		row := make(models.Row, len(table.Headers))
		for i, h := range table.Headers {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			} else {
				row[h] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// looksLikeHeader wants at least half of the cells, and at least one, to
// name a known column
func (p *Parser) looksLikeHeader(rec []string) bool {
	cells, matches := 0, 0
	for _, c := range rec {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		cells++
		if p.known(c) {
			matches++
		}
	}
	return matches >= 1 && matches*2 >= cells
}

// dedupeHeaders names blank headers positionally and suffixes repeats
// ("Email", "Email.1").
func dedupeHeaders(rec []string) []string {
	out := make([]string, len(rec))
	used := make(map[string]bool, len(rec))
	for i, h := range rec {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "col_" + strconv.Itoa(i+1)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Samples returns up to n non-empty values per header, in row order.
func Samples(table *models.Table, n int) map[string][]string {
	out := make(map[string][]string, len(table.Headers))
	for _, h := range table.Headers {
		vals := []string{}
		for _, row := range table.Rows {
			if len(vals) == n {
				break
			}
			if v := strings.TrimSpace(row[h]); v != "" {
				vals = append(vals, v)
			}
		}
		out[h] = vals
	}
	return out
}
