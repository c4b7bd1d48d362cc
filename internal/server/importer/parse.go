package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Column is a recognized import column.
type Column string

const (
	ColUserName   Column = "username"
	ColCredential Column = "credential"
	ColName       Column = "name"
	ColPosition   Column = "position"
	ColDepartment Column = "department"
	ColRole       Column = "role"
)

// aliases maps folded header text (separators removed) to a column.
var aliases = map[string]Column{
	"username":    ColUserName,
	"user":        ColUserName,
	"login":       ColUserName,
	"key":         ColUserName,
	"identitykey": ColUserName,

	"credential": ColCredential,
	"password":   ColCredential,
	"cred":       ColCredential,

	"name":        ColName,
	"displayname": ColName,
	"fullname":    ColName,

	"position": ColPosition,
	"title":    ColPosition,
	"jobtitle": ColPosition,

	"department":         ColDepartment,
	"dept":               ColDepartment,
	"unit":               ColDepartment,
	"organizationalunit": ColDepartment,

	"role": ColRole,
}

// columnFor resolves a header cell. Unknown headers return "".
func columnFor(header string) Column {
	h := cases.Fold().String(strings.TrimSpace(header))
	h = strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(h)
	return aliases[h]
}

// RawRow is one data row keyed by recognized column. Row is the 1-based
// position among data rows; Line is the line or sheet row it came from.
type RawRow struct {
	Row    int
	Line   int
	Values map[Column]string
}

// Sheet is the parsed content of an import file.
type Sheet struct {
	Name    string
	Columns []Column
	Ignored []string
	Rows    []RawRow
}

// File is an uploaded import file. The extension of Name picks the parser.
type File struct {
	Name string
	Data []byte
}

// Parse reads the header and data rows of f. A file without a readable
// sheet or without data rows is rejected as a whole.
func Parse(f File) (*Sheet, error) {
	var (
		name    string
		records [][]string
		err     error
	)

	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".xlsx", ".xlsm":
		name, records, err = readWorkbook(f.Data)
	case ".csv", ".txt":
		name, records, err = readCSV(f.Data)
	default:
		return nil, common.NewValidationError(0, "file", fmt.Sprintf("unsupported file type %q", filepath.Ext(f.Name)))
	}
	if err != nil {
		return nil, err
	}

	return buildSheet(name, records)
}

func readWorkbook(data []byte) (string, [][]string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, common.NewValidationError(0, "file", fmt.Sprintf("unreadable workbook: %v", err))
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, common.NewValidationError(0, "file", "workbook has no sheet")
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return "", nil, common.NewValidationError(0, "file", fmt.Sprintf("unreadable sheet %q: %v", sheets[0], err))
	}
	return sheets[0], rows, nil
}

func readCSV(data []byte) (string, [][]string, error) {
	decoded := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	r := csv.NewReader(decoded)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, common.NewValidationError(0, "file", fmt.Sprintf("unreadable csv: %v", err))
		}
		records = append(records, rec)
	}
	return "csv", records, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func buildSheet(name string, records [][]string) (*Sheet, error) {
	headerAt := -1
	for i, rec := range records {
		if !blank(rec) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, common.NewValidationError(0, "file", "file has no rows")
	}

	sheet := &Sheet{Name: name}
	index := map[int]Column{}
	seen := map[Column]bool{}
	for i, h := range records[headerAt] {
		col := columnFor(h)
		if col == "" || seen[col] {
			if strings.TrimSpace(h) != "" {
				sheet.Ignored = append(sheet.Ignored, h)
			}
			continue
		}
		seen[col] = true
		index[i] = col
		sheet.Columns = append(sheet.Columns, col)
	}

	for i, rec := range records[headerAt+1:] {
		if blank(rec) {
			continue
		}
		row := RawRow{Row: len(sheet.Rows) + 1, Line: headerAt + i + 2, Values: map[Column]string{}}
		for j, v := range rec {
			if col, ok := index[j]; ok {
				row.Values[col] = strings.TrimSpace(v)
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}

	if len(sheet.Rows) == 0 {
		return nil, common.NewValidationError(0, "file", "file has no data rows")
	}
	return sheet, nil
}
