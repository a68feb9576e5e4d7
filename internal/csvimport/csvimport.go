// Package csvimport turns a spreadsheet export of expenses into validated
// expense rows.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"housesplit/internal/core"
)

// DefaultComment is used for rows with no comment.
const DefaultComment = "Imported expense"

var (
	ErrNoRows        = errors.New("CSV must have a header row and at least one data row")
	ErrMissingColumn = errors.New("missing required column")
)

// Row is one parsed expense, not yet stored.
type Row struct {
	Line     int
	Cost     core.Money
	PersonID int64
	Date     core.Date
	Comment  string
}

// Expense converts the row to a domain expense.
func (r Row) Expense() core.Expense {
	return core.Expense{Cost: r.Cost, PersonID: r.PersonID, Date: r.Date, Comment: r.Comment}
}

// RowError describes why a line was rejected. Line 1 is the header.
type RowError struct {
	Line    int    `json:"row"`
	Message string `json:"error"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Line, e.Message)
}

var headerAliases = map[string]string{
	"cost":         "cost",
	"amount":       "cost",
	"person":       "person",
	"purchased_by": "person",
	"purchasedby":  "person",
	"purchased by": "person",
	"name":         "person",
	"date":         "date",
	"comment":      "comment",
	"description":  "comment",
}

// dateLayouts are tried in order for values that carry a year.
var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"2006/01/02",
	"2006/1/2",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2006-01-02T15:04:05Z07:00",
}

// Parse reads CSV content and matches each row's person by name, ignoring
// case. Dates given as month/day without a year fall in now's year.
//
// All rows are checked; the returned RowErrors list every rejected line. The
// error return is reserved for problems with the file as a whole.
func Parse(content string, people []core.Person, now time.Time) ([]Row, []RowError, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(content)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrNoRows
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, nil, err
	}

	byName := make(map[string]int64, len(people))
	for _, p := range people {
		byName[strings.ToLower(strings.TrimSpace(p.Name))] = p.ID
	}

	var (
		rows    []Row
		rowErrs []RowError
		line    = 1
		seen    int
	)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Message: err.Error()})
			continue
		}
		if isBlank(record) {
			continue
		}
		seen++
		if len(record) != len(header) {
			rowErrs = append(rowErrs, RowError{Line: line, Message: fmt.Sprintf("Column count mismatch (expected %d, got %d)", len(header), len(record))})
			continue
		}

		row, msg := parseRecord(record, cols, byName, now)
		if msg != "" {
			rowErrs = append(rowErrs, RowError{Line: line, Message: msg})
			continue
		}
		row.Line = line
		rows = append(rows, row)
	}

	if seen == 0 {
		return nil, nil, ErrNoRows
	}
	return rows, rowErrs, nil
}

func mapColumns(header []string) (map[string]int, error) {
	cols := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canonical, ok := headerAliases[key]; ok {
			if _, dup := cols[canonical]; !dup {
				cols[canonical] = i
			}
		}
	}
	var missing []string
	for _, want := range []string{"cost", "person", "date"} {
		if _, ok := cols[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseRecord(record []string, cols map[string]int, byName map[string]int64, now time.Time) (Row, string) {
	costStr := strings.TrimSpace(record[cols["cost"]])
	cost, err := core.ParseMoney(costStr)
	if err != nil {
		return Row{}, fmt.Sprintf("Invalid cost %q", costStr)
	}

	name := strings.TrimSpace(record[cols["person"]])
	personID, ok := byName[strings.ToLower(name)]
	if !ok {
		return Row{}, fmt.Sprintf("Unknown person %q", name)
	}

	dateStr := strings.TrimSpace(record[cols["date"]])
	date, err := ParseDate(dateStr, now)
	if err != nil {
		return Row{}, fmt.Sprintf("Invalid date %q", dateStr)
	}

	comment := DefaultComment
	if i, ok := cols["comment"]; ok {
		if c := strings.TrimSpace(record[i]); c != "" {
			comment = c
		}
	}
	if len(comment) > core.MaxCommentLength {
		return Row{}, core.ErrCommentTooLong.Error()
	}

	return Row{Cost: cost, PersonID: personID, Date: date, Comment: comment}, ""
}

// ParseDate recognizes the date formats found in bank and spreadsheet
// exports. "M/D" and "MM/DD" without a year are placed in now's year.
func ParseDate(s string, now time.Time) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, core.ErrInvalidDate
	}

	if parts := strings.Split(s, "/"); len(parts) == 2 {
		m, errM := strconv.Atoi(parts[0])
		d, errD := strconv.Atoi(parts[1])
		if errM != nil || errD != nil || m < 1 || m > 12 || d < 1 || d > 31 {
			return core.Date{}, core.ErrInvalidDate
		}
		date := core.NewDate(now.Year(), m, d)
		if date.Day() != d {
			return core.Date{}, core.ErrInvalidDate
		}
		return date, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return core.Date{}, core.ErrInvalidDate
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
