/*
tsv.go - Helpers for the tab-separated settlement exports

The source sheets are pasted out of spreadsheets, so cells carry
thousands separators, stray spaces (including non-breaking ones) and
placeholder dashes. Parsing is forgiving: a cell that cannot be read as
a number counts as zero rather than failing the whole file.
*/
package seed

import (
	"bufio"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// readTSVLines loads a file and returns its data lines, skipping the
// given number of header rows. Blank lines are dropped.
func readTSVLines(path string, headerRows int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		if n <= headerRows {
			continue
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// cell returns the i-th tab field, trimmed, or "" when the row is
// shorter than that.
func cell(parts []string, i int) string {
	if i >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[i])
}

// parseAmount reads a spreadsheet number cell. Empty cells and the
// placeholder values "-" and "/" yield zero.
func parseAmount(raw string) float64 {
	cleaned := strings.NewReplacer(",", "", " ", "", " ", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" || cleaned == "-" || cleaned == "/" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

var (
	seqPattern  = regexp.MustCompile(`^\d+$`)
	datePattern = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
)

// parseSheetDate extracts a yyyy-m-d date from a cell, tolerating
// single-digit months and days.
func parseSheetDate(raw string) *time.Time {
	m := datePattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}
