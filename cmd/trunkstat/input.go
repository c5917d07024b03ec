package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/ZanzyTHEbar/trunkstat/internal/analysis"
)

// openInput returns stdin for "" or "-", otherwise the named file
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}

// readValues parses numbers separated by whitespace, commas or semicolons.
// Lines starting with # are ignored.
func readValues(r io.Reader) ([]float64, error) {
	var values []float64
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		for _, field := range splitFields(text) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %q is not a number", line, field)
			}
			values = append(values, v)
		}
	}
	return values, scanner.Err()
}

// readPoints parses one "x y" pair per line
func readPoints(r io.Reader) ([]analysis.DataPoint[float64], error) {
	var points []analysis.DataPoint[float64]
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := splitFields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected x and y, got %d fields", line, len(fields))
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %q is not a number", line, fields[0])
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %q is not a number", line, fields[1])
		}
		p, err := analysis.NewDataPoint(x, y)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		points = append(points, p)
	}
	return points, scanner.Err()
}
