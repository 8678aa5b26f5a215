// Package importer binds MAC addresses to sensor names from spreadsheet
// exports.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"sensor-dashboard/internal/storage"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var ErrMissingColumns = errors.New("CSV file missing required MAC column")

// Known column names in device lists, in different languages.
type ColumnDefinition struct {
	MACField  string
	NameField string

	Language string // Language code, e.g. "en", "th"
}

var ColumnDefinitions = []ColumnDefinition{
	{MACField: "MAC", NameField: "NAME", Language: "en"},
	{MACField: "MAC ADDRESS", NameField: "ALIAS", Language: "en"},
	{MACField: "หมายเลข MAC", NameField: "ชื่อ", Language: "th"},
	{MACField: "MAC", NameField: "ชื่อเครื่อง", Language: "th"},
}

// Binding is one row of a device list.
type Binding struct {
	MAC  string
	Name string
	Line int
}

// decoder strips a UTF-8 or UTF-16 byte order mark and decodes to UTF-8.
// Spreadsheet exports are often UTF-16 with BOM.
func decoder(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

func matchHeader(headers []string) (ColumnDefinition, int, int, bool) {
	for _, def := range ColumnDefinitions {
		idxMAC, idxName := -1, -1
		for i, h := range headers {
			h = strings.TrimSpace(h)
			switch {
			case strings.EqualFold(h, def.MACField):
				idxMAC = i
			case strings.EqualFold(h, def.NameField):
				idxName = i
			}
		}
		if idxMAC != -1 {
			return def, idxMAC, idxName, true
		}
	}
	return ColumnDefinition{}, -1, -1, false
}

// ReadBindings parses a device list. A comma of 0 picks tab when the header
// line contains one, comma otherwise. Rows without a MAC are skipped; a MAC
// listed twice keeps its last name.
func ReadBindings(r io.Reader, comma rune) ([]Binding, error) {
	data, err := io.ReadAll(decoder(r))
	if err != nil {
		return nil, fmt.Errorf("failed to decode CSV: %w", err)
	}
	text := string(data)

	if comma == 0 {
		firstLine, _, _ := strings.Cut(text, "\n")
		comma = ','
		if strings.ContainsRune(firstLine, '\t') {
			comma = '\t'
		}
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = comma
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	def, idxMAC, idxName, ok := matchHeader(headers)
	if !ok {
		return nil, ErrMissingColumns
	}
	slog.Debug("Matched device list columns", "language", def.Language, "mac", idxMAC, "name", idxName)

	var bindings []Binding
	index := make(map[string]int)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if idxMAC >= len(record) {
			continue
		}
		mac := strings.TrimSpace(record[idxMAC])
		if mac == "" {
			continue
		}
		name := ""
		if idxName != -1 && idxName < len(record) {
			name = strings.TrimSpace(record[idxName])
		}

		b := Binding{MAC: mac, Name: name, Line: line}
		if i, seen := index[mac]; seen {
			slog.Warn("Duplicate MAC in device list", "mac", mac, "line", line, "first_line", bindings[i].Line)
			bindings[i] = b
			continue
		}
		index[mac] = len(bindings)
		bindings = append(bindings, b)
	}
	return bindings, nil
}

func ReadFile(path string, comma rune) ([]Binding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()
	return ReadBindings(f, comma)
}

// Apply binds every MAC as an active sensor, named after the list or the MAC.
func Apply(ctx context.Context, provider storage.Provider, bindings []Binding) (int, error) {
	for i, b := range bindings {
		name := b.Name
		if name == "" {
			name = b.MAC
		}
		err := provider.MergeSensor(ctx, b.MAC, storage.Patch{
			"name":       name,
			"status":     storage.SensorStatusActive,
			"updated_at": storage.ServerTimestamp,
		})
		if err != nil {
			return i, fmt.Errorf("line %d: %w", b.Line, err)
		}
	}
	return len(bindings), nil
}
