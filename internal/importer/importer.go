package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"campusrunner/internal/domain"

	"github.com/shopspring/decimal"
)

// CatalogWriter is the part of the catalog service the importer drives.
type CatalogWriter interface {
	EnsureCategory(ctx context.Context, name string) (*domain.Category, error)
	UpsertItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error)
}

// CSVImporter reads catalog rows with the headers category,name,price,unit,available
// and upserts one item per row. Prices are decimal major units, e.g. 12.50.
type CSVImporter struct {
	reader  *csv.Reader
	catalog CatalogWriter
}

func NewCSVImporter(r io.Reader, catalog CatalogWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{reader: csvr, catalog: catalog}
}

type csvRow struct {
	Line       int
	Category   string
	Name       string
	PriceCents int64
	Unit       string
	Available  bool
}

// Run parses every row and upserts it, resolving categories by name once per run.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"category", "name", "price"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing %q column", required)
		}
	}

	var (
		categories = make(map[string]string)
		imported   int
		line       = 1
	)
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		row, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if row == nil {
			continue
		}
		row.Line = line

		catID, ok := categories[row.Category]
		if !ok {
			cat, err := i.catalog.EnsureCategory(ctx, row.Category)
			if err != nil {
				return imported, fmt.Errorf("line %d: ensure category %q: %w", line, row.Category, err)
			}
			catID = cat.ID
			categories[row.Category] = catID
		}
		if err := i.save(ctx, catID, row); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, categoryID string, row *csvRow) error {
	_, err := i.catalog.UpsertItem(ctx, domain.CatalogItem{
		CategoryID:     categoryID,
		Name:           row.Name,
		UnitPriceCents: row.PriceCents,
		UnitLabel:      row.Unit,
		Available:      row.Available,
	})
	if err != nil {
		return fmt.Errorf("line %d: upsert item %q: %w", row.Line, row.Name, err)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// parseRow returns nil for blank rows.
func parseRow(record []string, index map[string]int) (*csvRow, error) {
	category := pick(record, index, "category")
	name := pick(record, index, "name")
	price := pick(record, index, "price")
	if category == "" && name == "" && price == "" {
		return nil, nil
	}
	if category == "" || name == "" {
		return nil, errors.New("category and name are required")
	}

	cents, err := parseCents(price)
	if err != nil {
		return nil, fmt.Errorf("price %q: %w", price, err)
	}

	available := true
	if raw := pick(record, index, "available"); raw != "" {
		available, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("available %q: %w", raw, err)
		}
	}

	return &csvRow{
		Category:   category,
		Name:       name,
		PriceCents: cents,
		Unit:       pick(record, index, "unit"),
		Available:  available,
	}, nil
}

func parseCents(raw string) (int64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, errors.New("must not be negative")
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
