/*
warehouse.go - Warehouse outbound settlement seed

Parses the yearly outbound export (来塔物资全年出库决算分项) from
DATA_DIR. No-op once any outbound row is present.
*/
package seed

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/taneng/budget-control/budget"
	"github.com/taneng/budget-control/store/sqlite"
)

const warehouseFileName = "来塔物资全年出库决算分项.txt"

// WarehouseData seeds warehouse outbound rows from the yearly export.
func WarehouseData(ctx context.Context, store *sqlite.Store, dataDir string) error {
	count, err := store.CountWarehouseOutbound(ctx, sqlite.WarehouseFilter{})
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if dataDir == "" {
		return nil
	}

	path := filepath.Join(dataDir, warehouseFileName)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	records, err := ParseWarehouseFile(path)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil
	}
	if err := store.InsertWarehouseOutbound(ctx, records); err != nil {
		return err
	}
	log.Printf("warehouse outbound seeded: %d rows", len(records))
	return nil
}

// ParseWarehouseFile reads the outbound export. Rows without a material
// name are skipped.
func ParseWarehouseFile(path string) ([]budget.WarehouseOutbound, error) {
	lines, err := readTSVLines(path, 2)
	if err != nil {
		return nil, err
	}

	var records []budget.WarehouseOutbound
	for _, line := range lines {
		parts := strings.Split(line, "\t")
		if len(parts) < 10 {
			continue
		}
		materialName := cell(parts, 4)
		if materialName == "" {
			continue
		}
		records = append(records, budget.WarehouseOutbound{
			Team:          cell(parts, 0),
			ApplyDate:     parseSheetDate(cell(parts, 1)),
			MaterialType:  cell(parts, 2),
			MaterialCode:  cell(parts, 3),
			MaterialName:  materialName,
			Specification: cell(parts, 5),
			Unit:          cell(parts, 6),
			Quantity:      parseAmount(cell(parts, 7)),
			UnitPrice:     parseAmount(cell(parts, 8)),
			Amount:        parseAmount(cell(parts, 9)),
			UsageUnit:     cell(parts, 10),
			ProjectName:   cell(parts, 11),
		})
	}
	return records, nil
}
