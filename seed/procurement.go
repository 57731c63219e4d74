/*
procurement.go - Group-external procurement settlement seed

The somoni-denominated monthly totals come from the group settlement
report and are hard-coded; the per-material detail rows are parsed from
the twelve monthly TSV exports when DATA_DIR provides them.
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

// monthlyTotalsSomoni is the reported procurement spend per month.
var monthlyTotalsSomoni = map[int]float64{
	1:  461410.65,
	2:  434575.65,
	3:  839301.50,
	4:  369855.85,
	5:  2610990.90,
	6:  553355.00,
	7:  1550071.40,
	8:  2976305.27,
	9:  1818037.45,
	10: 8483008.83,
	11: 5088279.35,
	12: 9735499.95,
}

// ProcurementData seeds the monthly totals and, when the export files
// exist, the detail rows. No-op once any summary is present.
func ProcurementData(ctx context.Context, store *sqlite.Store, dataDir string) error {
	count, err := store.CountProcurementSummaries(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for month := 1; month <= 12; month++ {
		if err := store.UpsertProcurementSummary(ctx, month, monthlyTotalsSomoni[month]); err != nil {
			return err
		}
	}

	if dataDir == "" {
		log.Println("procurement summaries seeded; DATA_DIR unset, skipping detail rows")
		return nil
	}

	total := 0
	for month := 1; month <= 12; month++ {
		path := filepath.Join(dataDir, fmt.Sprintf("集团域外企业物资采购情况统计表%d月.txt", month))
		if _, err := os.Stat(path); err != nil {
			continue
		}
		records, err := ParseProcurementFile(path, month)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if len(records) == 0 {
			continue
		}
		if err := store.InsertProcurementRecords(ctx, records); err != nil {
			return err
		}
		total += len(records)
	}
	log.Printf("procurement data seeded: 12 monthly summaries, %d detail rows", total)
	return nil
}

// ParseProcurementFile reads one monthly export. Rows without a numeric
// sequence (totals, signature lines) or without a material name are
// skipped.
func ParseProcurementFile(path string, month int) ([]budget.ProcurementRecord, error) {
	lines, err := readTSVLines(path, 4)
	if err != nil {
		return nil, err
	}

	var records []budget.ProcurementRecord
	for _, line := range lines {
		parts := strings.Split(line, "\t")
		if len(parts) < 10 {
			continue
		}
		seqRaw := cell(parts, 0)
		if !seqPattern.MatchString(seqRaw) {
			continue
		}
		materialName := cell(parts, 2)
		if materialName == "" {
			continue
		}
		records = append(records, budget.ProcurementRecord{
			Month:                   month,
			Seq:                     int(parseAmount(seqRaw)),
			MaterialName:            materialName,
			Specification:           cell(parts, 3),
			PlanPrice:               parseAmount(cell(parts, 4)),
			PlanQuantity:            parseAmount(cell(parts, 5)),
			Unit:                    cell(parts, 6),
			PurchaseUnitPriceSomoni: parseAmount(cell(parts, 7)),
			PurchaseMethod:          cell(parts, 8),
			PaymentMethod:           cell(parts, 9),
			PurchaseQuantity:        parseAmount(cell(parts, 10)),
			PurchaseAmountSomoni:    parseAmount(cell(parts, 11)),
			StockQuantity:           parseAmount(cell(parts, 12)),
			UnitPriceRMB:            parseAmount(cell(parts, 13)),
			AmountRMB:               parseAmount(cell(parts, 14)),
			UsageUnit:               cell(parts, 15),
			ProjectName:             cell(parts, 16),
		})
	}
	return records, nil
}
