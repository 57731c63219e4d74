package seed_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taneng/budget-control/seed"
	"github.com/taneng/budget-control/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitialDataSeedsEverythingOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, seed.InitialData(ctx, store))

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 4)

	project, err := store.FirstProject(ctx)
	require.NoError(t, err)
	require.NotNil(t, project)
	assert.Equal(t, 56397.84, project.TotalBudget)
	assert.Equal(t, 0.07, project.ReserveRate)

	l1, err := store.ListCategoriesByLevel(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, l1, 6)
	l2, err := store.ListCategoriesByLevel(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, l2, 21)
	l3, err := store.ListCategoriesByLevel(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, l3, 21*6)

	subs, err := store.ListSubProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 36)

	// Second run is a no-op.
	require.NoError(t, seed.InitialData(ctx, store))
	users, err = store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 4)
}

func TestInitialDataLevel3BudgetShares(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, seed.InitialData(ctx, store))

	l3, err := store.ListCategoriesByLevel(ctx, 3)
	require.NoError(t, err)

	// 主井筒改造 (3500) splits into six cost types of 583.33 each.
	found := 0
	for _, c := range l3 {
		if c.ParentID == nil {
			continue
		}
		if len(c.Code) > 6 && c.Code[:5] == "MJ-01" {
			assert.Equal(t, 583.33, c.BudgetAmount, "code %s", c.Code)
			found++
		}
	}
	assert.Equal(t, 6, found)
}

func TestParseProcurementFile(t *testing.T) {
	content := "集团域外企业物资采购情况统计表\n" +
		"单位：索莫尼\n" +
		"序号\t编码\t物资名称\t规格型号\t计划价\t计划量\t单位\t采购单价\t采购方式\t付款方式\t采购量\t采购金额\t库存量\t人民币单价\t人民币金额\t使用单位\t项目名称\n" +
		"\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\n" +
		"1\tWL001\t锚杆\tΦ20×2400\t35.00\t1,200\t根\t36.50\t询价\t转账\t1,000\t36,500.00\t200\t28.00\t28,000.00\t掘进一队\t主井筒改造\n" +
		"2\tWL002\t\t规格缺失行\t10\t5\t个\t1\t询价\t转账\t5\t5\t0\t1\t5\t机电队\t通风系统\n" +
		"合计\t\t\t\t\t\t\t\t\t\t\t36,500.00\t\t\t28,000.00\t\t\n" +
		"填报人：张三\t联系电话：123\n"
	path := writeFile(t, t.TempDir(), "采购5月.txt", content)

	records, err := seed.ParseProcurementFile(path, 5)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, 5, r.Month)
	assert.Equal(t, 1, r.Seq)
	assert.Equal(t, "锚杆", r.MaterialName)
	assert.Equal(t, "Φ20×2400", r.Specification)
	assert.Equal(t, 1200.0, r.PlanQuantity)
	assert.Equal(t, "根", r.Unit)
	assert.Equal(t, 36500.0, r.PurchaseAmountSomoni)
	assert.Equal(t, 28000.0, r.AmountRMB)
	assert.Equal(t, "主井筒改造", r.ProjectName)
}

func TestParseWarehouseFile(t *testing.T) {
	content := "来塔物资全年出库决算分项\n" +
		"领用队组\t申请日期\t物资类别\t物资编码\t物资名称\t规格型号\t单位\t数量\t单价\t金额\t使用单位\t项目名称\n" +
		"掘进一队\t2025-3-5\t支护材料\tZH001\t锚索\tΦ21.8×7300\t根\t150\t120.00\t18,000.00\t掘进一队\t主运输巷道掘进\n" +
		"机电队\t2025-10-12\t电气设备\tDQ002\t电缆\tMYQ-0.3/0.5\t米\t500\t/\t2,500.00\t机电队\t井下供电系统安装\n" +
		"综合办\t2025-4-1\t办公用品\tBG001\t\t缺名称行\t箱\t10\t50\t500\t综合办\t\n"
	path := writeFile(t, t.TempDir(), "来塔物资全年出库决算分项.txt", content)

	records, err := seed.ParseWarehouseFile(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "掘进一队", first.Team)
	require.NotNil(t, first.ApplyDate)
	assert.Equal(t, "2025-03-05", first.ApplyDate.Format("2006-01-02"))
	assert.Equal(t, 18000.0, first.Amount)

	// "/" in the unit price column reads as zero.
	assert.Equal(t, 0.0, records[1].UnitPrice)
	assert.Equal(t, 2500.0, records[1].Amount)
}

func TestProcurementDataIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, seed.ProcurementData(ctx, store, ""))

	summaries, err := store.ListProcurementSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 12)
	assert.Equal(t, 461410.65, summaries[0].AmountSomoni)
	assert.Equal(t, 9735499.95, summaries[11].AmountSomoni)

	require.NoError(t, seed.ProcurementData(ctx, store, ""))
	summaries, err = store.ListProcurementSummaries(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 12)
}

func TestCivilSettlementsSeeded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, seed.CivilSettlements(ctx, store))

	totals, err := store.CivilSettlementTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, totals.Count)
	assert.InDelta(t, 27674649.31, totals.TotalSettlement, 0.01)

	rows, err := store.ListCivilSettlements(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 16)
	assert.Equal(t, "职工宿舍及室外工程", rows[0].ProjectName)
	assert.Equal(t, "项目一", rows[0].Contractor)
	assert.Nil(t, rows[0].SubProjectID)

	require.NoError(t, seed.CivilSettlements(ctx, store))
	totals, err = store.CivilSettlementTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, totals.Count)
}
