/*
civil.go - Civil construction settlement seed

The 16 audited settlement lines come straight from the 土建决算 sheet.
Four of them carry the contractor payment-plan columns (somoni split,
February plan, remaining debt); the rest settle in RMB only.
*/
package seed

import (
	"context"
	"log"

	"github.com/taneng/budget-control/budget"
	"github.com/taneng/budget-control/store/sqlite"
)

var civilSettlementSeeds = []budget.CivilSettlement{
	{Seq: 1, ProjectName: "职工宿舍及室外工程", AuditAmount: 8634188.70, SettlementAmount: 6907350.95,
		PaymentPlan: 8645938.27, SomoniAmount: 1133.57, Somoni40Percent: 453, FebPlanSomoni: 0, DebtSomoni: 680.14, Contractor: "项目一"},
	{Seq: 2, ProjectName: "临时澡堂", AuditAmount: 477085.87, SettlementAmount: 381668.70},
	{Seq: 3, ProjectName: "新建停车场", AuditAmount: 1696148.28, SettlementAmount: 1356918.62},
	{Seq: 4, ProjectName: "原水调节池兼消防水池", AuditAmount: 1331015.24, SettlementAmount: 1064812.19,
		PaymentPlan: 11177801.71, SomoniAmount: 1465.52, Somoni40Percent: 586, FebPlanSomoni: 500, DebtSomoni: 379.31, Contractor: "项目二"},
	{Seq: 5, ProjectName: "矿井水沉淀池", AuditAmount: 1097013.88, SettlementAmount: 877611.10},
	{Seq: 6, ProjectName: "新建泵房配电室", AuditAmount: 319294.29, SettlementAmount: 255435.43},
	{Seq: 7, ProjectName: "简易材料大棚", AuditAmount: 779862.04, SettlementAmount: 623889.63},
	{Seq: 8, ProjectName: "新建灯房浴室联合建筑", AuditAmount: 6917318.20, SettlementAmount: 5533854.56},
	{Seq: 9, ProjectName: "锅炉房", AuditAmount: 911734.26, SettlementAmount: 729387.41},
	{Seq: 10, ProjectName: "公共卫生间及化粪池", AuditAmount: 276251.54, SettlementAmount: 221001.23},
	{Seq: 11, ProjectName: "综机广场硬化及行吊基础", AuditAmount: 2339762.70, SettlementAmount: 1871810.16},
	{Seq: 12, ProjectName: "场内道路", AuditAmount: 1067955.60, SettlementAmount: 854364.48,
		PaymentPlan: 3702768.46, SomoniAmount: 485.47, Somoni40Percent: 194, FebPlanSomoni: 90, DebtSomoni: 201.28, Contractor: "项目三"},
	{Seq: 13, ProjectName: "场外道路", AuditAmount: 2521363.33, SettlementAmount: 2017090.66},
	{Seq: 14, ProjectName: "综合楼广场改造", AuditAmount: 1039141.64, SettlementAmount: 831313.31},
	{Seq: 15, ProjectName: "新建副井井口房", AuditAmount: 1337923.79, SettlementAmount: 1070339.04,
		PaymentPlan: 4148140.88, SomoniAmount: 543.86, Somoni40Percent: 218, FebPlanSomoni: 250, DebtSomoni: 76.32, Contractor: "项目四"},
	{Seq: 16, ProjectName: "新建综机车间", AuditAmount: 3847252.30, SettlementAmount: 3077801.84},
}

// CivilSettlements seeds the audited settlement lines. The sheet items
// are site works that do not map one-to-one onto the planned
// sub-projects, so the lines stay unlinked. No-op once any line exists.
func CivilSettlements(ctx context.Context, store *sqlite.Store) error {
	totals, err := store.CivilSettlementTotals(ctx)
	if err != nil {
		return err
	}
	if totals.Count > 0 {
		return nil
	}

	for i := range civilSettlementSeeds {
		cs := civilSettlementSeeds[i]
		if err := store.InsertCivilSettlement(ctx, &cs); err != nil {
			return err
		}
	}
	log.Printf("civil settlements seeded: %d lines", len(civilSettlementSeeds))
	return nil
}
