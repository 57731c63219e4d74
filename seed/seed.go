/*
Package seed bootstraps an empty database.

PURPOSE:
  On first start the store is filled with the default users, the main
  renovation project, the 3-level budget category tree, and the 36
  planned sub-projects. Settlement reference data (procurement detail,
  warehouse outbound) is loaded from TSV exports in DATA_DIR when the
  files exist.

IDEMPOTENCE:
  Every seeding step checks its own marker first (users for the core
  data, monthly summaries for procurement, row counts for the rest) and
  becomes a no-op on subsequent starts.
*/
package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/taneng/budget-control/auth"
	"github.com/taneng/budget-control/budget"
	"github.com/taneng/budget-control/store/sqlite"
)

// Run executes all seeding steps. dataDir may be empty; file-backed
// steps are then skipped.
func Run(ctx context.Context, store *sqlite.Store, dataDir string) error {
	if err := InitialData(ctx, store); err != nil {
		return fmt.Errorf("seed initial data: %w", err)
	}
	if err := ProcurementData(ctx, store, dataDir); err != nil {
		return fmt.Errorf("seed procurement data: %w", err)
	}
	if err := WarehouseData(ctx, store, dataDir); err != nil {
		return fmt.Errorf("seed warehouse data: %w", err)
	}
	if err := CivilSettlements(ctx, store); err != nil {
		return fmt.Errorf("seed civil settlements: %w", err)
	}
	return nil
}

// InitialData creates the default users, project, categories and
// sub-projects. No-op once users exist.
func InitialData(ctx context.Context, store *sqlite.Store) error {
	count, err := store.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if err := seedUsers(ctx, store); err != nil {
		return err
	}
	projectID, err := seedProject(ctx, store)
	if err != nil {
		return err
	}
	if err := seedCategories(ctx, store); err != nil {
		return err
	}
	if err := seedSubProjects(ctx, store, projectID); err != nil {
		return err
	}
	log.Println("initial data seeded")
	return nil
}

func seedUsers(ctx context.Context, store *sqlite.Store) error {
	defaults := []struct {
		username, password, fullName, department string
		role                                     budget.Role
	}{
		{"admin", "admin123", "系统管理员", "信息技术部", budget.RoleAdmin},
		{"leader", "leader123", "矿领导", "矿领导层", budget.RoleLeader},
		{"engineer", "eng123", "工程部员工", "工程部", budget.RoleDepartment},
		{"viewer", "view123", "普通员工", "综合办", budget.RoleViewer},
	}
	for _, d := range defaults {
		hash, err := auth.HashPassword(d.password)
		if err != nil {
			return err
		}
		u := &budget.User{
			Username:     d.username,
			FullName:     d.fullName,
			PasswordHash: hash,
			Role:         d.role,
			Department:   d.department,
			IsActive:     true,
		}
		if err := store.CreateUser(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func seedProject(ctx context.Context, store *sqlite.Store) (int64, error) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := &budget.Project{
		Name:        "平煤神马塔能伊斯法拉公司煤矿（原舒拉8号井）技术改造项目",
		Description: "根据平煤神马集团批复，项目建设总投资56397.84万元的技术改造工程",
		TotalBudget: 56397.84,
		ReserveRate: 0.07,
		StartDate:   &start,
		EndDate:     &end,
		Status:      budget.ProjectInProgress,
	}
	if err := store.CreateProject(ctx, p); err != nil {
		return 0, err
	}
	return p.ID, nil
}

type categorySeed struct {
	name   string
	code   string
	amount float64
}

var level1Categories = []categorySeed{
	{"矿建工程费", "MJ", 13176.53},
	{"土建工程费", "TJ", 9035.35},
	{"安装工程费", "AZ", 14293.29},
	{"设备购置费", "SB", 14116.51},
	{"其他费用", "QT", 4574.25},
	{"预备费", "YB", 1201.91},
}

// level2Categories maps each L1 code to its children in sort order.
var level2Categories = map[string][]categorySeed{
	"MJ": {
		{"主井筒改造", "MJ-01", 3500},
		{"副井筒改造", "MJ-02", 2800},
		{"巷道掘进", "MJ-03", 3200},
		{"通风系统", "MJ-04", 1876.53},
		{"排水系统", "MJ-05", 1800},
	},
	"TJ": {
		{"工业场地建筑", "TJ-01", 3200},
		{"办公及生活设施", "TJ-02", 2100},
		{"道路及运输设施", "TJ-03", 1835.35},
		{"环保设施", "TJ-04", 1900},
	},
	"AZ": {
		{"采掘设备安装", "AZ-01", 4500},
		{"提升运输设备安装", "AZ-02", 3200},
		{"供电系统安装", "AZ-03", 3500},
		{"通讯监控系统安装", "AZ-04", 3093.29},
	},
	"SB": {
		{"采掘设备", "SB-01", 5000},
		{"提升运输设备", "SB-02", 3500},
		{"供电设备", "SB-03", 2800},
		{"安全监测设备", "SB-04", 2816.51},
	},
	"QT": {
		{"设计咨询费", "QT-01", 1200},
		{"建设管理费", "QT-02", 1500},
		{"生产准备费", "QT-03", 1074.25},
		{"其他专项费用", "QT-04", 800},
	},
}

// level3Types are the generic cost types repeated under every L2 node;
// each gets an even share of the parent budget.
var level3Types = []categorySeed{
	{"人员工资", "RY", 0},
	{"材料费", "CL", 0},
	{"机械使用费", "JX", 0},
	{"运输费", "YS", 0},
	{"管理费", "GL", 0},
	{"临时设施费", "LS", 0},
}

func seedCategories(ctx context.Context, store *sqlite.Store) error {
	for i, l1 := range level1Categories {
		parent := &budget.BudgetCategory{
			Name:         l1.name,
			Code:         l1.code,
			Level:        1,
			BudgetAmount: l1.amount,
			SortOrder:    i + 1,
		}
		if err := store.CreateCategory(ctx, parent); err != nil {
			return err
		}

		for j, l2 := range level2Categories[l1.code] {
			child := &budget.BudgetCategory{
				Name:         l2.name,
				Code:         l2.code,
				ParentID:     &parent.ID,
				Level:        2,
				BudgetAmount: l2.amount,
				SortOrder:    j + 1,
			}
			if err := store.CreateCategory(ctx, child); err != nil {
				return err
			}

			share := budget.Round2(l2.amount / float64(len(level3Types)))
			for k, l3 := range level3Types {
				leaf := &budget.BudgetCategory{
					Name:         l3.name,
					Code:         l2.code + "-" + l3.code,
					ParentID:     &child.ID,
					Level:        3,
					BudgetAmount: share,
					SortOrder:    k + 1,
				}
				if err := store.CreateCategory(ctx, leaf); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type subProjectSeed struct {
	name     string
	category string
	amount   float64
	start    string
	end      string
}

var subProjectSeeds = []subProjectSeed{
	{"主井筒改造工程", "矿建工程费", 3500, "2025-03-01", "2025-08-30"},
	{"副井筒改造工程", "矿建工程费", 2800, "2025-03-15", "2025-09-30"},
	{"主运输巷道掘进", "矿建工程费", 1600, "2025-04-01", "2025-10-31"},
	{"回风巷道掘进", "矿建工程费", 1600, "2025-04-15", "2025-11-15"},
	{"通风系统改造", "矿建工程费", 1876.53, "2025-05-01", "2025-10-31"},
	{"排水系统升级", "矿建工程费", 1800, "2025-05-15", "2025-11-30"},
	{"选煤厂房建设", "土建工程费", 1800, "2025-03-01", "2025-09-30"},
	{"机修车间建设", "土建工程费", 1400, "2025-04-01", "2025-09-30"},
	{"办公楼改造", "土建工程费", 1200, "2025-05-01", "2025-10-31"},
	{"职工宿舍改造", "土建工程费", 900, "2025-05-15", "2025-10-15"},
	{"矿区道路建设", "土建工程费", 1000, "2025-03-15", "2025-08-31"},
	{"运输通道建设", "土建工程费", 835.35, "2025-04-01", "2025-09-30"},
	{"污水处理设施", "土建工程费", 1000, "2025-06-01", "2025-11-30"},
	{"粉尘治理设施", "土建工程费", 900, "2025-06-15", "2025-12-15"},
	{"综采设备安装", "安装工程费", 2500, "2025-06-01", "2025-10-31"},
	{"掘进设备安装", "安装工程费", 2000, "2025-06-15", "2025-11-15"},
	{"主井提升机安装", "安装工程费", 1800, "2025-07-01", "2025-11-30"},
	{"皮带运输机安装", "安装工程费", 1400, "2025-07-15", "2025-12-15"},
	{"35kV变电所安装", "安装工程费", 2000, "2025-05-01", "2025-09-30"},
	{"井下供电系统安装", "安装工程费", 1500, "2025-06-01", "2025-10-31"},
	{"安全监控系统安装", "安装工程费", 1593.29, "2025-07-01", "2025-12-31"},
	{"通讯调度系统安装", "安装工程费", 1500, "2025-08-01", "2026-01-31"},
	{"综采成套设备采购", "设备购置费", 3000, "2025-03-01", "2025-06-30"},
	{"掘进机组采购", "设备购置费", 2000, "2025-03-15", "2025-06-30"},
	{"主井提升设备采购", "设备购置费", 2000, "2025-04-01", "2025-07-31"},
	{"皮带运输设备采购", "设备购置费", 1500, "2025-04-15", "2025-08-31"},
	{"变压器及开关柜采购", "设备购置费", 1600, "2025-03-01", "2025-06-30"},
	{"电缆电线采购", "设备购置费", 1200, "2025-03-15", "2025-07-31"},
	{"瓦斯监测系统采购", "设备购置费", 1500, "2025-04-01", "2025-07-31"},
	{"人员定位系统采购", "设备购置费", 1316.51, "2025-04-15", "2025-08-31"},
	{"初步设计及施工图设计", "其他费用", 1200, "2025-02-01", "2025-04-30"},
	{"工程监理", "其他费用", 800, "2025-03-01", "2026-03-01"},
	{"建设单位管理费", "其他费用", 700, "2025-03-01", "2026-03-01"},
	{"生产准备及培训", "其他费用", 1074.25, "2025-10-01", "2026-02-28"},
	{"环评及安评", "其他费用", 400, "2025-02-15", "2025-05-31"},
	{"联合试运转", "其他费用", 400, "2025-12-01", "2026-02-28"},
}

func seedSubProjects(ctx context.Context, store *sqlite.Store, projectID int64) error {
	for i, s := range subProjectSeeds {
		start, err := time.Parse("2006-01-02", s.start)
		if err != nil {
			return err
		}
		end, err := time.Parse("2006-01-02", s.end)
		if err != nil {
			return err
		}
		sp := &budget.SubProject{
			ProjectID:       projectID,
			Name:            s.name,
			Category:        s.category,
			AllocatedBudget: s.amount,
			Status:          budget.SubProjectNotStarted,
			PlannedStart:    &start,
			PlannedEnd:      &end,
			SortOrder:       i + 1,
		}
		if err := store.CreateSubProject(ctx, sp); err != nil {
			return err
		}
	}
	return nil
}
