/*
expenditures.go - Expenditure recording, queries and file import

PURPOSE:
  CRUD plus the Excel/CSV import endpoint. Every write path goes
  through the store's recompute cascade so the denormalized totals on
  sub-projects and cost items stay exact.

IMPORT FORMAT:
  Header row with required columns 子工程ID/日期/金额 and optional
  描述/凭证号/科目ID/成本项ID. Bad rows are reported per row number and
  skipped; the valid rows still commit.
*/
package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/taneng/budget-control/budget"
	"github.com/taneng/budget-control/store/sqlite"
)

// =============================================================================
// QUERIES
// =============================================================================

func expenditureFilterFromQuery(r *http.Request) (sqlite.ExpenditureFilter, error) {
	f := sqlite.ExpenditureFilter{
		SubProjectID: queryInt64Ptr(r, "sub_project_id"),
		CostItemID:   queryInt64Ptr(r, "cost_item_id"),
		CategoryID:   queryInt64Ptr(r, "category_id"),
		Source:       budget.ExpenditureSource(r.URL.Query().Get("source")),
		Page:         queryInt(r, "page", 1),
		PageSize:     queryInt(r, "page_size", 20),
	}
	if v := r.URL.Query().Get("start_date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, fmt.Errorf("invalid start_date %q", v)
		}
		f.Start = &t
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, fmt.Errorf("invalid end_date %q", v)
		}
		// The query parameter is an inclusive end date; the store filter
		// is exclusive.
		end := t.AddDate(0, 0, 1)
		f.End = &end
	}
	return f, nil
}

// ListExpenditures returns one page of records matching the query
// filters, newest first.
func (h *Handler) ListExpenditures(w http.ResponseWriter, r *http.Request) {
	f, err := expenditureFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	items, total, err := h.Store.ListExpenditures(r.Context(), f)
	if err != nil {
		writeStoreError(w, "Failed to list expenditures", err)
		return
	}
	dtos := make([]ExpenditureDTO, 0, len(items))
	for i := range items {
		dtos = append(dtos, toExpenditureDTO(&items[i]))
	}
	writeJSON(w, http.StatusOK, ExpenditureListResponse{
		Items:    dtos,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	})
}

// SummarizeExpenditures returns the filtered total and its monthly
// breakdown.
func (h *Handler) SummarizeExpenditures(w http.ResponseWriter, r *http.Request) {
	f, err := expenditureFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	summary, err := h.Store.SummarizeExpenditures(r.Context(), f)
	if err != nil {
		writeStoreError(w, "Failed to summarize expenditures", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// =============================================================================
// WRITES
// =============================================================================

// CreateExpenditure records one expenditure.
func (h *Handler) CreateExpenditure(w http.ResponseWriter, r *http.Request) {
	var req ExpenditureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	e, err := expenditureFromRequest(&req, currentUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Store.CreateExpenditure(r.Context(), e); err != nil {
		writeStoreError(w, "Failed to create expenditure", err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenditureDTO(e))
}

// BatchCreateExpenditures records several expenditures in one
// transaction with a single recompute per affected total.
func (h *Handler) BatchCreateExpenditures(w http.ResponseWriter, r *http.Request) {
	var reqs []ExpenditureRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(reqs) == 0 {
		writeError(w, http.StatusBadRequest, "At least one record is required", nil)
		return
	}
	userID := currentUserID(r.Context())
	items := make([]*budget.Expenditure, 0, len(reqs))
	for i := range reqs {
		e, err := expenditureFromRequest(&reqs[i], userID)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Record %d: %v", i+1, err), nil)
			return
		}
		items = append(items, e)
	}
	if err := h.Store.BatchInsertExpenditures(r.Context(), items); err != nil {
		writeStoreError(w, "Failed to insert expenditures", err)
		return
	}
	dtos := make([]ExpenditureDTO, 0, len(items))
	for _, e := range items {
		dtos = append(dtos, toExpenditureDTO(e))
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// DeleteExpenditure removes a record and recomputes the affected
// totals.
func (h *Handler) DeleteExpenditure(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid expenditure id", err)
		return
	}
	if err := h.Store.DeleteExpenditure(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to delete expenditure", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func expenditureFromRequest(req *ExpenditureRequest, userID int64) (*budget.Expenditure, error) {
	if req.SubProjectID == 0 {
		return nil, fmt.Errorf("sub_project_id is required")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	recordDate, err := time.Parse(dateLayout, req.RecordDate)
	if err != nil {
		return nil, fmt.Errorf("invalid record_date format (use YYYY-MM-DD)")
	}
	return &budget.Expenditure{
		CostItemID:   req.CostItemID,
		SubProjectID: req.SubProjectID,
		CategoryID:   req.CategoryID,
		RecordDate:   recordDate,
		Amount:       req.Amount,
		Description:  req.Description,
		VoucherNo:    req.VoucherNo,
		Source:       budget.SourceManual,
		CreatedBy:    userID,
	}, nil
}

// =============================================================================
// FILE IMPORT
// =============================================================================

// importColumns maps the expected header names onto field indexes.
var importColumns = map[string]string{
	"子工程ID": "sub_project_id",
	"日期":    "record_date",
	"金额":    "amount",
	"描述":    "description",
	"凭证号":   "voucher_no",
	"科目ID":  "category_id",
	"成本项ID": "cost_item_id",
}

// UploadExpenditures imports an .xlsx or .csv file of expenditure
// rows. Parsed rows commit; problems are reported per row.
func (h *Handler) UploadExpenditures(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field", err)
		return
	}
	defer file.Close()

	var rows [][]string
	if strings.HasSuffix(strings.ToLower(header.Filename), ".xlsx") {
		rows, err = readExcelRows(file)
	} else {
		rows, err = readCSVRows(file)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file", err)
		return
	}
	if len(rows) < 2 {
		writeError(w, http.StatusBadRequest, "File has no data rows", nil)
		return
	}

	// Resolve column positions from the header row.
	fields := make(map[string]int)
	for i, name := range rows[0] {
		if field, ok := importColumns[strings.TrimSpace(name)]; ok {
			fields[field] = i
		}
	}
	for _, required := range []string{"sub_project_id", "record_date", "amount"} {
		if _, ok := fields[required]; !ok {
			writeError(w, http.StatusBadRequest,
				"Missing required columns 子工程ID/日期/金额", nil)
			return
		}
	}

	userID := currentUserID(r.Context())
	result := ImportResultDTO{Errors: []string{}}
	var items []*budget.Expenditure
	for rowNum, row := range rows[1:] {
		e, err := parseImportRow(row, fields, userID)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("第%d行: %v", rowNum+2, err))
			continue
		}
		items = append(items, e)
	}

	if len(items) > 0 {
		if err := h.Store.BatchInsertExpenditures(r.Context(), items); err != nil {
			writeStoreError(w, "Failed to insert imported rows", err)
			return
		}
	}
	result.Imported = len(items)
	writeJSON(w, http.StatusOK, result)
}

func parseImportRow(row []string, fields map[string]int, userID int64) (*budget.Expenditure, error) {
	get := func(field string) string {
		idx, ok := fields[field]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	subProjectID, err := strconv.ParseInt(get("sub_project_id"), 10, 64)
	if err != nil || subProjectID == 0 {
		return nil, fmt.Errorf("子工程ID无效")
	}
	recordDate, err := time.Parse(dateLayout, get("record_date"))
	if err != nil {
		return nil, fmt.Errorf("日期格式无效，应为YYYY-MM-DD")
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(get("amount"), ",", ""), 64)
	if err != nil || amount <= 0 {
		return nil, fmt.Errorf("金额无效")
	}

	e := &budget.Expenditure{
		SubProjectID: subProjectID,
		RecordDate:   recordDate,
		Amount:       amount,
		Description:  get("description"),
		VoucherNo:    get("voucher_no"),
		Source:       budget.SourceExcelImport,
		CreatedBy:    userID,
	}
	if v := get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("科目ID无效")
		}
		e.CategoryID = &id
	}
	if v := get("cost_item_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("成本项ID无效")
		}
		e.CostItemID = &id
	}
	return e, nil
}

func readExcelRows(file io.Reader) ([][]string, error) {
	book, err := excelize.OpenReader(file)
	if err != nil {
		return nil, err
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return book.GetRows(sheets[0])
}

func readCSVRows(file io.Reader) ([][]string, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}
