package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/oremia/risk-matrix/internal/matrix/handler"
	"github.com/oremia/risk-matrix/internal/matrix/model"
	"github.com/oremia/risk-matrix/internal/matrix/service"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (*gin.Engine, *service.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := service.NewStore(model.Default(), zap.NewNop())
	h := handler.NewMatrixHandler(store, zap.NewNop())

	router := gin.New()
	h.Register(router.Group(""))
	return router, store
}

func workbookUpload(t *testing.T, filename string, rows ...[]interface{}) (*bytes.Buffer, string) {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row %d: %v", i, err)
		}
	}
	wb, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return multipartUpload(t, filename, wb.Bytes())
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, mw.FormDataContentType()
}

func doJSON(router *gin.Engine, method, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAssess(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/risk-matrix/assess", `{"probability":"偶尔发生","severity":"严重"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		RiskValue int    `json:"risk_value"`
		RiskLevel string `json:"risk_level"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RiskValue != 9 || resp.RiskLevel != "中风险" {
		t.Errorf("got (%d, %q), want (9, 中风险)", resp.RiskValue, resp.RiskLevel)
	}
}

func TestAssessUnknownLevel(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/risk-matrix/assess", `{"probability":"不存在","severity":"严重"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAssessMissingField(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/risk-matrix/assess", `{"probability":"偶尔发生"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLevels(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/risk-matrix/levels", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Probability map[string]int `json:"probability"`
		Severity    map[string]int `json:"severity"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Probability) != 5 || len(resp.Severity) != 4 {
		t.Errorf("got %d probability and %d severity levels, want 5 and 4", len(resp.Probability), len(resp.Severity))
	}
	if resp.Probability["经常发生"] != 5 || resp.Severity["灾难"] != 4 {
		t.Errorf("default ranks missing from response: %+v", resp)
	}
}

func TestVisualize(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/risk-matrix/visualize", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		ProbabilityAxis []string `json:"probability_axis"`
		SeverityAxis    []string `json:"severity_axis"`
		MatrixData      [][]struct {
			Probability string `json:"probability"`
			Severity    string `json:"severity"`
			RiskValue   int    `json:"risk_value"`
			RiskLevel   string `json:"risk_level"`
		} `json:"matrix_data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.MatrixData) != 5 || len(resp.MatrixData[0]) != 4 {
		t.Fatalf("matrix is %dx%d, want 5x4", len(resp.MatrixData), len(resp.MatrixData[0]))
	}
	if resp.MatrixData[4][3].RiskValue != 20 || resp.MatrixData[4][3].RiskLevel != "极高风险" {
		t.Errorf("top-right cell = %+v, want value 20 level 极高风险", resp.MatrixData[4][3])
	}
}

func TestConfigure(t *testing.T) {
	router, store := newTestRouter(t)

	body, contentType := workbookUpload(t, "model.xlsx",
		[]interface{}{"类型", "名称", "数值"},
		[]interface{}{"probability", "甲", 1},
		[]interface{}{"probability", "乙", 3},
		[]interface{}{"severity", "X", 2},
		[]interface{}{"level", "low", 10},
		[]interface{}{"level", "high", 999},
	)

	req := httptest.NewRequest(http.MethodPost, "/risk-matrix/configure", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Message  string `json:"message"`
		Revision string `json:"revision"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Revision == "" {
		t.Error("response has no revision")
	}

	a, err := store.Current().Assess("乙", "X")
	if err != nil {
		t.Fatalf("assess on replaced model: %v", err)
	}
	if a.RiskValue != 6 || a.RiskLevel != "low" {
		t.Errorf("Assess(乙, X) = (%d, %q), want (6, low)", a.RiskValue, a.RiskLevel)
	}
}

func TestConfigureBadExtension(t *testing.T) {
	router, store := newTestRouter(t)
	before := store.Current()

	body, contentType := multipartUpload(t, "model.csv", []byte("类型,名称,数值\n"))
	req := httptest.NewRequest(http.MethodPost, "/risk-matrix/configure", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if store.Current() != before {
		t.Error("active model changed after a rejected upload")
	}
}

func TestConfigureIncomplete(t *testing.T) {
	router, store := newTestRouter(t)
	before := store.Current()

	// No level rows at all.
	body, contentType := workbookUpload(t, "model.xlsx",
		[]interface{}{"类型", "名称", "数值"},
		[]interface{}{"probability", "p", 1},
		[]interface{}{"severity", "s", 1},
	)

	req := httptest.NewRequest(http.MethodPost, "/risk-matrix/configure", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "levels") {
		t.Errorf("error does not name the missing row type: %s", w.Body.String())
	}
	if store.Current() != before {
		t.Error("active model changed after a rejected upload")
	}
}

func TestConfigureUnparseableWorkbook(t *testing.T) {
	router, store := newTestRouter(t)
	before := store.Current()

	body, contentType := multipartUpload(t, "model.xlsx", []byte("not a zip archive"))
	req := httptest.NewRequest(http.MethodPost, "/risk-matrix/configure", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}
	if store.Current() != before {
		t.Error("active model changed after a failed upload")
	}
}

func TestConfigureMissingFileField(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/risk-matrix/configure", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}
