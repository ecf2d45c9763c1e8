package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mkamau/receiptgen/internal/api/middleware"
	"github.com/mkamau/receiptgen/internal/artifact"
	"github.com/mkamau/receiptgen/internal/domain"
	"github.com/mkamau/receiptgen/internal/parser"
	"github.com/mkamau/receiptgen/internal/store"
)

type fakeRepo struct {
	profiles map[string]*domain.BusinessProfile
	records  []*domain.TransactionRecord
	cleared  []string

	getByCodeErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{profiles: make(map[string]*domain.BusinessProfile)}
}

func (f *fakeRepo) SaveProfile(_ context.Context, p *domain.BusinessProfile) error {
	f.profiles[p.ID] = p
	return nil
}

func (f *fakeRepo) GetProfile(_ context.Context, businessID string) (*domain.BusinessProfile, error) {
	p, ok := f.profiles[businessID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) CreateIfAbsent(_ context.Context, rec *domain.TransactionRecord, _ []domain.LineItem) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRepo) ExistsByBusinessAndCode(_ context.Context, businessID, code string) (bool, error) {
	for _, rec := range f.records {
		if rec.BusinessID == businessID && rec.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) GetByCode(_ context.Context, businessID, code string) (*domain.TransactionRecord, []domain.LineItem, error) {
	if f.getByCodeErr != nil {
		return nil, nil, f.getByCodeErr
	}
	for _, rec := range f.records {
		if rec.BusinessID == businessID && rec.Code == code {
			return rec, nil, nil
		}
	}
	return nil, nil, store.ErrNotFound
}

func (f *fakeRepo) FindByBusiness(_ context.Context, businessID string, limit, offset int) ([]*domain.TransactionRecord, error) {
	var out []*domain.TransactionRecord
	for _, rec := range f.records {
		if rec.BusinessID == businessID {
			out = append(out, rec)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, recordID string, status domain.Status) error {
	for _, rec := range f.records {
		if rec.ID == recordID && rec.Status == domain.StatusPending {
			rec.Status = status
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeRepo) FindOlderThan(_ context.Context, _ time.Time) ([]*domain.TransactionRecord, error) {
	return nil, nil
}

func (f *fakeRepo) DeleteOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) DeleteByBusiness(_ context.Context, businessID string) ([]string, error) {
	var codes []string
	var kept []*domain.TransactionRecord
	for _, rec := range f.records {
		if rec.BusinessID == businessID {
			codes = append(codes, rec.Code)
			continue
		}
		kept = append(kept, rec)
	}
	f.records = kept
	f.cleared = codes
	return codes, nil
}

type fakeIngester struct {
	rec  *domain.TransactionRecord
	err  error
	text string
}

func (f *fakeIngester) Ingest(_ context.Context, businessID, text string, _ []domain.LineItem) (*domain.TransactionRecord, error) {
	f.text = text
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

type fakeArtifacts struct {
	objects map[string][]byte
	deleted []string
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{objects: make(map[string][]byte)}
}

func (f *fakeArtifacts) Write(_ context.Context, key string, data []byte) error {
	f.objects[key] = data
	return nil
}

func (f *fakeArtifacts) Read(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, artifact.ErrNotFound
	}
	return data, nil
}

func (f *fakeArtifacts) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	if _, ok := f.objects[key]; !ok {
		return artifact.ErrNotFound
	}
	delete(f.objects, key)
	return nil
}

// withBusiness runs a request through the BusinessID middleware and returns
// it with the tenant identifier in its context.
func withBusiness(r *http.Request, businessID string) *http.Request {
	r.Header.Set("X-Business-ID", businessID)
	var out *http.Request
	middleware.BusinessID(http.HandlerFunc(func(_ http.ResponseWriter, req *http.Request) {
		out = req
	})).ServeHTTP(httptest.NewRecorder(), r)
	return out
}

func sampleRecord(businessID, code string, status domain.Status) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		ID:              "rec-" + code,
		BusinessID:      businessID,
		Code:            code,
		Amount:          decimal.RequireFromString("1500"),
		TransactionDate: time.Date(2024, 6, 5, 14, 30, 0, 0, time.UTC),
		CustomerName:    "John Doe",
		Status:          status,
		CreatedAt:       time.Date(2024, 6, 5, 14, 31, 0, 0, time.UTC),
	}
}

func TestIngestReceipt(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		ingestErr  error
		wantStatus int
	}{
		{
			name:       "created",
			body:       `{"text":"ABC1234567 Confirmed. Ksh1,500.00 received from John Doe 0722123456 on 5/6/24 at 2:30 PM"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "invalid json",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing text",
			body:       `{"items":[]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unrecognized format",
			body:       `{"text":"hello"}`,
			ingestErr:  parser.ErrNoCode,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "duplicate",
			body:       `{"text":"ABC1234567 Confirmed..."}`,
			ingestErr:  store.ErrDuplicate,
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipe := &fakeIngester{
				rec: sampleRecord("biz-1", "ABC1234567", domain.StatusPending),
				err: tt.ingestErr,
			}
			h := NewReceiptsHandler(newFakeRepo(), pipe, newFakeArtifacts(), zerolog.Nop())

			req := httptest.NewRequest(http.MethodPost, "/api/receipts", bytes.NewBufferString(tt.body))
			req = withBusiness(req, "biz-1")
			w := httptest.NewRecorder()

			h.IngestReceipt(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestIngestReceiptResponseBody(t *testing.T) {
	pipe := &fakeIngester{rec: sampleRecord("biz-1", "ABC1234567", domain.StatusPending)}
	h := NewReceiptsHandler(newFakeRepo(), pipe, newFakeArtifacts(), zerolog.Nop())

	body := `{"text":"ABC1234567 Confirmed. Ksh1,500.00 received from John Doe 0722123456 on 5/6/24 at 2:30 PM","items":[{"description":"Soda","cost":"100"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/receipts", bytes.NewBufferString(body))
	req = withBusiness(req, "biz-1")
	w := httptest.NewRecorder()

	h.IngestReceipt(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["code"] != "ABC1234567" {
		t.Errorf("code = %v, want ABC1234567", resp["code"])
	}
	if resp["amount"] != "1500.00" {
		t.Errorf("amount = %v, want 1500.00", resp["amount"])
	}
	if resp["status"] != "PENDING" {
		t.Errorf("status = %v, want PENDING", resp["status"])
	}
}

func TestListReceiptsScopedToBusiness(t *testing.T) {
	repo := newFakeRepo()
	repo.records = append(repo.records,
		sampleRecord("biz-1", "AAA1111111", domain.StatusGenerated),
		sampleRecord("biz-2", "BBB2222222", domain.StatusGenerated),
	)
	h := NewReceiptsHandler(repo, &fakeIngester{}, newFakeArtifacts(), zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/receipts", nil)
	req = withBusiness(req, "biz-1")
	w := httptest.NewRecorder()

	h.ListReceipts(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Receipts []receiptResponse `json:"receipts"`
		Count    int               `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Receipts[0].Code != "AAA1111111" {
		t.Errorf("code = %s, want AAA1111111", resp.Receipts[0].Code)
	}
}

func TestDownloadReceipt(t *testing.T) {
	repo := newFakeRepo()
	repo.records = append(repo.records, sampleRecord("biz-1", "AAA1111111", domain.StatusGenerated))
	arts := newFakeArtifacts()
	arts.objects["AAA1111111.pdf"] = []byte("%PDF-1.3 fake")

	h := NewReceiptsHandler(repo, &fakeIngester{}, arts, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/receipts/AAA1111111/pdf", nil)
	req = withBusiness(req, "biz-1")
	w := httptest.NewRecorder()

	h.DownloadReceipt(w, req, "AAA1111111")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q, want application/pdf", got)
	}
	if !bytes.Equal(w.Body.Bytes(), []byte("%PDF-1.3 fake")) {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestDownloadReceiptErrors(t *testing.T) {
	tests := []struct {
		name       string
		businessID string
		code       string
		status     domain.Status
		haveObject bool
		wantStatus int
	}{
		{
			name:       "unknown code",
			businessID: "biz-1",
			code:       "ZZZ9999999",
			status:     domain.StatusGenerated,
			haveObject: true,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "wrong business",
			businessID: "biz-2",
			code:       "AAA1111111",
			status:     domain.StatusGenerated,
			haveObject: true,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "not yet generated",
			businessID: "biz-1",
			code:       "AAA1111111",
			status:     domain.StatusPending,
			haveObject: false,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "artifact missing",
			businessID: "biz-1",
			code:       "AAA1111111",
			status:     domain.StatusGenerated,
			haveObject: false,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			repo.records = append(repo.records, sampleRecord("biz-1", "AAA1111111", tt.status))
			arts := newFakeArtifacts()
			if tt.haveObject {
				arts.objects["AAA1111111.pdf"] = []byte("%PDF")
			}
			h := NewReceiptsHandler(repo, &fakeIngester{}, arts, zerolog.Nop())

			req := httptest.NewRequest(http.MethodGet, "/api/receipts/"+tt.code+"/pdf", nil)
			req = withBusiness(req, tt.businessID)
			w := httptest.NewRecorder()

			h.DownloadReceipt(w, req, tt.code)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestClearReceipts(t *testing.T) {
	repo := newFakeRepo()
	repo.records = append(repo.records,
		sampleRecord("biz-1", "AAA1111111", domain.StatusGenerated),
		sampleRecord("biz-1", "BBB2222222", domain.StatusFailed),
		sampleRecord("biz-2", "CCC3333333", domain.StatusGenerated),
	)
	arts := newFakeArtifacts()
	arts.objects["AAA1111111.pdf"] = []byte("%PDF")

	h := NewReceiptsHandler(repo, &fakeIngester{}, arts, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/receipts/clear", nil)
	req = withBusiness(req, "biz-1")
	w := httptest.NewRecorder()

	h.ClearReceipts(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Deleted int `json:"deleted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", resp.Deleted)
	}
	if len(repo.records) != 1 || repo.records[0].BusinessID != "biz-2" {
		t.Errorf("other business's records must survive, got %d", len(repo.records))
	}
	if _, ok := arts.objects["AAA1111111.pdf"]; ok {
		t.Error("artifact for cleared receipt must be deleted")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	h := NewSettingsHandler(repo, zerolog.Nop())

	body := `{"name":"Mama Njeri Shop","phone":"0722123456","tax_pin":"A012345678Z","charges_vat":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/settings", bytes.NewBufferString(body))
	req = withBusiness(req, "biz-1")
	w := httptest.NewRecorder()

	h.UpdateSettings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	getReq = withBusiness(getReq, "biz-1")
	getW := httptest.NewRecorder()

	h.GetSettings(getW, getReq)

	if getW.Code != http.StatusOK {
		t.Fatalf("get status = %d, body %s", getW.Code, getW.Body.String())
	}

	var resp profileResponse
	if err := json.Unmarshal(getW.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Name != "Mama Njeri Shop" {
		t.Errorf("name = %q", resp.Name)
	}
	if !resp.ChargesVAT {
		t.Error("charges_vat must round-trip")
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	h := NewSettingsHandler(newFakeRepo(), zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/settings", bytes.NewBufferString(`{"phone":"0722123456"}`))
	req = withBusiness(req, "biz-1")
	w := httptest.NewRecorder()

	h.UpdateSettings(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetSettingsNotFound(t *testing.T) {
	h := NewSettingsHandler(newFakeRepo(), zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req = withBusiness(req, "biz-9")
	w := httptest.NewRecorder()

	h.GetSettings(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestBusinessIDRequired(t *testing.T) {
	handler := middleware.BusinessID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/receipts", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
