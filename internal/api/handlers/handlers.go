package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mkamau/receiptgen/internal/api/middleware"
	"github.com/mkamau/receiptgen/internal/artifact"
	"github.com/mkamau/receiptgen/internal/domain"
	"github.com/mkamau/receiptgen/internal/parser"
	"github.com/mkamau/receiptgen/internal/store"
)

// defaultListLimit caps GET /api/receipts when the client sends no limit.
const defaultListLimit = 20

// Ingester is the synchronous half of the pipeline as seen by HTTP.
type Ingester interface {
	Ingest(ctx context.Context, businessID, text string, items []domain.LineItem) (*domain.TransactionRecord, error)
}

// ReceiptsHandler handles receipt-related endpoints.
type ReceiptsHandler struct {
	repo      store.Repository
	pipe      Ingester
	artifacts artifact.Store
	log       zerolog.Logger
}

// NewReceiptsHandler creates a new receipts handler.
func NewReceiptsHandler(repo store.Repository, pipe Ingester, artifacts artifact.Store, log zerolog.Logger) *ReceiptsHandler {
	return &ReceiptsHandler{
		repo:      repo,
		pipe:      pipe,
		artifacts: artifacts,
		log:       log,
	}
}

type lineItemRequest struct {
	Description string `json:"description"`
	Cost        string `json:"cost"`
}

type receiptResponse struct {
	ID              string `json:"id"`
	Code            string `json:"code"`
	Amount          string `json:"amount"`
	TransactionDate string `json:"transaction_date"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

func toReceiptResponse(rec *domain.TransactionRecord) receiptResponse {
	return receiptResponse{
		ID:              rec.ID,
		Code:            rec.Code,
		Amount:          rec.Amount.StringFixed(2),
		TransactionDate: rec.TransactionDate.Format(time.RFC3339),
		CustomerName:    rec.CustomerName,
		CustomerPhone:   rec.CustomerPhone,
		Status:          string(rec.Status),
		CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
	}
}

// IngestReceipt handles POST /api/receipts
func (h *ReceiptsHandler) IngestReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.BusinessIDFromContext(ctx)

	var req struct {
		Text  string            `json:"text"`
		Items []lineItemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" {
		middleware.WriteError(w, http.StatusBadRequest, "text is required")
		return
	}

	items := make([]domain.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		cost, err := decimal.NewFromString(it.Cost)
		if err != nil {
			// Items without a parsable cost contribute a zero amount, the
			// same as a blank cost field on a paper bill.
			cost = decimal.Zero
		}
		items = append(items, domain.LineItem{Description: it.Description, Cost: cost})
	}

	rec, err := h.pipe.Ingest(ctx, businessID, req.Text, items)
	if errors.Is(err, parser.ErrNoCode) {
		middleware.WriteError(w, http.StatusBadRequest, "Unrecognized notification format")
		return
	}
	if errors.Is(err, store.ErrDuplicate) {
		middleware.WriteError(w, http.StatusConflict, "Transaction already recorded")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("business_id", businessID).Msg("Failed to ingest receipt")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to ingest receipt")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, toReceiptResponse(rec))
}

// ListReceipts handles GET /api/receipts
func (h *ReceiptsHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.BusinessIDFromContext(ctx)

	query := r.URL.Query()
	limit := defaultListLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if n, err := strconv.Atoi(offsetStr); err == nil && n >= 0 {
			offset = n
		}
	}

	records, err := h.repo.FindByBusiness(ctx, businessID, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Str("business_id", businessID).Msg("Failed to list receipts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list receipts")
		return
	}

	out := make([]receiptResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toReceiptResponse(rec))
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"receipts": out,
		"count":    len(out),
	})
}

// DownloadReceipt handles GET /api/receipts/{code}/pdf
func (h *ReceiptsHandler) DownloadReceipt(w http.ResponseWriter, r *http.Request, code string) {
	ctx := r.Context()
	businessID := middleware.BusinessIDFromContext(ctx)

	// The record lookup is what enforces tenant scoping; artifact keys are
	// derived from the code alone.
	rec, _, err := h.repo.GetByCode(ctx, businessID, code)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Receipt not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("code", code).Msg("Failed to load receipt")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load receipt")
		return
	}
	if rec.Status != domain.StatusGenerated {
		middleware.WriteError(w, http.StatusConflict, "Receipt is not generated")
		return
	}

	data, err := h.artifacts.Read(ctx, artifact.Key(code))
	if errors.Is(err, artifact.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Receipt PDF not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("code", code).Msg("Failed to read receipt PDF")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read receipt PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+artifact.Key(code)+"\"")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ClearReceipts handles POST /api/receipts/clear
func (h *ReceiptsHandler) ClearReceipts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.BusinessIDFromContext(ctx)

	codes, err := h.repo.DeleteByBusiness(ctx, businessID)
	if err != nil {
		h.log.Error().Err(err).Str("business_id", businessID).Msg("Failed to clear receipts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to clear receipts")
		return
	}

	for _, code := range codes {
		if err := h.artifacts.Delete(ctx, artifact.Key(code)); err != nil && !errors.Is(err, artifact.ErrNotFound) {
			h.log.Warn().Err(err).Str("code", code).Msg("Failed to delete receipt PDF")
		}
	}

	h.log.Info().Str("business_id", businessID).Int("count", len(codes)).Msg("Receipts cleared")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": len(codes),
	})
}

// SettingsHandler handles business profile endpoints.
type SettingsHandler struct {
	repo store.Repository
	log  zerolog.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(repo store.Repository, log zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		repo: repo,
		log:  log,
	}
}

type profileResponse struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	TaxPIN     string `json:"tax_pin"`
	ChargesVAT bool   `json:"charges_vat"`
	LogoPath   string `json:"logo_path"`
}

// GetSettings handles GET /api/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.BusinessIDFromContext(ctx)

	profile, err := h.repo.GetProfile(ctx, businessID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("business_id", businessID).Msg("Failed to load profile")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, profileResponse{
		Name:       profile.Name,
		Phone:      profile.Phone,
		TaxPIN:     profile.TaxPIN,
		ChargesVAT: profile.ChargesVAT,
		LogoPath:   profile.LogoPath,
	})
}

// UpdateSettings handles POST /api/settings
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.BusinessIDFromContext(ctx)

	var req profileResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	profile := &domain.BusinessProfile{
		ID:         businessID,
		Name:       req.Name,
		Phone:      req.Phone,
		TaxPIN:     req.TaxPIN,
		ChargesVAT: req.ChargesVAT,
		LogoPath:   req.LogoPath,
	}
	if err := h.repo.SaveProfile(ctx, profile); err != nil {
		h.log.Error().Err(err).Str("business_id", businessID).Msg("Failed to save profile")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save profile")
		return
	}

	h.log.Info().Str("business_id", businessID).Msg("Profile updated")

	middleware.WriteJSON(w, http.StatusOK, req)
}
