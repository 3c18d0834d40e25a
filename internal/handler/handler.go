// Package handler содержит HTTP-обработчики API администрирования продавцов SOS Cafe.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/soscafe-admin/internal/csvexport"
	"github.com/mmeshcher/soscafe-admin/internal/middleware"
	"github.com/mmeshcher/soscafe-admin/internal/model"
	"github.com/mmeshcher/soscafe-admin/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	GetVendorsForUser(ctx context.Context, userID string) ([]model.VendorSummary, error)
	GetVendor(ctx context.Context, userID, vendorID string) (*model.VendorProfile, error)
	UpdateVendor(ctx context.Context, userID, vendorID string, upd model.VendorUpdate) error
	ListPayments(ctx context.Context, userID, vendorID string) ([]model.VendorPayment, error)
	ListVouchers(ctx context.Context, userID, vendorID string) ([]model.VendorVoucher, error)
	ExportPayments(ctx context.Context, userID, vendorID string) ([]byte, error)
	ExportVouchers(ctx context.Context, userID, vendorID string) ([]byte, error)
}

// Handler реализует HTTP-обработчики API продавцов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type vendorSummaryResponse struct {
	ID           string `json:"id"`
	BusinessName string `json:"businessName"`
}

type vendorResponse struct {
	ID                string    `json:"id"`
	RegisteredDate    time.Time `json:"registeredDate"`
	BusinessName      string    `json:"businessName"`
	ContactName       string    `json:"contactName"`
	EmailAddress      string    `json:"emailAddress"`
	PhoneNumber       string    `json:"phoneNumber"`
	BankAccountNumber string    `json:"bankAccountNumber"`
}

type paymentResponse struct {
	PaymentID         string    `json:"paymentId"`
	PaymentDate       time.Time `json:"paymentDate"`
	BankAccountNumber string    `json:"bankAccountNumber"`
	GrossPayment      float64   `json:"grossPayment"`
	Fees              float64   `json:"fees"`
	NetPayment        float64   `json:"netPayment"`
}

type voucherResponse struct {
	LineItemID               string    `json:"lineItemId"`
	OrderID                  string    `json:"orderId"`
	OrderRef                 string    `json:"orderRef"`
	OrderDate                time.Time `json:"orderDate"`
	CustomerName             string    `json:"customerName"`
	CustomerRegion           string    `json:"customerRegion"`
	CustomerEmailAddress     string    `json:"customerEmailAddress"`
	CustomerAcceptsMarketing bool      `json:"customerAcceptsMarketing"`
	VoucherID                string    `json:"voucherId"`
	VoucherDescription       string    `json:"voucherDescription"`
	VoucherQuantity          int       `json:"voucherQuantity"`
	VoucherIsDonation        bool      `json:"voucherIsDonation"`
	VoucherGross             float64   `json:"voucherGross"`
	VoucherFees              float64   `json:"voucherFees"`
	VoucherNet               float64   `json:"voucherNet"`
}

// acceptedDate принимает метку времени RFC 3339 или дату вида 2006-01-02.
type acceptedDate struct {
	time.Time
}

func (d *acceptedDate) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return errors.New("invalid date: " + s)
}

type updateVendorRequest struct {
	BankAccountNumber string        `json:"bankAccountNumber"`
	DateAcceptedTerms *acceptedDate `json:"dateAcceptedTerms"`
}

func (req updateVendorRequest) toUpdate() model.VendorUpdate {
	upd := model.VendorUpdate{BankAccountNumber: req.BankAccountNumber}
	if req.DateAcceptedTerms != nil && !req.DateAcceptedTerms.IsZero() {
		t := req.DateAcceptedTerms.Time
		upd.DateAcceptedTerms = &t
	}
	return upd
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, service.ErrTermsNotAccepted), errors.Is(err, service.ErrInvalidBankAccount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func writeCSV(w http.ResponseWriter, fileName string, data []byte) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GetVendors возвращает продавцов, доступных текущему пользователю.
func (h *Handler) GetVendors(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	vendors, err := h.service.GetVendorsForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get vendors error", zap.String("userID", userID))
		return
	}

	resp := make([]vendorSummaryResponse, 0, len(vendors))
	for _, v := range vendors {
		resp = append(resp, vendorSummaryResponse{ID: v.ID, BusinessName: v.BusinessName})
	}

	h.writeJSON(w, resp)
}

// GetVendor возвращает профиль продавца.
func (h *Handler) GetVendor(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	vendorID := chi.URLParam(r, "vendorID")

	v, err := h.service.GetVendor(r.Context(), userID, vendorID)
	if err != nil {
		h.writeError(w, err, "get vendor error", zap.String("vendorID", vendorID))
		return
	}

	h.writeJSON(w, vendorResponse{
		ID:                v.ShopifyID(),
		RegisteredDate:    v.RegisteredDate,
		BusinessName:      v.BusinessName,
		ContactName:       v.ContactName,
		EmailAddress:      v.EmailAddress,
		PhoneNumber:       v.PhoneNumber,
		BankAccountNumber: v.BankAccountNumber,
	})
}

// UpdateVendor обновляет номер банковского счёта и дату принятия условий.
func (h *Handler) UpdateVendor(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	vendorID := chi.URLParam(r, "vendorID")

	defer r.Body.Close()

	var req updateVendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateVendor(r.Context(), userID, vendorID, req.toUpdate()); err != nil {
		h.writeError(w, err, "update vendor error", zap.String("vendorID", vendorID))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetPayments возвращает историю выплат продавцу.
func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	vendorID := chi.URLParam(r, "vendorID")

	payments, err := h.service.ListPayments(r.Context(), userID, vendorID)
	if err != nil {
		h.writeError(w, err, "get payments error", zap.String("vendorID", vendorID))
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, paymentResponse{
			PaymentID:         p.PaymentID,
			PaymentDate:       p.PaymentDate,
			BankAccountNumber: p.BankAccountNumber,
			GrossPayment:      p.GrossPayment.InexactFloat64(),
			Fees:              p.Fees.InexactFloat64(),
			NetPayment:        p.NetPayment.InexactFloat64(),
		})
	}

	h.writeJSON(w, resp)
}

// GetPaymentsCSV возвращает историю выплат продавцу файлом CSV.
func (h *Handler) GetPaymentsCSV(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	vendorID := chi.URLParam(r, "vendorID")

	data, err := h.service.ExportPayments(r.Context(), userID, vendorID)
	if err != nil {
		h.writeError(w, err, "export payments error", zap.String("vendorID", vendorID))
		return
	}

	writeCSV(w, csvexport.PaymentsFileName, data)
}

// GetVouchers возвращает историю погашенных ваучеров продавца.
func (h *Handler) GetVouchers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	vendorID := chi.URLParam(r, "vendorID")

	vouchers, err := h.service.ListVouchers(r.Context(), userID, vendorID)
	if err != nil {
		h.writeError(w, err, "get vouchers error", zap.String("vendorID", vendorID))
		return
	}

	resp := make([]voucherResponse, 0, len(vouchers))
	for _, v := range vouchers {
		resp = append(resp, voucherResponse{
			LineItemID:               v.LineItemID,
			OrderID:                  v.OrderID,
			OrderRef:                 v.OrderRef,
			OrderDate:                v.OrderDate,
			CustomerName:             v.CustomerName,
			CustomerRegion:           v.CustomerRegion,
			CustomerEmailAddress:     v.CustomerEmailAddress,
			CustomerAcceptsMarketing: v.CustomerAcceptsMarketing,
			VoucherID:                v.VoucherID,
			VoucherDescription:       v.VoucherDescription,
			VoucherQuantity:          v.VoucherQuantity,
			VoucherIsDonation:        v.VoucherIsDonation,
			VoucherGross:             v.VoucherGross.InexactFloat64(),
			VoucherFees:              v.VoucherFees.InexactFloat64(),
			VoucherNet:               v.VoucherNet.InexactFloat64(),
		})
	}

	h.writeJSON(w, resp)
}

// GetVouchersCSV возвращает историю ваучеров продавца файлом CSV.
func (h *Handler) GetVouchersCSV(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	vendorID := chi.URLParam(r, "vendorID")

	data, err := h.service.ExportVouchers(r.Context(), userID, vendorID)
	if err != nil {
		h.writeError(w, err, "export vouchers error", zap.String("vendorID", vendorID))
		return
	}

	writeCSV(w, csvexport.VouchersFileName, data)
}
