package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/soscafe-admin/internal/middleware"
	"github.com/mmeshcher/soscafe-admin/internal/model"
	"github.com/mmeshcher/soscafe-admin/internal/repository"
	"github.com/mmeshcher/soscafe-admin/internal/service"
	"github.com/mmeshcher/soscafe-admin/internal/tablestore"
)

type stubService struct {
	vendorsResp []model.VendorSummary
	vendorsErr  error

	vendorResp *model.VendorProfile
	vendorErr  error

	updateErr error
	gotUpdate model.VendorUpdate

	paymentsResp []model.VendorPayment
	paymentsErr  error

	vouchersResp []model.VendorVoucher
	vouchersErr  error

	exportResp []byte
	exportErr  error

	gotUserID   string
	gotVendorID string
}

func (s *stubService) GetVendorsForUser(ctx context.Context, userID string) ([]model.VendorSummary, error) {
	s.gotUserID = userID
	return s.vendorsResp, s.vendorsErr
}

func (s *stubService) GetVendor(ctx context.Context, userID, vendorID string) (*model.VendorProfile, error) {
	s.gotUserID, s.gotVendorID = userID, vendorID
	return s.vendorResp, s.vendorErr
}

func (s *stubService) UpdateVendor(ctx context.Context, userID, vendorID string, upd model.VendorUpdate) error {
	s.gotUserID, s.gotVendorID, s.gotUpdate = userID, vendorID, upd
	return s.updateErr
}

func (s *stubService) ListPayments(ctx context.Context, userID, vendorID string) ([]model.VendorPayment, error) {
	s.gotUserID, s.gotVendorID = userID, vendorID
	return s.paymentsResp, s.paymentsErr
}

func (s *stubService) ListVouchers(ctx context.Context, userID, vendorID string) ([]model.VendorVoucher, error) {
	s.gotUserID, s.gotVendorID = userID, vendorID
	return s.vouchersResp, s.vouchersErr
}

func (s *stubService) ExportPayments(ctx context.Context, userID, vendorID string) ([]byte, error) {
	s.gotUserID, s.gotVendorID = userID, vendorID
	return s.exportResp, s.exportErr
}

func (s *stubService) ExportVouchers(ctx context.Context, userID, vendorID string) ([]byte, error) {
	s.gotUserID, s.gotVendorID = userID, vendorID
	return s.exportResp, s.exportErr
}

const testSecret = "test-secret"

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware(testSecret)

	return NewHandler(svc, logger, auth)
}

func do(t *testing.T, h http.Handler, method, target, userID string, body io.Reader) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if userID != "" {
		token, err := middleware.NewAuthMiddleware(testSecret).IssueToken(userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Result()
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b)
}

func TestGetVendors_EmptyIsArray(t *testing.T) {
	svc := &stubService{}
	router := newTestHandler(t, svc).SetupRouter()

	res := do(t, router, http.MethodGet, "/vendors", "u-1", nil)

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	assert.JSONEq(t, `[]`, readBody(t, res))
	assert.Equal(t, "u-1", svc.gotUserID)
}

func TestGetVendors_JSONResponse(t *testing.T) {
	svc := &stubService{
		vendorsResp: []model.VendorSummary{{ID: "v-1", BusinessName: "Cafe One"}},
	}
	router := newTestHandler(t, svc).SetupRouter()

	res := do(t, router, http.MethodGet, "/vendors", "u-1", nil)

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `[{"id":"v-1","businessName":"Cafe One"}]`, readBody(t, res))
}

func TestGetVendor_JSONResponse(t *testing.T) {
	v := model.NewVendorProfile("v-1")
	v.RegisteredDate = time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC)
	v.BusinessName = "Cafe One"
	v.ContactName = "Sam"
	v.EmailAddress = "sam@example.com"
	v.PhoneNumber = "021"
	v.BankAccountNumber = "01-0001-0000001-00"

	svc := &stubService{vendorResp: v}
	router := newTestHandler(t, svc).SetupRouter()

	res := do(t, router, http.MethodGet, "/vendors/v-1", "u-1", nil)

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{
		"id":"v-1",
		"registeredDate":"2020-04-01T00:00:00Z",
		"businessName":"Cafe One",
		"contactName":"Sam",
		"emailAddress":"sam@example.com",
		"phoneNumber":"021",
		"bankAccountNumber":"01-0001-0000001-00"
	}`, readBody(t, res))
	assert.Equal(t, "v-1", svc.gotVendorID)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"not found", service.ErrNotFound, http.StatusNotFound, "Not Found"},
		{"terms", service.ErrTermsNotAccepted, http.StatusBadRequest, service.ErrTermsNotAccepted.Error()},
		{"bank account", service.ErrInvalidBankAccount, http.StatusBadRequest, service.ErrInvalidBankAccount.Error()},
		{"store failure", errors.Join(service.ErrStoreFailure, errors.New("412 precondition failed")), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{updateErr: tt.err}
			router := newTestHandler(t, svc).SetupRouter()

			body := strings.NewReader(`{"bankAccountNumber":"12-3456-7890123-45","dateAcceptedTerms":"2024-01-01"}`)
			res := do(t, router, http.MethodPut, "/vendors/v-1", "u-1", body)

			assert.Equal(t, tt.wantStatus, res.StatusCode)
			got := readBody(t, res)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(got))
			assert.NotContains(t, got, "412")
		})
	}
}

func TestUpdateVendor_RequestDecoding(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantTerms  *time.Time
	}{
		{
			name:       "plain date",
			body:       `{"bankAccountNumber":"12-3456-7890123-45","dateAcceptedTerms":"2024-01-01"}`,
			wantStatus: http.StatusOK,
			wantTerms:  ptrTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
		{
			name:       "rfc3339",
			body:       `{"bankAccountNumber":"12-3456-7890123-45","dateAcceptedTerms":"2024-01-01T10:30:00+13:00"}`,
			wantStatus: http.StatusOK,
			wantTerms:  ptrTime(time.Date(2023, 12, 31, 21, 30, 0, 0, time.UTC)),
		},
		{
			name:       "null terms",
			body:       `{"bankAccountNumber":"12-3456-7890123-45","dateAcceptedTerms":null}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing terms",
			body:       `{"bankAccountNumber":"12-3456-7890123-45"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed json",
			body:       `{"bankAccountNumber":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad date",
			body:       `{"bankAccountNumber":"12-3456-7890123-45","dateAcceptedTerms":"yesterday"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			router := newTestHandler(t, svc).SetupRouter()

			res := do(t, router, http.MethodPut, "/vendors/v-1", "u-1", strings.NewReader(tt.body))
			res.Body.Close()

			require.Equal(t, tt.wantStatus, res.StatusCode)
			if tt.wantStatus != http.StatusOK {
				return
			}
			assert.Equal(t, "12-3456-7890123-45", svc.gotUpdate.BankAccountNumber)
			if tt.wantTerms == nil {
				assert.Nil(t, svc.gotUpdate.DateAcceptedTerms)
				return
			}
			require.NotNil(t, svc.gotUpdate.DateAcceptedTerms)
			assert.True(t, tt.wantTerms.Equal(*svc.gotUpdate.DateAcceptedTerms))
		})
	}
}

func TestGetPayments_JSONResponse(t *testing.T) {
	svc := &stubService{
		paymentsResp: []model.VendorPayment{{
			VendorID:          "v-1",
			PaymentID:         "p-1",
			PaymentDate:       time.Date(2024, 1, 5, 14, 30, 0, 0, time.UTC),
			BankAccountNumber: "01-0001-0000001-00",
			GrossPayment:      decimal.RequireFromString("100.00"),
			Fees:              decimal.RequireFromString("2.50"),
			NetPayment:        decimal.RequireFromString("97.50"),
		}},
	}
	router := newTestHandler(t, svc).SetupRouter()

	res := do(t, router, http.MethodGet, "/vendors/v-1/payments", "u-1", nil)

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `[{
		"paymentId":"p-1",
		"paymentDate":"2024-01-05T14:30:00Z",
		"bankAccountNumber":"01-0001-0000001-00",
		"grossPayment":100,
		"fees":2.5,
		"netPayment":97.5
	}]`, readBody(t, res))
}

func TestGetVouchers_JSONResponse(t *testing.T) {
	svc := &stubService{
		vouchersResp: []model.VendorVoucher{{
			VendorID:        "v-1",
			LineItemID:      "li-1",
			OrderID:         "o-1",
			VoucherQuantity: 3,
			VoucherNet:      decimal.RequireFromString("12.34"),
		}},
	}
	router := newTestHandler(t, svc).SetupRouter()

	res := do(t, router, http.MethodGet, "/vendors/v-1/vouchers", "u-1", nil)

	require.Equal(t, http.StatusOK, res.StatusCode)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(readBody(t, res)), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "li-1", got[0]["lineItemId"])
	assert.EqualValues(t, 3, got[0]["voucherQuantity"])
	assert.EqualValues(t, 12.34, got[0]["voucherNet"])
	assert.NotContains(t, got[0], "vendorId")
}

func TestCSVDownloads(t *testing.T) {
	tests := []struct {
		target   string
		fileName string
	}{
		{"/vendors/v-1/payments/csv", "SOSCafe-Payments.csv"},
		{"/vendors/v-1/vouchers/csv", "SOSCafe-Vouchers.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			svc := &stubService{exportResp: []byte("A,B\n1,2\n")}
			router := newTestHandler(t, svc).SetupRouter()

			res := do(t, router, http.MethodGet, tt.target, "u-1", nil)

			require.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, "text/csv", res.Header.Get("Content-Type"))
			assert.Equal(t, `attachment; filename="`+tt.fileName+`"`, res.Header.Get("Content-Disposition"))
			assert.Equal(t, "A,B\n1,2\n", readBody(t, res))
		})
	}
}

func TestRouter_Unauthenticated(t *testing.T) {
	router := newTestHandler(t, &stubService{}).SetupRouter()

	for _, target := range []string{"/vendors", "/vendors/v-1", "/vendors/v-1/payments/csv"} {
		res := do(t, router, http.MethodGet, target, "", nil)
		res.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode, target)
	}
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	router := newTestHandler(t, &stubService{}).SetupRouter()

	res := do(t, router, http.MethodGet, "/unknown", "u-1", nil)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = do(t, router, http.MethodDelete, "/vendors/v-1", "u-1", nil)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func ptrTime(t time.Time) *time.Time { return &t }

func newMemoryRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()

	repo := repository.NewTableRepository(tablestore.NewMemoryStore(), 2)

	v := model.NewVendorProfile("v-100")
	v.BusinessName = "Flat White Co"
	v.BankAccountNumber = "01-0001-0000001-00"
	require.NoError(t, repo.AddVendor(ctx, v))
	require.NoError(t, repo.AddAssignment(ctx, model.VendorUserAssignment{UserID: "u-1", VendorID: "v-100", VendorName: "Flat White Co"}))
	require.NoError(t, repo.AddPayment(ctx, model.VendorPayment{
		VendorID:   "v-100",
		PaymentID:  "p-1",
		NetPayment: decimal.RequireFromString("1234.5"),
	}))

	svc := service.NewService(repo, zap.NewNop())
	return newTestHandler(t, svc).SetupRouter()
}

func TestEndToEnd_UpdateThenGet(t *testing.T) {
	router := newMemoryRouter(t)

	body := bytes.NewBufferString(`{"bankAccountNumber":"12-3456-7890123-45","dateAcceptedTerms":"2024-01-01"}`)
	res := do(t, router, http.MethodPut, "/vendors/v-100", "u-1", body)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = do(t, router, http.MethodGet, "/vendors/v-100", "u-1", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got vendorResponse
	require.NoError(t, json.Unmarshal([]byte(readBody(t, res)), &got))
	assert.Equal(t, "12-3456-7890123-45", got.BankAccountNumber)
	assert.Equal(t, "Flat White Co", got.BusinessName)
}

func TestEndToEnd_UnauthorizedAndMissingAreIdentical(t *testing.T) {
	router := newMemoryRouter(t)

	unauthorized := do(t, router, http.MethodGet, "/vendors/v-100", "u-2", nil)
	missing := do(t, router, http.MethodGet, "/vendors/v-nope", "u-2", nil)

	assert.Equal(t, http.StatusNotFound, unauthorized.StatusCode)
	assert.Equal(t, unauthorized.StatusCode, missing.StatusCode)
	assert.Equal(t, readBody(t, unauthorized), readBody(t, missing))
}

func TestEndToEnd_ValidationErrors(t *testing.T) {
	router := newMemoryRouter(t)

	res := do(t, router, http.MethodPut, "/vendors/v-100", "u-1",
		strings.NewReader(`{"bankAccountNumber":"12-3456-7890123-45"}`))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, service.ErrTermsNotAccepted.Error(), strings.TrimSpace(readBody(t, res)))

	res = do(t, router, http.MethodPut, "/vendors/v-100", "u-1",
		strings.NewReader(`{"bankAccountNumber":"12345","dateAcceptedTerms":"2024-01-01"}`))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, service.ErrInvalidBankAccount.Error(), strings.TrimSpace(readBody(t, res)))

	// Неавторизованный запрос с неверными данными неотличим от отсутствующего продавца.
	res = do(t, router, http.MethodPut, "/vendors/v-100", "u-2",
		strings.NewReader(`{"bankAccountNumber":"12345"}`))
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestEndToEnd_PaymentsCSV(t *testing.T) {
	router := newMemoryRouter(t)

	res := do(t, router, http.MethodGet, "/vendors/v-100/payments/csv", "u-1", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	lines := strings.Split(strings.TrimSpace(readBody(t, res)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "VendorId,PaymentId,"))
	assert.Contains(t, lines[1], "1234.50")
}
