package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/soscafe-admin/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/vendors", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Get("/", h.GetVendors)

		r.Route("/{vendorID}", func(r chi.Router) {
			r.Get("/", h.GetVendor)
			r.Put("/", h.UpdateVendor)

			r.Get("/payments", h.GetPayments)
			r.Get("/payments/csv", h.GetPaymentsCSV)

			r.Get("/vouchers", h.GetVouchers)
			r.Get("/vouchers/csv", h.GetVouchersCSV)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
