// Package repository отображает доменные сущности на строки хранилища таблиц.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/soscafe-admin/internal/model"
	"github.com/mmeshcher/soscafe-admin/internal/tablestore"
)

// Имена таблиц совпадают с исходной схемой хранилища.
const (
	VendorsTable           = "Vendors"
	VendorAssignmentsTable = "VendorUserAssignments"
	VendorPaymentsTable    = "VendorPayments"
	VendorVouchersTable    = "VendorVouchers"
)

// DefaultPageSize задаёт размер страницы при сканировании раздела.
const DefaultPageSize = 1000

var (
	// ErrVendorNotFound возвращается, если профиль продавца отсутствует.
	ErrVendorNotFound = errors.New("vendor not found")
	// ErrAssignmentNotFound возвращается, если у пользователя нет назначения на продавца.
	ErrAssignmentNotFound = errors.New("vendor assignment not found")
	// ErrConcurrentUpdate возвращается, если профиль изменён другим запросом после чтения.
	ErrConcurrentUpdate = errors.New("vendor was modified concurrently")
)

// TableRepository предоставляет доступ к таблицам продавцов.
type TableRepository struct {
	store       tablestore.Store
	vendors     tablestore.Table
	assignments tablestore.Table
	payments    tablestore.Table
	vouchers    tablestore.Table
	pageSize    int
}

// NewTableRepository создаёт репозиторий поверх хранилища таблиц.
func NewTableRepository(store tablestore.Store, pageSize int) *TableRepository {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &TableRepository{
		store:       store,
		vendors:     store.Table(VendorsTable),
		assignments: store.Table(VendorAssignmentsTable),
		payments:    store.Table(VendorPaymentsTable),
		vouchers:    store.Table(VendorVouchersTable),
		pageSize:    pageSize,
	}
}

// Close закрывает хранилище.
func (r *TableRepository) Close() error {
	return r.store.Close()
}

// GetAssignment возвращает назначение пользователя на продавца.
func (r *TableRepository) GetAssignment(ctx context.Context, userID, vendorID string) (*model.VendorUserAssignment, error) {
	e, err := r.assignments.Get(ctx, userID, vendorID)
	if err != nil {
		if errors.Is(err, tablestore.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	a := assignmentFromEntity(*e)
	return &a, nil
}

// ListAssignments возвращает все назначения пользователя.
func (r *TableRepository) ListAssignments(ctx context.Context, userID string) ([]model.VendorUserAssignment, error) {
	rows, err := tablestore.ScanPartition(ctx, r.assignments, userID, r.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	res := make([]model.VendorUserAssignment, 0, len(rows))
	for _, e := range rows {
		res = append(res, assignmentFromEntity(e))
	}
	return res, nil
}

// AddAssignment создаёт назначение пользователя на продавца.
func (r *TableRepository) AddAssignment(ctx context.Context, a model.VendorUserAssignment) error {
	return r.assignments.Insert(ctx, tablestore.Entity{
		PartitionKey: a.UserID,
		RowKey:       a.VendorID,
		Properties: tablestore.Properties{
			"VendorShopifyId": a.VendorID,
			"VendorName":      a.VendorName,
		},
	})
}

// GetVendor читает профиль продавца.
func (r *TableRepository) GetVendor(ctx context.Context, vendorID string) (*model.VendorProfile, error) {
	e, err := r.vendors.Get(ctx, model.VendorsPartition, vendorID)
	if err != nil {
		if errors.Is(err, tablestore.ErrNotFound) {
			return nil, ErrVendorNotFound
		}
		return nil, fmt.Errorf("get vendor: %w", err)
	}

	p := e.Properties
	v := model.NewVendorProfile(e.RowKey)
	v.RegisteredDate = p.Time("RegisteredDate")
	v.BusinessName = p.String("BusinessName")
	v.ContactName = p.String("ContactName")
	v.EmailAddress = p.String("EmailAddress")
	v.PhoneNumber = p.String("PhoneNumber")
	v.BankAccountNumber = p.String("BankAccountNumber")
	v.IsValidated = p.Bool("IsValidated")
	v.DateAcceptedTerms = p.TimePtr("DateAcceptedTerms")
	v.ETag = e.ETag
	return v, nil
}

// AddVendor создаёт профиль продавца.
func (r *TableRepository) AddVendor(ctx context.Context, v *model.VendorProfile) error {
	return r.vendors.Insert(ctx, vendorEntity(v))
}

// ReplaceVendor заменяет профиль целиком при условии, что он не менялся с момента чтения.
func (r *TableRepository) ReplaceVendor(ctx context.Context, v *model.VendorProfile) error {
	err := r.vendors.Replace(ctx, vendorEntity(v))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, tablestore.ErrConflict):
		return ErrConcurrentUpdate
	case errors.Is(err, tablestore.ErrNotFound):
		return ErrVendorNotFound
	default:
		return fmt.Errorf("replace vendor: %w", err)
	}
}

func vendorEntity(v *model.VendorProfile) tablestore.Entity {
	var accepted any
	if v.DateAcceptedTerms != nil {
		accepted = v.DateAcceptedTerms.UTC()
	}

	return tablestore.Entity{
		PartitionKey: v.PartitionKey(),
		RowKey:       v.RowKey(),
		ETag:         v.ETag,
		Properties: tablestore.Properties{
			"ShopifyId":         v.ShopifyID(),
			"RegisteredDate":    v.RegisteredDate.UTC(),
			"BusinessName":      v.BusinessName,
			"ContactName":       v.ContactName,
			"EmailAddress":      v.EmailAddress,
			"PhoneNumber":       v.PhoneNumber,
			"BankAccountNumber": v.BankAccountNumber,
			"IsValidated":       v.IsValidated,
			"DateAcceptedTerms": accepted,
		},
	}
}

// ListPayments возвращает все выплаты продавца в порядке, заданном хранилищем.
func (r *TableRepository) ListPayments(ctx context.Context, vendorID string) ([]model.VendorPayment, error) {
	rows, err := tablestore.ScanPartition(ctx, r.payments, vendorID, r.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	res := make([]model.VendorPayment, 0, len(rows))
	for _, e := range rows {
		p := e.Properties
		res = append(res, model.VendorPayment{
			VendorID:          p.String("VendorId"),
			PaymentID:         p.String("PaymentId"),
			PaymentDate:       p.Time("PaymentDate"),
			BankAccountNumber: p.String("BankAccountNumber"),
			GrossPayment:      p.Decimal("GrossPayment"),
			Fees:              p.Decimal("Fees"),
			NetPayment:        p.Decimal("NetPayment"),
		})
	}
	return res, nil
}

// AddPayment сохраняет выплату продавцу.
func (r *TableRepository) AddPayment(ctx context.Context, p model.VendorPayment) error {
	return r.payments.Insert(ctx, tablestore.Entity{
		PartitionKey: p.VendorID,
		RowKey:       p.PaymentID,
		Properties: tablestore.Properties{
			"VendorId":          p.VendorID,
			"PaymentId":         p.PaymentID,
			"PaymentDate":       p.PaymentDate.UTC(),
			"BankAccountNumber": p.BankAccountNumber,
			"GrossPayment":      p.GrossPayment.InexactFloat64(),
			"Fees":              p.Fees.InexactFloat64(),
			"NetPayment":        p.NetPayment.InexactFloat64(),
		},
	})
}

// ListVouchers возвращает все погашенные ваучеры продавца.
func (r *TableRepository) ListVouchers(ctx context.Context, vendorID string) ([]model.VendorVoucher, error) {
	rows, err := tablestore.ScanPartition(ctx, r.vouchers, vendorID, r.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}

	res := make([]model.VendorVoucher, 0, len(rows))
	for _, e := range rows {
		p := e.Properties
		res = append(res, model.VendorVoucher{
			VendorID:                 p.String("VendorId"),
			LineItemID:               p.String("LineItemId"),
			OrderID:                  p.String("OrderId"),
			OrderRef:                 p.String("OrderRef"),
			OrderDate:                p.Time("OrderDate"),
			CustomerName:             p.String("CustomerName"),
			CustomerRegion:           p.String("CustomerRegion"),
			CustomerEmailAddress:     p.String("CustomerEmailAddress"),
			CustomerAcceptsMarketing: p.Bool("CustomerAcceptsMarketing"),
			VoucherID:                p.String("VoucherId"),
			VoucherDescription:       p.String("VoucherDescription"),
			VoucherQuantity:          p.Int("VoucherQuantity"),
			VoucherIsDonation:        p.Bool("VoucherIsDonation"),
			VoucherGross:             p.Decimal("VoucherGross"),
			VoucherFees:              p.Decimal("VoucherFees"),
			VoucherNet:               p.Decimal("VoucherNet"),
		})
	}
	return res, nil
}

// AddVoucher сохраняет погашенный ваучер.
func (r *TableRepository) AddVoucher(ctx context.Context, v model.VendorVoucher) error {
	return r.vouchers.Insert(ctx, tablestore.Entity{
		PartitionKey: v.VendorID,
		RowKey:       v.LineItemID,
		Properties: tablestore.Properties{
			"VendorId":                 v.VendorID,
			"LineItemId":               v.LineItemID,
			"OrderId":                  v.OrderID,
			"OrderRef":                 v.OrderRef,
			"OrderDate":                v.OrderDate.UTC(),
			"CustomerName":             v.CustomerName,
			"CustomerRegion":           v.CustomerRegion,
			"CustomerEmailAddress":     v.CustomerEmailAddress,
			"CustomerAcceptsMarketing": v.CustomerAcceptsMarketing,
			"VoucherId":                v.VoucherID,
			"VoucherDescription":       v.VoucherDescription,
			"VoucherQuantity":          v.VoucherQuantity,
			"VoucherIsDonation":        v.VoucherIsDonation,
			"VoucherGross":             v.VoucherGross.InexactFloat64(),
			"VoucherFees":              v.VoucherFees.InexactFloat64(),
			"VoucherNet":               v.VoucherNet.InexactFloat64(),
		},
	})
}

func assignmentFromEntity(e tablestore.Entity) model.VendorUserAssignment {
	vendorID := e.Properties.String("VendorShopifyId")
	if vendorID == "" {
		vendorID = e.RowKey
	}
	return model.VendorUserAssignment{
		UserID:     e.PartitionKey,
		VendorID:   vendorID,
		VendorName: e.Properties.String("VendorName"),
	}
}
