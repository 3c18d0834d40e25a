package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mmeshcher/soscafe-admin/internal/model"
	"github.com/mmeshcher/soscafe-admin/internal/tablestore"
)

// Fixture содержит набор строк для начального заполнения хранилища.
type Fixture struct {
	Vendors     []VendorFixture              `json:"vendors"`
	Assignments []model.VendorUserAssignment `json:"assignments"`
	Payments    []model.VendorPayment        `json:"payments"`
	Vouchers    []model.VendorVoucher        `json:"vouchers"`
}

// VendorFixture описывает профиль продавца вместе с его внешним идентификатором.
type VendorFixture struct {
	ID string `json:"id"`
	model.VendorProfile
}

// Seed загружает строки из JSON и вставляет их, пропуская уже существующие.
// Возвращает количество вставленных строк.
func (r *TableRepository) Seed(ctx context.Context, src io.Reader) (int, error) {
	var f Fixture
	if err := json.NewDecoder(src).Decode(&f); err != nil {
		return 0, fmt.Errorf("decode fixture: %w", err)
	}

	inserted := 0
	add := func(kind, key string, err error) error {
		switch {
		case err == nil:
			inserted++
			return nil
		case errors.Is(err, tablestore.ErrAlreadyExists):
			return nil
		default:
			return fmt.Errorf("seed %s %s: %w", kind, key, err)
		}
	}

	for _, vf := range f.Vendors {
		if vf.ID == "" {
			return inserted, errors.New("seed vendor: id is required")
		}
		v := model.NewVendorProfile(vf.ID)
		v.RegisteredDate = vf.RegisteredDate
		v.BusinessName = vf.BusinessName
		v.ContactName = vf.ContactName
		v.EmailAddress = vf.EmailAddress
		v.PhoneNumber = vf.PhoneNumber
		v.BankAccountNumber = vf.BankAccountNumber
		v.IsValidated = vf.IsValidated
		v.DateAcceptedTerms = vf.DateAcceptedTerms
		if err := add("vendor", vf.ID, r.AddVendor(ctx, v)); err != nil {
			return inserted, err
		}
	}
	for _, a := range f.Assignments {
		if err := add("assignment", a.UserID+"/"+a.VendorID, r.AddAssignment(ctx, a)); err != nil {
			return inserted, err
		}
	}
	for _, p := range f.Payments {
		if err := add("payment", p.PaymentID, r.AddPayment(ctx, p)); err != nil {
			return inserted, err
		}
	}
	for _, v := range f.Vouchers {
		if err := add("voucher", v.LineItemID, r.AddVoucher(ctx, v)); err != nil {
			return inserted, err
		}
	}

	return inserted, nil
}
