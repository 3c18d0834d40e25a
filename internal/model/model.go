// Package model содержит доменные сущности административного сервиса SOS Cafe.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// VendorsPartition содержит общий ключ раздела для всех профилей продавцов.
const VendorsPartition = "Vendors"

// VendorProfile описывает регистрационные данные продавца.
// Ключ строки всегда совпадает с ShopifyID, поэтому профиль создаётся только через NewVendorProfile.
type VendorProfile struct {
	shopifyID string

	RegisteredDate    time.Time  `json:"registeredDate"`
	BusinessName      string     `json:"businessName"`
	ContactName       string     `json:"contactName"`
	EmailAddress      string     `json:"emailAddress"`
	PhoneNumber       string     `json:"phoneNumber"`
	BankAccountNumber string     `json:"bankAccountNumber"`
	IsValidated       bool       `json:"isValidated"`
	DateAcceptedTerms *time.Time `json:"dateAcceptedTerms,omitempty"`

	// ETag хранит версию строки, прочитанная из хранилища.
	ETag string `json:"-"`
}

// NewVendorProfile создаёт профиль продавца с указанным внешним идентификатором.
func NewVendorProfile(shopifyID string) *VendorProfile {
	return &VendorProfile{shopifyID: shopifyID}
}

// ShopifyID возвращает внешний идентификатор продавца.
func (v *VendorProfile) ShopifyID() string { return v.shopifyID }

// PartitionKey возвращает ключ раздела профиля.
func (v *VendorProfile) PartitionKey() string { return VendorsPartition }

// RowKey возвращает ключ строки профиля.
func (v *VendorProfile) RowKey() string { return v.shopifyID }

// VendorUpdate содержит изменяемые пользователем поля профиля.
type VendorUpdate struct {
	BankAccountNumber string
	DateAcceptedTerms *time.Time
}

// VendorUserAssignment разрешает пользователю действовать от имени продавца.
type VendorUserAssignment struct {
	UserID   string `json:"userId"`
	VendorID string `json:"vendorId"`
	// VendorName хранит название продавца на момент назначения.
	VendorName string `json:"vendorName"`
}

// VendorSummary содержит краткое описание продавца, доступного пользователю.
type VendorSummary struct {
	ID           string
	BusinessName string
}

// VendorPayment описывает выплату продавцу.
type VendorPayment struct {
	VendorID          string          `json:"vendorId"`
	PaymentID         string          `json:"paymentId"`
	PaymentDate       time.Time       `json:"paymentDate"`
	BankAccountNumber string          `json:"bankAccountNumber"`
	GrossPayment      decimal.Decimal `json:"grossPayment"`
	Fees              decimal.Decimal `json:"fees"`
	NetPayment        decimal.Decimal `json:"netPayment"`
}

// VendorVoucher описывает погашенную позицию заказа с ваучером продавца.
type VendorVoucher struct {
	VendorID                 string          `json:"vendorId"`
	LineItemID               string          `json:"lineItemId"`
	OrderID                  string          `json:"orderId"`
	OrderRef                 string          `json:"orderRef"`
	OrderDate                time.Time       `json:"orderDate"`
	CustomerName             string          `json:"customerName"`
	CustomerRegion           string          `json:"customerRegion"`
	CustomerEmailAddress     string          `json:"customerEmailAddress"`
	CustomerAcceptsMarketing bool            `json:"customerAcceptsMarketing"`
	VoucherID                string          `json:"voucherId"`
	VoucherDescription       string          `json:"voucherDescription"`
	VoucherQuantity          int             `json:"voucherQuantity"`
	VoucherIsDonation        bool            `json:"voucherIsDonation"`
	VoucherGross             decimal.Decimal `json:"voucherGross"`
	VoucherFees              decimal.Decimal `json:"voucherFees"`
	VoucherNet               decimal.Decimal `json:"voucherNet"`
}
