// Package csvexport сериализует выгрузки продавцов в CSV с фиксированной локалью en-NZ,
// чтобы формат чисел и дат не зависел от настроек сервера.
package csvexport

import (
	"fmt"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/mmeshcher/soscafe-admin/internal/model"
)

// Имена файлов выгрузок.
const (
	PaymentsFileName = "SOSCafe-Payments.csv"
	VouchersFileName = "SOSCafe-Vouchers.csv"
)

// Locale задаёт локаль всех выгрузок.
var Locale = language.MustParse("en-NZ")

// Формат даты en-NZ: d/MM/yyyy h:mm:ss am.
const dateLayout = "2/01/2006 3:04:05 pm"

var printer = message.NewPrinter(Locale)

// PaymentRow описывает строку выгрузки выплат.
type PaymentRow struct {
	VendorID          string `csv:"VendorId"`
	PaymentID         string `csv:"PaymentId"`
	PaymentDate       string `csv:"PaymentDate"`
	BankAccountNumber string `csv:"BankAccountNumber"`
	GrossPayment      string `csv:"GrossPayment"`
	Fees              string `csv:"Fees"`
	NetPayment        string `csv:"NetPayment"`
}

// VoucherRow описывает строку выгрузки ваучеров.
type VoucherRow struct {
	VendorID                 string `csv:"VendorId"`
	LineItemID               string `csv:"LineItemId"`
	OrderID                  string `csv:"OrderId"`
	OrderRef                 string `csv:"OrderRef"`
	OrderDate                string `csv:"OrderDate"`
	CustomerName             string `csv:"CustomerName"`
	CustomerRegion           string `csv:"CustomerRegion"`
	CustomerEmailAddress     string `csv:"CustomerEmailAddress"`
	CustomerAcceptsMarketing string `csv:"CustomerAcceptsMarketing"`
	VoucherID                string `csv:"VoucherId"`
	VoucherDescription       string `csv:"VoucherDescription"`
	VoucherQuantity          string `csv:"VoucherQuantity"`
	VoucherIsDonation        string `csv:"VoucherIsDonation"`
	VoucherGross             string `csv:"VoucherGross"`
	VoucherFees              string `csv:"VoucherFees"`
	VoucherNet               string `csv:"VoucherNet"`
}

// Payments формирует CSV с выплатами.
func Payments(payments []model.VendorPayment) ([]byte, error) {
	rows := make([]*PaymentRow, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, &PaymentRow{
			VendorID:          p.VendorID,
			PaymentID:         p.PaymentID,
			PaymentDate:       FormatTime(p.PaymentDate),
			BankAccountNumber: p.BankAccountNumber,
			GrossPayment:      FormatAmount(p.GrossPayment),
			Fees:              FormatAmount(p.Fees),
			NetPayment:        FormatAmount(p.NetPayment),
		})
	}
	return Marshal(rows)
}

// Vouchers формирует CSV с ваучерами.
func Vouchers(vouchers []model.VendorVoucher) ([]byte, error) {
	rows := make([]*VoucherRow, 0, len(vouchers))
	for _, v := range vouchers {
		rows = append(rows, &VoucherRow{
			VendorID:                 v.VendorID,
			LineItemID:               v.LineItemID,
			OrderID:                  v.OrderID,
			OrderRef:                 v.OrderRef,
			OrderDate:                FormatTime(v.OrderDate),
			CustomerName:             v.CustomerName,
			CustomerRegion:           v.CustomerRegion,
			CustomerEmailAddress:     v.CustomerEmailAddress,
			CustomerAcceptsMarketing: FormatBool(v.CustomerAcceptsMarketing),
			VoucherID:                v.VoucherID,
			VoucherDescription:       v.VoucherDescription,
			VoucherQuantity:          printer.Sprintf("%v", number.Decimal(v.VoucherQuantity, number.NoSeparator())),
			VoucherIsDonation:        FormatBool(v.VoucherIsDonation),
			VoucherGross:             FormatAmount(v.VoucherGross),
			VoucherFees:              FormatAmount(v.VoucherFees),
			VoucherNet:               FormatAmount(v.VoucherNet),
		})
	}
	return Marshal(rows)
}

// Marshal сериализует срез плоских структур: строка заголовка из тегов csv и по строке на запись.
func Marshal(records any) ([]byte, error) {
	b, err := gocsv.MarshalBytes(records)
	if err != nil {
		return nil, fmt.Errorf("marshal csv: %w", err)
	}
	return b, nil
}

// FormatAmount форматирует сумму с двумя знаками после точки и без разделителей разрядов.
func FormatAmount(d decimal.Decimal) string {
	return printer.Sprintf("%v", number.Decimal(d.Round(2).InexactFloat64(), number.Scale(2), number.NoSeparator()))
}

// FormatTime форматирует момент времени в UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// FormatBool возвращает True или False.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
