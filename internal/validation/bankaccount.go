// Package validation содержит функции валидации входных данных.
package validation

import "regexp"

// Номер счёта в формате банков Новой Зеландии: банк (2), отделение (4), счёт (7), суффикс (2–3).
// Разделитель (дефис или пробел) на каждой границе необязателен.
var bankAccountPattern = regexp.MustCompile(`^[0-9]{2}[- ]?[0-9]{4}[- ]?[0-9]{7}[- ]?[0-9]{2,3}$`)

// IsValidBankAccountNumber проверяет номер банковского счёта продавца.
func IsValidBankAccountNumber(number string) bool {
	return bankAccountPattern.MatchString(number)
}
