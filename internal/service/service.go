// Package service реализует бизнес-логику администрирования продавцов SOS Cafe.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/soscafe-admin/internal/csvexport"
	"github.com/mmeshcher/soscafe-admin/internal/model"
	"github.com/mmeshcher/soscafe-admin/internal/repository"
	"github.com/mmeshcher/soscafe-admin/internal/validation"
)

var (
	// ErrNotFound возвращается, если продавец не существует или пользователь не имеет к нему доступа.
	// Оба случая намеренно неразличимы для вызывающей стороны.
	ErrNotFound = errors.New("vendor not found")
	// ErrTermsNotAccepted возвращается, если в обновлении не указана дата принятия условий.
	ErrTermsNotAccepted = errors.New("the terms must be accepted in order to update the vendor")
	// ErrInvalidBankAccount возвращается при неверном формате номера счёта.
	ErrInvalidBankAccount = errors.New("the bank account number is invalid")
	// ErrStoreFailure возвращается, если хранилище отклонило запись.
	ErrStoreFailure = errors.New("failed to update vendor")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetAssignment(ctx context.Context, userID, vendorID string) (*model.VendorUserAssignment, error)
	ListAssignments(ctx context.Context, userID string) ([]model.VendorUserAssignment, error)
	GetVendor(ctx context.Context, vendorID string) (*model.VendorProfile, error)
	ReplaceVendor(ctx context.Context, v *model.VendorProfile) error
	ListPayments(ctx context.Context, vendorID string) ([]model.VendorPayment, error)
	ListVouchers(ctx context.Context, vendorID string) ([]model.VendorVoucher, error)
}

// Service содержит бизнес-логику сервиса.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// IsAuthorized проверяет наличие назначения пользователя на продавца.
// Любая ошибка хранилища трактуется как отказ.
func (s *Service) IsAuthorized(ctx context.Context, userID, vendorID string) bool {
	if userID == "" || vendorID == "" {
		return false
	}

	_, err := s.repo.GetAssignment(ctx, userID, vendorID)
	if err == nil {
		return true
	}
	if !errors.Is(err, repository.ErrAssignmentNotFound) {
		s.logger.Warn("authorization lookup failed, denying request",
			zap.Error(err), zap.String("userID", userID), zap.String("vendorID", vendorID))
	}
	return false
}

func (s *Service) authorize(ctx context.Context, userID, vendorID string) error {
	if !s.IsAuthorized(ctx, userID, vendorID) {
		s.logger.Info("unauthorized vendor request denied",
			zap.String("userID", userID), zap.String("vendorID", vendorID))
		return ErrNotFound
	}
	return nil
}

// GetVendorsForUser возвращает продавцов, назначенных пользователю.
func (s *Service) GetVendorsForUser(ctx context.Context, userID string) ([]model.VendorSummary, error) {
	assignments, err := s.repo.ListAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := make([]model.VendorSummary, 0, len(assignments))
	for _, a := range assignments {
		res = append(res, model.VendorSummary{
			ID:           a.VendorID,
			BusinessName: a.VendorName,
		})
	}
	return res, nil
}

// GetVendor возвращает профиль продавца, если пользователь имеет к нему доступ.
func (s *Service) GetVendor(ctx context.Context, userID, vendorID string) (*model.VendorProfile, error) {
	if err := s.authorize(ctx, userID, vendorID); err != nil {
		return nil, err
	}

	v, err := s.repo.GetVendor(ctx, vendorID)
	if err != nil {
		if errors.Is(err, repository.ErrVendorNotFound) {
			s.logger.Warn("vendor not found", zap.String("vendorID", vendorID))
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// ValidateUpdate проверяет обновление профиля; первая найденная ошибка возвращается сразу.
func ValidateUpdate(upd model.VendorUpdate) error {
	if upd.DateAcceptedTerms == nil {
		return ErrTermsNotAccepted
	}
	if !validation.IsValidBankAccountNumber(upd.BankAccountNumber) {
		return ErrInvalidBankAccount
	}
	return nil
}

// UpdateVendor меняет номер счёта и дату принятия условий. Остальные поля профиля не изменяются.
func (s *Service) UpdateVendor(ctx context.Context, userID, vendorID string, upd model.VendorUpdate) error {
	if err := s.authorize(ctx, userID, vendorID); err != nil {
		return err
	}

	if err := ValidateUpdate(upd); err != nil {
		return err
	}

	v, err := s.repo.GetVendor(ctx, vendorID)
	if err != nil {
		if errors.Is(err, repository.ErrVendorNotFound) {
			return ErrNotFound
		}
		return err
	}

	accepted := upd.DateAcceptedTerms.UTC()
	v.BankAccountNumber = upd.BankAccountNumber
	v.DateAcceptedTerms = &accepted

	if err := s.repo.ReplaceVendor(ctx, v); err != nil {
		s.logger.Error("failed to replace entity in Vendors table",
			zap.Error(err), zap.String("vendorID", vendorID))
		return fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	s.logger.Info("replaced entity in Vendors table", zap.String("vendorID", vendorID))
	return nil
}

// ListPayments возвращает все выплаты продавца.
func (s *Service) ListPayments(ctx context.Context, userID, vendorID string) ([]model.VendorPayment, error) {
	if err := s.authorize(ctx, userID, vendorID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, vendorID)
}

// ListVouchers возвращает все погашенные ваучеры продавца.
func (s *Service) ListVouchers(ctx context.Context, userID, vendorID string) ([]model.VendorVoucher, error) {
	if err := s.authorize(ctx, userID, vendorID); err != nil {
		return nil, err
	}
	return s.repo.ListVouchers(ctx, vendorID)
}

// ExportPayments возвращает выплаты продавца в формате CSV.
func (s *Service) ExportPayments(ctx context.Context, userID, vendorID string) ([]byte, error) {
	payments, err := s.ListPayments(ctx, userID, vendorID)
	if err != nil {
		return nil, err
	}
	return csvexport.Payments(payments)
}

// ExportVouchers возвращает ваучеры продавца в формате CSV.
func (s *Service) ExportVouchers(ctx context.Context, userID, vendorID string) ([]byte, error) {
	vouchers, err := s.ListVouchers(ctx, userID, vendorID)
	if err != nil {
		return nil, err
	}
	return csvexport.Vouchers(vouchers)
}
