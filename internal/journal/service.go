package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "journal.service.new"
	opRecord     = "journal.record"
	opList       = "journal.list"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

type IDProvider interface {
	NewID() (string, error)
}

// Service persists action outcomes for operators. Business logic never reads them back.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Record appends one outcome to the journal.
func (s *Service) Record(ctx context.Context, request RecordRequest) (Entry, error) {
	normalized, err := request.normalized()
	if err != nil {
		s.logError(opRecord, "invalid_request", err)
		return Entry{}, newServiceError(opRecord, "invalid_request", err)
	}

	entryID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRecord, "id_generation_failed", err, zap.String("account", normalized.Account))
		return Entry{}, newServiceError(opRecord, "id_generation_failed", err)
	}

	entry := Entry{
		EntryID:           entryID,
		Account:           normalized.Account,
		Action:            normalized.Action,
		Outcome:           normalized.Outcome,
		Target:            normalized.Target,
		Detail:            normalized.Detail,
		Late:              normalized.Late,
		RecordedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logError(opRecord, "insert_failed", err,
			zap.String("account", entry.Account),
			zap.String("action", entry.Action))
		return Entry{}, newServiceError(opRecord, "insert_failed", err)
	}
	return entry, nil
}

// List returns the newest entries for account. A non-positive limit selects the default.
func (s *Service) List(ctx context.Context, account string, limit int) ([]Entry, error) {
	normalized, err := normalizeAccount(account)
	if err != nil {
		s.logError(opList, "missing_account", err)
		return nil, newServiceError(opList, "missing_account", err)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var entries []Entry
	if err := s.db.WithContext(ctx).
		Where("account = ?", normalized).
		Order("recorded_at_s DESC").
		Order("entry_id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("account", normalized))
		return nil, newServiceError(opList, "query_failed", err)
	}
	return entries, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("journal service error", attrs...)
}
