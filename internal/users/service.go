package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAccountNotFound indicates the account has never logged in.
var ErrAccountNotFound = errors.New("users: account not found")

// ServiceConfig describes the dependencies required for account bookkeeping.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service keeps the registry of accounts that have logged in.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	known sync.Map
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:  cfg.Database,
		now: clock,
	}, nil
}

// RecordLogin validates the account name, creates the account on first login and bumps
// its login counter. The canonical lowercase name is returned.
func (s *Service) RecordLogin(ctx context.Context, rawName, method string) (Account, error) {
	name, err := NormalizeAccountName(rawName)
	if err != nil {
		return Account{}, err
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = "keychain"
	}

	now := s.now().UTC()
	account := Account{
		Name:        name,
		LoginMethod: method,
		LoginCount:  1,
		LastSeenAt:  now,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"login_method": method,
			"login_count":  gorm.Expr("login_count + 1"),
			"last_seen_at": now,
		}),
	}).Create(&account).Error
	if err != nil {
		return Account{}, err
	}

	stored, err := s.load(ctx, name)
	if err != nil {
		return Account{}, err
	}
	s.known.Store(name, struct{}{})
	return stored, nil
}

// Get returns a previously recorded account.
func (s *Service) Get(ctx context.Context, rawName string) (Account, error) {
	name, err := NormalizeAccountName(rawName)
	if err != nil {
		return Account{}, err
	}
	return s.load(ctx, name)
}

// Known reports whether the account logged in during this process lifetime or before.
func (s *Service) Known(ctx context.Context, rawName string) bool {
	name, err := NormalizeAccountName(rawName)
	if err != nil {
		return false
	}
	if _, ok := s.known.Load(name); ok {
		return true
	}
	if _, err := s.load(ctx, name); err != nil {
		return false
	}
	s.known.Store(name, struct{}{})
	return true
}

func (s *Service) load(ctx context.Context, name string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("name = ?", name).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}
