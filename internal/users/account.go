package users

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	minAccountNameLength = 3
	maxAccountNameLength = 16
)

// ErrInvalidAccountName indicates a string that cannot be a Hive account name.
var ErrInvalidAccountName = errors.New("users: invalid account name")

// Account records a Hive account that has logged in through the service.
type Account struct {
	Name        string    `gorm:"column:name;primaryKey;size:32;not null"`
	LoginMethod string    `gorm:"column:login_method;size:32;not null"`
	LoginCount  int64     `gorm:"column:login_count;not null;default:0"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing accounts.
func (Account) TableName() string {
	return "hive_accounts"
}

// NormalizeAccountName lowercases raw, strips a leading "@" and validates it against the
// chain's naming rules: 3 to 16 characters, dot separated segments of at least three
// characters, each starting with a letter and ending with a letter or digit.
func NormalizeAccountName(raw string) (string, error) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
	if len(name) < minAccountNameLength || len(name) > maxAccountNameLength {
		return "", fmt.Errorf("%w: %q must be between %d and %d characters", ErrInvalidAccountName, raw, minAccountNameLength, maxAccountNameLength)
	}
	for _, segment := range strings.Split(name, ".") {
		if err := validateSegment(segment); err != nil {
			return "", fmt.Errorf("%w: %q %v", ErrInvalidAccountName, raw, err)
		}
	}
	return name, nil
}

func validateSegment(segment string) error {
	if len(segment) < minAccountNameLength {
		return errors.New("segment too short")
	}
	if segment[0] < 'a' || segment[0] > 'z' {
		return errors.New("segment must start with a letter")
	}
	last := segment[len(segment)-1]
	if !isLetter(last) && !isDigit(last) {
		return errors.New("segment must end with a letter or digit")
	}
	for index := 0; index < len(segment); index++ {
		character := segment[index]
		if !isLetter(character) && !isDigit(character) && character != '-' {
			return errors.New("segment contains invalid characters")
		}
		if character == '-' && index > 0 && segment[index-1] == '-' {
			return errors.New("segment contains consecutive dashes")
		}
	}
	return nil
}

func isLetter(character byte) bool {
	return character >= 'a' && character <= 'z'
}

func isDigit(character byte) bool {
	return character >= '0' && character <= '9'
}
