package journal

import (
	"errors"
	"fmt"
	"strings"
)

// Outcome enumerates how a transactional action ended.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimedOut Outcome = "timed_out"
)

const (
	maxIdentifierLength = 190
	maxDetailLength     = 1024
	defaultListLimit    = 50
	maxListLimit        = 500
)

var (
	// ErrInvalidAccount indicates an empty or oversized account name.
	ErrInvalidAccount = errors.New("journal: invalid account")
	// ErrInvalidAction indicates an empty or oversized action name.
	ErrInvalidAction = errors.New("journal: invalid action")
	// ErrInvalidOutcome indicates an unknown outcome.
	ErrInvalidOutcome = errors.New("journal: invalid outcome")
)

// Entry is one persisted action outcome. Late entries record completions that arrived
// after the action had already timed out.
type Entry struct {
	EntryID           string  `gorm:"column:entry_id;primaryKey;size:190;not null"`
	Account           string  `gorm:"column:account;size:190;not null;index:idx_journal_account_time,priority:1"`
	Action            string  `gorm:"column:action;size:190;not null"`
	Outcome           Outcome `gorm:"column:outcome;size:32;not null"`
	Target            string  `gorm:"column:target;size:190;not null;default:''"`
	Detail            string  `gorm:"column:detail;type:text;not null;default:''"`
	Late              bool    `gorm:"column:late;not null;default:false"`
	RecordedAtSeconds int64   `gorm:"column:recorded_at_s;not null;index:idx_journal_account_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "action_journal"
}

// RecordRequest describes an outcome to persist.
type RecordRequest struct {
	Account string
	Action  string
	Outcome Outcome
	Target  string
	Detail  string
	Late    bool
}

func (r RecordRequest) normalized() (RecordRequest, error) {
	account, err := normalizeAccount(r.Account)
	if err != nil {
		return RecordRequest{}, err
	}
	r.Account = account
	r.Action = strings.TrimSpace(r.Action)
	if r.Action == "" || len(r.Action) > maxIdentifierLength {
		return RecordRequest{}, fmt.Errorf("%w: %q", ErrInvalidAction, r.Action)
	}
	switch r.Outcome {
	case OutcomeSuccess, OutcomeFailed, OutcomeTimedOut:
	default:
		return RecordRequest{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, r.Outcome)
	}
	r.Target = strings.TrimSpace(r.Target)
	if len(r.Target) > maxIdentifierLength {
		r.Target = r.Target[:maxIdentifierLength]
	}
	if len(r.Detail) > maxDetailLength {
		r.Detail = r.Detail[:maxDetailLength]
	}
	return r, nil
}

func normalizeAccount(raw string) (string, error) {
	account := strings.ToLower(strings.TrimSpace(raw))
	if account == "" || len(account) > maxIdentifierLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccount, raw)
	}
	return account, nil
}
