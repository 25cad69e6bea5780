package keychain

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Currency is a liquid token accepted by transfers.
type Currency string

const (
	CurrencyHive Currency = "HIVE"
	CurrencyHBD  Currency = "HBD"

	// MaxVoteWeight is a full-strength vote (100%).
	MaxVoteWeight = 10000
	// MaxMemoLength bounds transfer memos.
	MaxMemoLength  = 2048
	amountDecimals = 3
)

// MinimumAmount is the smallest amount the chain accepts for transfers and delegations.
var MinimumAmount = decimal.New(1, -amountDecimals)

// VoteRequest casts a weighted vote on a post.
type VoteRequest struct {
	Voter    string `json:"voter"`
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
	Weight   int    `json:"weight"`
}

// Validate checks the request before it reaches the provider.
func (r VoteRequest) Validate() error {
	if err := requireAccount("voter", r.Voter); err != nil {
		return err
	}
	if err := requireAccount("author", r.Author); err != nil {
		return err
	}
	if strings.TrimSpace(r.Permlink) == "" {
		return invalid("permlink", "permlink is required")
	}
	if r.Weight < -MaxVoteWeight || r.Weight > MaxVoteWeight {
		return invalid("weight", "weight must be between -10000 and 10000")
	}
	return nil
}

// TransferRequest moves liquid tokens between accounts.
type TransferRequest struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Amount   string   `json:"amount"`
	Currency Currency `json:"currency"`
	Memo     string   `json:"memo"`
}

// Validate checks the request and returns the amount formatted for the chain.
func (r TransferRequest) Validate() (string, error) {
	if err := requireAccount("from", r.From); err != nil {
		return "", err
	}
	if err := requireAccount("to", r.To); err != nil {
		return "", err
	}
	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return "", err
	}
	if r.Currency != CurrencyHive && r.Currency != CurrencyHBD {
		return "", invalid("currency", "currency must be HIVE or HBD")
	}
	if utf8.RuneCountInString(r.Memo) > MaxMemoLength {
		return "", invalid("memo", "memo exceeds 2048 characters")
	}
	return amount, nil
}

// DelegationRequest lends Hive Power to another account.
type DelegationRequest struct {
	Delegator string `json:"delegator"`
	Delegatee string `json:"delegatee"`
	Amount    string `json:"amount"`
}

// Validate checks the request and returns the amount formatted for the chain.
func (r DelegationRequest) Validate() (string, error) {
	if err := requireAccount("delegator", r.Delegator); err != nil {
		return "", err
	}
	if err := requireAccount("delegatee", r.Delegatee); err != nil {
		return "", err
	}
	return parseAmount("amount", r.Amount)
}

// PowerRequest powers HIVE up into Hive Power or withdraws it back.
type PowerRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// Validate checks the request and returns the amount formatted for the chain.
func (r PowerRequest) Validate() (string, error) {
	if err := requireAccount("account", r.Account); err != nil {
		return "", err
	}
	return parseAmount("amount", r.Amount)
}

// CustomJSONRequest broadcasts an application-defined payload.
type CustomJSONRequest struct {
	Account              string   `json:"account"`
	ID                   string   `json:"id"`
	RequiredAuths        []string `json:"required_auths"`
	RequiredPostingAuths []string `json:"required_posting_auths"`
	Payload              any      `json:"payload"`
}

// Authority is Active when active authorities are required and Posting otherwise.
func (r CustomJSONRequest) Authority() Authority {
	if len(r.RequiredAuths) > 0 {
		return AuthorityActive
	}
	return AuthorityPosting
}

// Validate checks the request and returns the encoded payload.
func (r CustomJSONRequest) Validate() (string, error) {
	if err := requireAccount("account", r.Account); err != nil {
		return "", err
	}
	if strings.TrimSpace(r.ID) == "" {
		return "", invalid("id", "custom json id is required")
	}
	if r.Payload == nil {
		return "", invalid("payload", "payload is required")
	}
	encoded, err := json.Marshal(r.Payload)
	if err != nil {
		return "", invalid("payload", "payload is not serializable")
	}
	return string(encoded), nil
}

// PostRequest publishes a root post or comment through a comment operation.
type PostRequest struct {
	Author         string `json:"author"`
	Permlink       string `json:"permlink"`
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	JSONMetadata   string `json:"json_metadata"`
}

// Validate checks the request before it reaches the provider.
func (r PostRequest) Validate() error {
	if err := requireAccount("author", r.Author); err != nil {
		return err
	}
	if strings.TrimSpace(r.Permlink) == "" {
		return invalid("permlink", "permlink is required")
	}
	if strings.TrimSpace(r.ParentPermlink) == "" {
		return invalid("parent_permlink", "a main tag is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		return invalid("title", "title is required")
	}
	if strings.TrimSpace(r.Body) == "" {
		return invalid("body", "body is required")
	}
	return nil
}

// operation encodes the request as a chain comment operation.
func (r PostRequest) operation() Operation {
	return Operation{Name: "comment", Payload: r}
}

func requireAccount(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, field+" is required")
	}
	return nil
}

// parseAmount validates a positive decimal amount with at most three decimals and
// renders it the way the chain expects, for example "1.500".
func parseAmount(field, raw string) (string, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !amount.IsPositive() {
		return "", invalid(field, "Please enter a valid amount")
	}
	if amount.LessThan(MinimumAmount) {
		return "", invalid(field, "Minimum amount is 0.001")
	}
	if !amount.Equal(amount.Truncate(amountDecimals)) {
		return "", invalid(field, "amount supports at most 3 decimal places")
	}
	return amount.StringFixed(amountDecimals), nil
}
