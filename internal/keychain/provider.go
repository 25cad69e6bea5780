package keychain

import "encoding/json"

// Authority names the key level a request is signed with.
type Authority string

const (
	// AuthorityPosting signs social operations.
	AuthorityPosting Authority = "Posting"
	// AuthorityActive signs financial operations.
	AuthorityActive Authority = "Active"
)

// Response is the completion payload delivered by a signing provider.
type Response struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// Callback receives the provider's completion. Providers call it once per request.
type Callback func(Response)

// Operation is a raw chain operation broadcast through the provider.
type Operation struct {
	Name    string
	Payload any
}

// MarshalJSON encodes the operation in the chain's [name, payload] form.
func (o Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{o.Name, o.Payload})
}

// Provider is a callback-style signing capability such as the Hive Keychain extension.
// Requests are fire-and-forget: the provider owns the key material and reports back
// through the callback, possibly on another goroutine.
type Provider interface {
	RequestVote(voter, permlink, author string, weight int, callback Callback)
	RequestTransfer(from, to, amount, memo, currency string, callback Callback)
	RequestDelegation(delegator, delegatee, amount string, callback Callback)
	RequestCustomJSON(account, id string, authority Authority, payload, displayName string, callback Callback)
	RequestPowerUp(account, amount string, callback Callback)
	RequestWithdrawVesting(account, amount string, callback Callback)
	RequestBroadcast(account string, operations []Operation, authority Authority, callback Callback)
	RequestSignBuffer(account, message string, authority Authority, callback Callback)
}
