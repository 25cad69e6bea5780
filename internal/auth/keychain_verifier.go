package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/keychain"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// DefaultLoginMessage is the buffer an account signs to prove control at login.
	DefaultLoginMessage = "Login to Hive Social Explorer"
	// LoginMethodKeychain marks sessions established through a keychain signature.
	LoginMethodKeychain = "keychain"
)

var (
	// ErrLoginRejected indicates that the account declined or failed to sign the login buffer.
	ErrLoginRejected = errors.New("auth: login rejected")
	// ErrInvalidVerifierConfig indicates a verifier without a signer.
	ErrInvalidVerifierConfig = errors.New("auth: invalid keychain verifier config")
)

// BufferSigner asks an account to sign an arbitrary message.
type BufferSigner interface {
	SignBuffer(ctx context.Context, account, message string, authority keychain.Authority) (keychain.Response, error)
}

// KeychainVerifierConfig bundles configuration required to instantiate a KeychainVerifier.
type KeychainVerifierConfig struct {
	Signer  BufferSigner
	Message string
	Logger  *zap.Logger
	Clock   func() time.Time
}

// LoginClaims describes a verified login.
type LoginClaims struct {
	Account   string
	Method    string
	Signature string
	PublicKey string
	SignedAt  time.Time
}

// KeychainVerifier proves account control by requesting a posting-key signature.
type KeychainVerifier struct {
	signer  BufferSigner
	message string
	logger  *zap.Logger
	clock   func() time.Time
}

// NewKeychainVerifier constructs a verifier with validated configuration.
func NewKeychainVerifier(cfg KeychainVerifierConfig) (*KeychainVerifier, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("%w: signer required", ErrInvalidVerifierConfig)
	}
	message := strings.TrimSpace(cfg.Message)
	if message == "" {
		message = DefaultLoginMessage
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &KeychainVerifier{
		signer:  cfg.Signer,
		message: message,
		logger:  logger,
		clock:   clock,
	}, nil
}

// Verify asks account to sign the login message. Provider unavailability and validation
// errors are returned unchanged; a declined signature becomes ErrLoginRejected.
func (v *KeychainVerifier) Verify(ctx context.Context, account string) (LoginClaims, error) {
	response, err := v.signer.SignBuffer(ctx, account, v.message, keychain.AuthorityPosting)
	if err != nil {
		var upstreamErr *keychain.UpstreamError
		if errors.As(err, &upstreamErr) {
			v.logger.Info("keychain login rejected",
				zap.String("account", account),
				zap.String("message", upstreamErr.Message))
			return LoginClaims{}, fmt.Errorf("%w: %s", ErrLoginRejected, upstreamErr.Message)
		}
		return LoginClaims{}, err
	}

	result := gjson.ParseBytes(response.Result)
	signature := result.String()
	if result.IsObject() {
		signature = result.Get("signature").String()
	}
	return LoginClaims{
		Account:   account,
		Method:    LoginMethodKeychain,
		Signature: signature,
		PublicKey: result.Get("publicKey").String(),
		SignedAt:  v.clock().UTC(),
	}, nil
}
