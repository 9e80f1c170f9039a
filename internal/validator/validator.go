// Package validator classifies wallet addresses against on-chain state.
package validator

import (
	"context"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"solana-airdrop/internal/domain"
	"solana-airdrop/internal/observability"
	"solana-airdrop/internal/solana"
)

const (
	publicKeySize = 32

	defaultTimeout = 10 * time.Second
)

// Options configures a Validator.
type Options struct {
	Reader solana.ChainReader

	// Timeout bounds one whole validation, all RPC calls included.
	Timeout time.Duration

	// CacheSize and CacheTTL enable caching of definitive results.
	// Either being zero disables the cache.
	CacheSize int
	CacheTTL  time.Duration

	// Strict rejects addresses that are not ed25519 curve points,
	// such as program derived addresses.
	Strict bool

	Logger logrus.FieldLogger
	Clock  func() time.Time
}

// Validator implements the wallet validation checks.
type Validator struct {
	reader  solana.ChainReader
	timeout time.Duration
	strict  bool
	cache   *resultCache
	logger  logrus.FieldLogger
	now     func() time.Time
}

// New creates a Validator.
func New(opts Options) *Validator {
	v := &Validator{
		reader:  opts.Reader,
		timeout: opts.Timeout,
		strict:  opts.Strict,
		cache:   newResultCache(opts.CacheSize, opts.CacheTTL),
		logger:  opts.Logger,
		now:     opts.Clock,
	}
	if v.timeout <= 0 {
		v.timeout = defaultTimeout
	}
	if v.logger == nil {
		v.logger = logrus.StandardLogger()
	}
	if v.now == nil {
		v.now = time.Now
	}
	return v
}

// Validate classifies address. It never returns an error: transient
// failures are reported as ValidationRPCError.
func (v *Validator) Validate(ctx context.Context, address string) domain.ValidationResult {
	if !v.wellFormed(address) {
		v.record(address, domain.ValidationInvalidAddress, false)
		return domain.ValidationInvalidAddress
	}

	if cached, ok := v.cache.Get(address, v.now()); ok {
		observability.RecordValidation(cached.String(), true)
		return cached
	}

	result := v.check(ctx, address)
	v.cache.Add(address, result, v.now())
	v.record(address, result, false)
	return result
}

func (v *Validator) check(ctx context.Context, address string) domain.ValidationResult {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	log := v.logger.WithField("wallet", address)

	info, err := v.reader.GetAccountInfo(ctx, address)
	if err != nil {
		log.WithError(err).Warn("account lookup failed")
		return domain.ValidationRPCError
	}
	if info == nil {
		log.Info("wallet account does not exist")
		return domain.ValidationInvalidAddress
	}

	balance, err := v.reader.GetBalance(ctx, address)
	if err != nil {
		log.WithError(err).Warn("balance lookup failed")
		return domain.ValidationRPCError
	}
	if balance == 0 {
		log.Info("wallet has zero balance")
		return domain.ValidationZeroBalance
	}

	if info.Executable {
		log.Info("wallet is a program account")
		return domain.ValidationProgramAccount
	}

	return domain.ValidationValid
}

// wellFormed reports whether address decodes to a 32-byte public key.
func (v *Validator) wellFormed(address string) bool {
	if address == "" {
		return false
	}
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != publicKeySize {
		return false
	}
	if v.strict {
		if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
			return false
		}
	}
	return true
}

func (v *Validator) record(address string, result domain.ValidationResult, cached bool) {
	observability.RecordValidation(result.String(), cached)
	v.logger.WithFields(logrus.Fields{
		"wallet": address,
		"result": result.String(),
	}).Debug("wallet validated")
}
