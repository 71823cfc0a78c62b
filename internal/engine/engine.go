package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"key_gateway/internal/auth"
	"key_gateway/internal/events"
	"key_gateway/internal/models"
	"key_gateway/internal/provider"
	"key_gateway/internal/storage"
	"key_gateway/internal/utils"
)

// Credit lifecycle thresholds. RemainingLimit at or below the reset
// threshold closes the account and reopens it with a full balance; a
// key whose provider-side quota drops to the rotation threshold is
// replaced with a fresh one.
const (
	CreditResetThreshold = 0.1
	KeyRotationThreshold = 0.5
	InitialCredits       = 10.0
	KeyDailyLimit        = 1.0
)

// UserStore is the credential store capability the engine consumes
type UserStore interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, userID string, upd storage.UserUpdate) error
	Delete(ctx context.Context, userID string) error
}

// KeyProvisioner is the upstream provisioning capability
type KeyProvisioner interface {
	CreateKey(ctx context.Context, name string, dailyLimit float64) (*provider.Key, error)
	GetKeyStatus(ctx context.Context, hash string) (*provider.Key, error)
	DeleteKey(ctx context.Context, hash string) error
}

// UpstreamError tags a failure that originated at the provider. The
// HTTP layer maps it to 503; callers may retry.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return "upstream provider: " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }

// StorageError tags a credential store failure. Not retried by the
// engine.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return "credential store: " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// ErrInvalidKeyResponse is returned when the provider answers a key
// creation without both the secret and its handle. Nothing is
// persisted in that case.
var ErrInvalidKeyResponse = errors.New("provider key response missing secret or hash")

// Credential is the success payload returned to the subscriber
type Credential struct {
	Key              string  `json:"key"`
	RemainingCredits float64 `json:"remaining_credits"`
	TotalCredits     float64 `json:"total_credits"`
	DailyLimit       float64 `json:"daily_limit"`
}

// Engine implements the credential lifecycle decision procedure: given
// the persisted record and a live usage snapshot, it decides between
// first-time provisioning, an in-place credit update, key rotation,
// and a full credit reset, and keeps the record consistent with the
// provider's view of consumption.
type Engine struct {
	store UserStore
	keys  KeyProvisioner
	sink  events.Sink
	log   *utils.Logger
	locks *userLocks
}

// New creates a reconciliation engine. sink may be nil to disable the
// event stream.
func New(store UserStore, keys KeyProvisioner, sink events.Sink, log *utils.Logger) *Engine {
	if log == nil {
		log = utils.NewLogger("engine")
	}
	return &Engine{
		store: store,
		keys:  keys,
		sink:  sink,
		log:   log,
		locks: newUserLocks(),
	}
}

// ObtainCredential returns the active credential for the given
// verified identity, provisioning, replenishing, or rotating as
// needed. Reconciliation is serialized per user id; requests for
// different users proceed in parallel.
func (e *Engine) ObtainCredential(ctx context.Context, identity *auth.UserClaims) (*Credential, error) {
	unlock := e.locks.lock(identity.UserID)
	defer unlock()

	user, err := e.store.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return e.provisionNewUser(ctx, identity)
		}
		return nil, &StorageError{Err: err}
	}

	return e.reconcileExisting(ctx, user, identity)
}

// provisionNewUser creates a fresh provider key and credential record
// with the full starting balance.
func (e *Engine) provisionNewUser(ctx context.Context, identity *auth.UserClaims) (*Credential, error) {
	e.log.Info("provisioning new user", "user_id", identity.UserID)

	key, err := e.keys.CreateKey(ctx, "user-"+identity.UserName, KeyDailyLimit)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	if key.Secret == "" || key.Data.Hash == "" {
		return nil, ErrInvalidKeyResponse
	}

	user := &models.User{
		UserID:         identity.UserID,
		UserName:       identity.UserName,
		Email:          identity.Email,
		Key:            key.Secret,
		Hash:           key.Data.Hash,
		TotalLimit:     InitialCredits,
		RemainingLimit: InitialCredits,
		UsageLimit:     KeyDailyLimit,
	}
	if err := e.store.Create(ctx, user); err != nil {
		return nil, &StorageError{Err: err}
	}

	e.emit(ctx, events.New(identity.UserID, events.TypeProvisioned, InitialCredits, InitialCredits))

	return &Credential{
		Key:              key.Secret,
		RemainingCredits: InitialCredits,
		TotalCredits:     InitialCredits,
		DailyLimit:       KeyDailyLimit,
	}, nil
}

// reconcileExisting runs the existing-user decision procedure. The
// depletion check uses stored state only; the provider is consulted
// afterwards for a fresh usage snapshot.
func (e *Engine) reconcileExisting(ctx context.Context, user *models.User, identity *auth.UserClaims) (*Credential, error) {
	if user.Depleted(CreditResetThreshold) {
		e.log.Info("credits depleted, resetting account",
			"user_id", user.UserID, "remaining", user.RemainingLimit)
		return e.resetCredits(ctx, user, identity)
	}

	status, err := e.keys.GetKeyStatus(ctx, user.Hash)
	if err != nil {
		if provider.IsNotFound(err) {
			// Key vanished on the provider side; replace it rather
			// than surfacing the error.
			e.log.Warn("provider key missing, rotating", "user_id", user.UserID)
			return e.rotateKey(ctx, user, 0, true)
		}
		return nil, &UpstreamError{Err: err}
	}

	limitRemaining := status.Data.LimitRemaining
	consumed := user.ConsumedSince(limitRemaining)
	newRemaining := user.RemainingLimit - consumed

	if limitRemaining <= KeyRotationThreshold {
		e.log.Info("key quota below rotation threshold",
			"user_id", user.UserID, "limit_remaining", limitRemaining)
		return e.rotateKey(ctx, user, consumed, false)
	}

	// Steady state: charge the ledger and rebase the quota baseline on
	// the snapshot for the next reconciliation.
	err = e.store.Update(ctx, user.UserID, storage.UserUpdate{
		RemainingLimit: &newRemaining,
		UsageLimit:     &limitRemaining,
	})
	if err != nil {
		return nil, &StorageError{Err: err}
	}

	e.emit(ctx, events.New(user.UserID, events.TypeReconciled, newRemaining, user.TotalLimit))

	return &Credential{
		Key:              user.Key,
		RemainingCredits: math.Max(0, newRemaining),
		TotalCredits:     user.TotalLimit,
		DailyLimit:       KeyDailyLimit,
	}, nil
}

// resetCredits closes the account and reopens it under the same user
// id with a full balance. The old provider key is deleted best-effort;
// a failure there must not block the reset.
func (e *Engine) resetCredits(ctx context.Context, user *models.User, identity *auth.UserClaims) (*Credential, error) {
	if err := e.keys.DeleteKey(ctx, user.Hash); err != nil {
		e.log.Warn("failed to delete old key during reset",
			"user_id", user.UserID, "error", err)
	}

	if err := e.store.Delete(ctx, user.UserID); err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		return nil, &StorageError{Err: err}
	}

	e.emit(ctx, events.New(user.UserID, events.TypeReset, 0, user.TotalLimit))

	return e.provisionNewUser(ctx, identity)
}

// rotateKey replaces the active provider key. keyAbsent marks the
// implicit rotation triggered by a provider 404, where the old-key
// deletion is best-effort; on the threshold path a deletion failure is
// fatal, since the old key would stay live.
//
// The persisted remaining balance is the raw ledger value and may go
// negative; only the returned figure is clamped. A negative balance
// trips the depletion reset on the next request.
func (e *Engine) rotateKey(ctx context.Context, user *models.User, consumed float64, keyAbsent bool) (*Credential, error) {
	newRemaining := user.RemainingLimit - consumed

	if err := e.keys.DeleteKey(ctx, user.Hash); err != nil {
		if !keyAbsent {
			return nil, &UpstreamError{Err: fmt.Errorf("failed to delete old key: %w", err)}
		}
		e.log.Warn("delete of absent key failed, continuing",
			"user_id", user.UserID, "error", err)
	}

	key, err := e.keys.CreateKey(ctx, "user-"+user.UserID, KeyDailyLimit)
	if err != nil {
		// Named intermediate state: old key deleted, replacement not
		// created. The record still points at the dead key, so the
		// next request recovers through the 404 rotation path.
		return nil, &UpstreamError{Err: err}
	}
	if key.Secret == "" || key.Data.Hash == "" {
		return nil, ErrInvalidKeyResponse
	}

	dailyLimit := KeyDailyLimit
	err = e.store.Update(ctx, user.UserID, storage.UserUpdate{
		Key:            &key.Secret,
		Hash:           &key.Data.Hash,
		RemainingLimit: &newRemaining,
		UsageLimit:     &dailyLimit,
	})
	if err != nil {
		return nil, &StorageError{Err: err}
	}

	e.log.Info("key rotated", "user_id", user.UserID, "remaining", newRemaining)
	e.emit(ctx, events.New(user.UserID, events.TypeRotated, newRemaining, user.TotalLimit))

	return &Credential{
		Key:              key.Secret,
		RemainingCredits: math.Max(0, newRemaining),
		TotalCredits:     user.TotalLimit,
		DailyLimit:       KeyDailyLimit,
	}, nil
}

func (e *Engine) emit(ctx context.Context, ev events.Event) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Publish(ctx, ev); err != nil {
		e.log.Warn("failed to publish lifecycle event",
			"user_id", ev.UserID, "type", ev.Type, "error", err)
	}
}
