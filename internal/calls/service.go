// Package calls owns the call ledger: lifecycle state, duration-to-credit
// accounting, and derived USD/EUR cost. Costs are always recomputed from
// credits; nothing ever sets them independently.
package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voicepartnerai/platform/internal/credits"
	"github.com/voicepartnerai/platform/internal/store"
)

var (
	ErrServiceUnavailable = errors.New("call service not initialized")
	ErrUnknownPhoneNumber = errors.New("unknown phone number")
	ErrCallNotFound       = errors.New("call not found")
	// ErrTerminalCall rejects mutation of a finalized call. Analytics
	// back-fill fields are exempt.
	ErrTerminalCall = errors.New("call already in a terminal state")
)

// Ledger is the persistence surface the call service works against. InTx
// runs the callback against a transactional view; every mutation inside
// either commits together or rolls back together.
type Ledger interface {
	GetPhoneNumberByID(ctx context.Context, id uuid.UUID) (store.PhoneNumber, error)
	GetPhoneNumberByDialString(ctx context.Context, number string) (store.PhoneNumber, error)
	GetWorkspaceOwner(ctx context.Context, workspaceID uuid.UUID) (uuid.UUID, error)
	InsertCallLog(ctx context.Context, c store.CallLog) (store.CallLog, error)
	GetCallBySID(ctx context.Context, callSID string) (store.CallLog, error)
	GetCallBySIDForUpdate(ctx context.Context, callSID string) (store.CallLog, error)
	SaveCallLog(ctx context.Context, c store.CallLog) (store.CallLog, error)
	ListCallsByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]store.CallLog, error)
	AccumulatePhoneNumberUsage(ctx context.Context, id uuid.UUID, minutes decimal.Decimal) error
	RefreshDailySnapshot(ctx context.Context, userID uuid.UUID, day time.Time) error
	InTx(ctx context.Context, fn func(Ledger) error) error
}

type storeLedger struct {
	*store.Store
}

func (l storeLedger) InTx(ctx context.Context, fn func(Ledger) error) error {
	return l.Store.WithTx(ctx, func(tx *store.Store) error {
		return fn(storeLedger{tx})
	})
}

// Service drives the call state machine.
type Service struct {
	ledger Ledger
	calc   *credits.Calculator
	now    func() time.Time
}

func NewService(st *store.Store, calc *credits.Calculator) *Service {
	return NewServiceWithLedger(storeLedger{st}, calc)
}

func NewServiceWithLedger(ledger Ledger, calc *credits.Calculator) *Service {
	if calc == nil {
		calc = credits.NewCalculator()
	}
	return &Service{ledger: ledger, calc: calc, now: time.Now}
}

// StartCallRequest opens a new ledger entry. CallSID may carry the
// provider-assigned identifier; when empty a local one is minted.
type StartCallRequest struct {
	PhoneNumberID uuid.UUID
	AssistantID   *uuid.UUID
	UserID        uuid.UUID
	CallSID       string
	CallerNumber  string
	CalledNumber  string
	Direction     store.CallDirection
}

// StartCall persists a new call in the initiated state. Geo fields are
// inferred from the caller number's dialing prefix.
func (s *Service) StartCall(ctx context.Context, req StartCallRequest) (store.CallLog, error) {
	if s == nil || s.ledger == nil {
		return store.CallLog{}, ErrServiceUnavailable
	}
	if _, err := s.ledger.GetPhoneNumberByID(ctx, req.PhoneNumberID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.CallLog{}, ErrUnknownPhoneNumber
		}
		return store.CallLog{}, fmt.Errorf("lookup phone number: %w", err)
	}

	callSID := req.CallSID
	if callSID == "" {
		callSID = "call_" + uuid.NewString()
	}
	country, region := geoForNumber(req.CallerNumber)

	call := store.CallLog{
		CallSID:       callSID,
		PhoneNumberID: req.PhoneNumberID,
		AssistantID:   req.AssistantID,
		UserID:        req.UserID,
		CallerNumber:  req.CallerNumber,
		CalledNumber:  req.CalledNumber,
		Direction:     req.Direction,
		Status:        store.CallStatusInitiated,
		Country:       country,
		Region:        region,
		StartTime:     s.now(),
	}
	return s.ledger.InsertCallLog(ctx, call)
}

// StartInboundCall opens a ledger entry for a call first seen through a
// provider webhook. The called number must be registered; the entry is
// attributed to the owning workspace's owner.
func (s *Service) StartInboundCall(ctx context.Context, callSID, callerNumber, calledNumber string, startTime time.Time) (store.CallLog, error) {
	if s == nil || s.ledger == nil {
		return store.CallLog{}, ErrServiceUnavailable
	}
	if callSID == "" {
		return store.CallLog{}, errors.New("call sid required")
	}
	number, err := s.ledger.GetPhoneNumberByDialString(ctx, calledNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.CallLog{}, ErrUnknownPhoneNumber
		}
		return store.CallLog{}, fmt.Errorf("lookup called number: %w", err)
	}
	ownerID, err := s.ledger.GetWorkspaceOwner(ctx, number.WorkspaceID)
	if err != nil {
		return store.CallLog{}, fmt.Errorf("resolve workspace owner: %w", err)
	}

	if startTime.IsZero() {
		startTime = s.now()
	}
	country, region := geoForNumber(callerNumber)
	return s.ledger.InsertCallLog(ctx, store.CallLog{
		CallSID:       callSID,
		PhoneNumberID: number.ID,
		UserID:        ownerID,
		CallerNumber:  callerNumber,
		CalledNumber:  calledNumber,
		Direction:     store.CallDirectionInbound,
		Status:        store.CallStatusInitiated,
		Country:       country,
		Region:        region,
		StartTime:     startTime,
	})
}

// CallUpdate lists the mutable call fields; nil leaves a field untouched.
type CallUpdate struct {
	Status          *store.CallStatus
	EndTime         *time.Time
	DurationSeconds *int64
	HangupCause     *string
	CreditsConsumed *decimal.Decimal

	// Analytics back-fill, permitted even after a call is terminal.
	AIResponseMs      *int64
	AIConfidence      *float64
	InterruptionCount *int
	ConversationTurns *int
	Sentiment         *string
	Intent            *string
	RecordingKey      *string
}

// touchesLifecycle reports whether the update goes beyond analytics back-fill.
func (u CallUpdate) touchesLifecycle() bool {
	return u.Status != nil || u.EndTime != nil || u.DurationSeconds != nil ||
		u.HangupCause != nil || u.CreditsConsumed != nil
}

// UpdateCall applies the supplied fields to one call inside a single
// transaction. Duration is derived from end_time when not given explicitly,
// and USD/EUR cost is recomputed from credits whenever both duration and
// credits are known after the update.
func (s *Service) UpdateCall(ctx context.Context, callSID string, u CallUpdate) (store.CallLog, error) {
	if s == nil || s.ledger == nil {
		return store.CallLog{}, ErrServiceUnavailable
	}
	var updated store.CallLog
	err := s.ledger.InTx(ctx, func(tx Ledger) error {
		var err error
		updated, err = s.applyUpdate(ctx, tx, callSID, u)
		return err
	})
	if err != nil {
		return store.CallLog{}, err
	}
	return updated, nil
}

func (s *Service) applyUpdate(ctx context.Context, tx Ledger, callSID string, u CallUpdate) (store.CallLog, error) {
	call, err := tx.GetCallBySIDForUpdate(ctx, callSID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.CallLog{}, ErrCallNotFound
		}
		return store.CallLog{}, err
	}

	wasTerminal := call.Status.IsTerminal()
	if wasTerminal && u.touchesLifecycle() {
		return store.CallLog{}, ErrTerminalCall
	}

	if u.Status != nil {
		call.Status = *u.Status
	}
	if u.EndTime != nil {
		call.EndTime = u.EndTime
	}
	if u.DurationSeconds != nil {
		call.DurationSeconds = *u.DurationSeconds
	} else if u.EndTime != nil {
		call.DurationSeconds = int64(u.EndTime.Sub(call.StartTime).Seconds())
	}
	if u.HangupCause != nil {
		call.HangupCause = *u.HangupCause
	}
	if u.CreditsConsumed != nil {
		call.CreditsConsumed = *u.CreditsConsumed
	}
	if u.AIResponseMs != nil {
		call.AIResponseMs = u.AIResponseMs
	}
	if u.AIConfidence != nil {
		call.AIConfidence = u.AIConfidence
	}
	if u.InterruptionCount != nil {
		call.InterruptionCount = *u.InterruptionCount
	}
	if u.ConversationTurns != nil {
		call.ConversationTurns = *u.ConversationTurns
	}
	if u.Sentiment != nil {
		call.Sentiment = *u.Sentiment
	}
	if u.Intent != nil {
		call.Intent = *u.Intent
	}
	if u.RecordingKey != nil {
		call.RecordingKey = *u.RecordingKey
	}

	if call.DurationSeconds > 0 && call.CreditsConsumed.Sign() != 0 {
		call.CostUSD = s.calc.CostUSD(call.CreditsConsumed)
		call.CostEUR = s.calc.CostEUR(call.CreditsConsumed)
	}

	saved, err := tx.SaveCallLog(ctx, call)
	if err != nil {
		return store.CallLog{}, err
	}

	// Side effects fire once, on the transition into a terminal state, and
	// commit atomically with the call row.
	if !wasTerminal && saved.Status.IsTerminal() {
		minutes := decimal.NewFromInt(saved.DurationSeconds).Div(decimal.NewFromInt(60))
		if err := tx.AccumulatePhoneNumberUsage(ctx, saved.PhoneNumberID, minutes); err != nil {
			return store.CallLog{}, fmt.Errorf("accumulate phone usage: %w", err)
		}
		// Snapshots aggregate call_logs by start_time, so the refreshed day
		// must be the start day or a midnight-crossing call falls outside
		// its own refresh window.
		day := saved.StartTime.UTC().Truncate(24 * time.Hour)
		if err := tx.RefreshDailySnapshot(ctx, saved.UserID, day); err != nil {
			return store.CallLog{}, fmt.Errorf("refresh analytics snapshot: %w", err)
		}
	}
	return saved, nil
}

// EndCall finalizes a call. It is a convenience wrapper over UpdateCall; the
// terminal transition triggers phone-number stat accumulation and a same-day
// analytics refresh.
func (s *Service) EndCall(ctx context.Context, callSID string, endTime time.Time, status store.CallStatus, hangupCause string, finalCredits decimal.Decimal) (store.CallLog, error) {
	return s.UpdateCall(ctx, callSID, CallUpdate{
		Status:          &status,
		EndTime:         &endTime,
		HangupCause:     &hangupCause,
		CreditsConsumed: &finalCredits,
	})
}

// Get returns one call by provider SID.
func (s *Service) Get(ctx context.Context, callSID string) (store.CallLog, error) {
	if s == nil || s.ledger == nil {
		return store.CallLog{}, ErrServiceUnavailable
	}
	call, err := s.ledger.GetCallBySID(ctx, callSID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.CallLog{}, ErrCallNotFound
		}
		return store.CallLog{}, err
	}
	return call, nil
}

// List returns a user's calls, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]store.CallLog, error) {
	if s == nil || s.ledger == nil {
		return nil, ErrServiceUnavailable
	}
	return s.ledger.ListCallsByUser(ctx, userID, limit, offset)
}
