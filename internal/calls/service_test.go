package calls

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voicepartnerai/platform/internal/store"
)

type fakeLedger struct {
	phoneNumbers map[uuid.UUID]store.PhoneNumber
	owners       map[uuid.UUID]uuid.UUID
	calls        map[string]store.CallLog
	accumulated  map[uuid.UUID]decimal.Decimal
	snapshots    int
	snapshotDays []time.Time
	saveErr      error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		phoneNumbers: make(map[uuid.UUID]store.PhoneNumber),
		owners:       make(map[uuid.UUID]uuid.UUID),
		calls:        make(map[string]store.CallLog),
		accumulated:  make(map[uuid.UUID]decimal.Decimal),
	}
}

func (f *fakeLedger) GetPhoneNumberByID(ctx context.Context, id uuid.UUID) (store.PhoneNumber, error) {
	pn, ok := f.phoneNumbers[id]
	if !ok {
		return store.PhoneNumber{}, store.ErrNotFound
	}
	return pn, nil
}

func (f *fakeLedger) GetPhoneNumberByDialString(ctx context.Context, number string) (store.PhoneNumber, error) {
	for _, pn := range f.phoneNumbers {
		if pn.Number == number {
			return pn, nil
		}
	}
	return store.PhoneNumber{}, store.ErrNotFound
}

func (f *fakeLedger) GetWorkspaceOwner(ctx context.Context, workspaceID uuid.UUID) (uuid.UUID, error) {
	owner, ok := f.owners[workspaceID]
	if !ok {
		return uuid.Nil, store.ErrNotFound
	}
	return owner, nil
}

func (f *fakeLedger) InsertCallLog(ctx context.Context, c store.CallLog) (store.CallLog, error) {
	c.ID = uuid.New()
	f.calls[c.CallSID] = c
	return c, nil
}

func (f *fakeLedger) GetCallBySID(ctx context.Context, callSID string) (store.CallLog, error) {
	c, ok := f.calls[callSID]
	if !ok {
		return store.CallLog{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeLedger) GetCallBySIDForUpdate(ctx context.Context, callSID string) (store.CallLog, error) {
	return f.GetCallBySID(ctx, callSID)
}

func (f *fakeLedger) SaveCallLog(ctx context.Context, c store.CallLog) (store.CallLog, error) {
	if f.saveErr != nil {
		return store.CallLog{}, f.saveErr
	}
	f.calls[c.CallSID] = c
	return c, nil
}

func (f *fakeLedger) ListCallsByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]store.CallLog, error) {
	var out []store.CallLog
	for _, c := range f.calls {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeLedger) AccumulatePhoneNumberUsage(ctx context.Context, id uuid.UUID, minutes decimal.Decimal) error {
	f.accumulated[id] = f.accumulated[id].Add(minutes)
	return nil
}

func (f *fakeLedger) RefreshDailySnapshot(ctx context.Context, userID uuid.UUID, day time.Time) error {
	f.snapshots++
	f.snapshotDays = append(f.snapshotDays, day)
	return nil
}

func (f *fakeLedger) InTx(ctx context.Context, fn func(Ledger) error) error {
	return fn(f)
}

func seedCall(t *testing.T, ledger *fakeLedger, svc *Service) store.CallLog {
	t.Helper()
	phoneID := uuid.New()
	ledger.phoneNumbers[phoneID] = store.PhoneNumber{ID: phoneID, Number: "+15550100"}
	call, err := svc.StartCall(context.Background(), StartCallRequest{
		PhoneNumberID: phoneID,
		UserID:        uuid.New(),
		CallerNumber:  "+4930123456",
		CalledNumber:  "+15550100",
		Direction:     store.CallDirectionInbound,
	})
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	return call
}

func TestStartCall(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewServiceWithLedger(ledger, nil)

	call := seedCall(t, ledger, svc)
	if call.Status != store.CallStatusInitiated {
		t.Fatalf("status = %s, want initiated", call.Status)
	}
	if call.Country != "DE" || call.Region != "Europe" {
		t.Fatalf("geo = %s/%s, want DE/Europe", call.Country, call.Region)
	}
	if call.CallSID == "" {
		t.Fatal("call sid not minted")
	}
}

func TestStartCallUnknownPhoneNumber(t *testing.T) {
	svc := NewServiceWithLedger(newFakeLedger(), nil)
	_, err := svc.StartCall(context.Background(), StartCallRequest{PhoneNumberID: uuid.New()})
	if !errors.Is(err, ErrUnknownPhoneNumber) {
		t.Fatalf("expected ErrUnknownPhoneNumber, got %v", err)
	}
}

func TestUpdateCallDerivesDurationAndCost(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewServiceWithLedger(ledger, nil)
	call := seedCall(t, ledger, svc)

	endTime := call.StartTime.Add(120 * time.Second)
	creditsUsed := decimal.NewFromFloat(5.5)
	status := store.CallStatusCompleted
	updated, err := svc.UpdateCall(context.Background(), call.CallSID, CallUpdate{
		Status:          &status,
		EndTime:         &endTime,
		CreditsConsumed: &creditsUsed,
	})
	if err != nil {
		t.Fatalf("UpdateCall: %v", err)
	}
	if updated.DurationSeconds != 120 {
		t.Fatalf("duration = %d, want 120", updated.DurationSeconds)
	}
	if !updated.CostUSD.Equal(decimal.RequireFromString("0.055")) {
		t.Fatalf("cost usd = %s, want 0.055", updated.CostUSD)
	}
	if !updated.CostEUR.Equal(decimal.RequireFromString("0.0506")) {
		t.Fatalf("cost eur = %s, want 0.0506", updated.CostEUR)
	}
}

func TestUpdateCallExplicitDurationWins(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewServiceWithLedger(ledger, nil)
	call := seedCall(t, ledger, svc)

	endTime := call.StartTime.Add(500 * time.Second)
	duration := int64(90)
	updated, err := svc.UpdateCall(context.Background(), call.CallSID, CallUpdate{
		EndTime:         &endTime,
		DurationSeconds: &duration,
	})
	if err != nil {
		t.Fatalf("UpdateCall: %v", err)
	}
	if updated.DurationSeconds != 90 {
		t.Fatalf("duration = %d, want explicit 90", updated.DurationSeconds)
	}
}

func TestUpdateCallNotFound(t *testing.T) {
	svc := NewServiceWithLedger(newFakeLedger(), nil)
	_, err := svc.UpdateCall(context.Background(), "call_missing", CallUpdate{})
	if !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
}

func TestEndCallTriggersTerminalSideEffects(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewServiceWithLedger(ledger, nil)
	call := seedCall(t, ledger, svc)

	endTime := call.StartTime.Add(180 * time.Second)
	ended, err := svc.EndCall(context.Background(), call.CallSID, endTime, store.CallStatusCompleted, "normal_clearing", decimal.NewFromFloat(3.3))
	if err != nil {
		t.Fatalf("EndCall: %v", err)
	}
	if ended.DurationSeconds != 180 {
		t.Fatalf("duration = %d, want 180", ended.DurationSeconds)
	}
	if minutes := ledger.accumulated[call.PhoneNumberID]; !minutes.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("accumulated minutes = %s, want 3", minutes)
	}
	if ledger.snapshots != 1 {
		t.Fatalf("snapshot refreshes = %d, want 1", ledger.snapshots)
	}
}

func TestMidnightCrossingCallRefreshesStartDay(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewServiceWithLedger(ledger, nil)
	startTime := time.Date(2026, 3, 14, 23, 50, 0, 0, time.UTC)
	svc.now = func() time.Time { return startTime }
	call := seedCall(t, ledger, svc)

	// The call ends twenty minutes later, on March 15th.
	endTime := startTime.Add(20 * time.Minute)
	if _, err := svc.EndCall(context.Background(), call.CallSID, endTime, store.CallStatusCompleted, "", decimal.NewFromFloat(2.2)); err != nil {
		t.Fatalf("EndCall: %v", err)
	}

	if len(ledger.snapshotDays) != 1 {
		t.Fatalf("snapshot refreshes = %d, want 1", len(ledger.snapshotDays))
	}
	wantDay := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if !ledger.snapshotDays[0].Equal(wantDay) {
		t.Fatalf("refreshed day = %s, want %s", ledger.snapshotDays[0], wantDay)
	}
}

func TestTerminalCallRejectsLifecycleMutation(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewServiceWithLedger(ledger, nil)
	call := seedCall(t, ledger, svc)

	endTime := call.StartTime.Add(time.Minute)
	if _, err := svc.EndCall(context.Background(), call.CallSID, endTime, store.CallStatusCompleted, "", decimal.NewFromFloat(1.1)); err != nil {
		t.Fatalf("EndCall: %v", err)
	}

	later := endTime.Add(time.Minute)
	_, err := svc.EndCall(context.Background(), call.CallSID, later, store.CallStatusFailed, "", decimal.Zero)
	if !errors.Is(err, ErrTerminalCall) {
		t.Fatalf("expected ErrTerminalCall, got %v", err)
	}

	// Side effects must not fire a second time.
	if ledger.snapshots != 1 {
		t.Fatalf("snapshot refreshes = %d, want 1", ledger.snapshots)
	}
}

func TestTerminalCallAllowsAnalyticsBackfill(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewServiceWithLedger(ledger, nil)
	call := seedCall(t, ledger, svc)

	endTime := call.StartTime.Add(time.Minute)
	if _, err := svc.EndCall(context.Background(), call.CallSID, endTime, store.CallStatusCompleted, "", decimal.NewFromFloat(1.1)); err != nil {
		t.Fatalf("EndCall: %v", err)
	}

	sentiment := "positive"
	turns := 14
	updated, err := svc.UpdateCall(context.Background(), call.CallSID, CallUpdate{
		Sentiment:         &sentiment,
		ConversationTurns: &turns,
	})
	if err != nil {
		t.Fatalf("backfill update: %v", err)
	}
	if updated.Sentiment != "positive" || updated.ConversationTurns != 14 {
		t.Fatalf("backfill not applied: %+v", updated)
	}
}

func TestGeoForNumber(t *testing.T) {
	cases := []struct {
		number      string
		wantCountry string
		wantRegion  string
	}{
		{"+15550100", "US", "North America"},
		{"+4420794600", "GB", "Europe"},
		{"+971501234567", "AE", "Middle East"},
		{"+9721234567", "IL", "Middle East"},
		{"0159912345", "", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		country, region := geoForNumber(tc.number)
		if country != tc.wantCountry || region != tc.wantRegion {
			t.Errorf("geoForNumber(%q) = %s/%s, want %s/%s", tc.number, country, region, tc.wantCountry, tc.wantRegion)
		}
	}
}
