package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WorkspaceStatus values for the workspaces.status column.
const (
	WorkspaceStatusActive    = "active"
	WorkspaceStatusSuspended = "suspended"
)

// MembershipRole is the workspace role assigned to a member.
type MembershipRole string

const (
	MembershipRoleOwner  MembershipRole = "owner"
	MembershipRoleAdmin  MembershipRole = "admin"
	MembershipRoleMember MembershipRole = "member"
	MembershipRoleViewer MembershipRole = "viewer"
)

// CallDirection distinguishes inbound from outbound calls.
type CallDirection string

const (
	CallDirectionInbound  CallDirection = "inbound"
	CallDirectionOutbound CallDirection = "outbound"
)

// CallStatus is the local call lifecycle vocabulary.
type CallStatus string

const (
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusQueued     CallStatus = "queued"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusBusy       CallStatus = "busy"
	CallStatusNoAnswer   CallStatus = "no-answer"
)

// IsTerminal reports whether the status finalizes a call.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusBusy, CallStatusNoAnswer:
		return true
	default:
		return false
	}
}

// User is a platform account able to own workspaces, keys, and calls.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// Workspace is the billing/collaboration tenant.
type Workspace struct {
	ID        uuid.UUID
	Name      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorkspaceMembership binds a user to a workspace with a role.
type WorkspaceMembership struct {
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	Role        MembershipRole
	CreatedAt   time.Time
}

// APIKey holds everything persisted about a key. The plaintext secret is
// never stored; only its SHA-256 digest and an 8-char display prefix.
type APIKey struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	WorkspaceID        uuid.UUID
	Name               string
	Description        string
	KeyPrefix          string
	SecretHash         string
	Scopes             []string
	IsActive           bool
	UsageCount         int64
	LastUsedAt         *time.Time
	RateLimitPerMinute int
	RateLimitPerHour   int
	RateLimitPerDay    int
	AllowedIPs         []string
	ExpiresAt          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// UsageEvent is one append-only row per authenticated API call.
type UsageEvent struct {
	ID              uuid.UUID
	APIKeyID        uuid.UUID
	Endpoint        string
	Method          string
	StatusCode      int
	IPAddress       string
	UserAgent       string
	LatencyMs       int64
	TokensUsed      *int64
	CreditsConsumed *decimal.Decimal
	ErrorCode       *string
	ErrorMessage    *string
	Timestamp       time.Time
}

// PhoneNumber is a provisioned number owned by a workspace.
type PhoneNumber struct {
	ID           uuid.UUID
	WorkspaceID  uuid.UUID
	Number       string
	Label        string
	TotalCalls   int64
	TotalMinutes decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CallLog is the unit of billing; one row per voice call.
type CallLog struct {
	ID                uuid.UUID
	CallSID           string
	PhoneNumberID     uuid.UUID
	AssistantID       *uuid.UUID
	UserID            uuid.UUID
	CallerNumber      string
	CalledNumber      string
	Direction         CallDirection
	Status            CallStatus
	Country           string
	Region            string
	StartTime         time.Time
	EndTime           *time.Time
	DurationSeconds   int64
	HangupCause       string
	CreditsConsumed   decimal.Decimal
	CostUSD           decimal.Decimal
	CostEUR           decimal.Decimal
	AIResponseMs      *int64
	AIConfidence      *float64
	InterruptionCount int
	ConversationTurns int
	Sentiment         string
	Intent            string
	RecordingKey      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AuditSeverity grades audit entries for operator triage.
type AuditSeverity string

const (
	AuditSeverityLow      AuditSeverity = "low"
	AuditSeverityMedium   AuditSeverity = "medium"
	AuditSeverityHigh     AuditSeverity = "high"
	AuditSeverityCritical AuditSeverity = "critical"
)

// AuditEntry is one append-only compliance/security trail row.
type AuditEntry struct {
	ID           uuid.UUID
	EventType    string
	Severity     AuditSeverity
	UserID       *uuid.UUID
	UserEmail    string
	IPAddress    string
	ResourceType string
	ResourceID   string
	ResourceName string
	Action       string
	Metadata     []byte
	OldValues    []byte
	NewValues    []byte
	Success      bool
	ErrorMessage string
	Timestamp    time.Time
}

// AnalyticsSnapshot is a per-owner, per-day aggregate refreshed on call finalization.
type AnalyticsSnapshot struct {
	ID                   uuid.UUID
	UserID               uuid.UUID
	Day                  time.Time
	Period               string
	TotalCalls           int64
	CompletedCalls       int64
	FailedCalls          int64
	TotalDurationSeconds int64
	CreditsConsumed      decimal.Decimal
	CostUSD              decimal.Decimal
	CostEUR              decimal.Decimal
	AvgDurationSeconds   float64
	RefreshedAt          time.Time
}
