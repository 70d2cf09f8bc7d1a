package model

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// ProviderTag identifies one third-party verification program.
type ProviderTag string

const (
	ProviderGeminiOnePro      ProviderTag = "gemini_one_pro"
	ProviderChatGPTTeacherK12 ProviderTag = "chatgpt_teacher_k12"
	ProviderSpotifyStudent    ProviderTag = "spotify_student"
	ProviderYouTubeStudent    ProviderTag = "youtube_student"
	ProviderBoltTeacher       ProviderTag = "bolt_teacher"
)

// KnownProviders is the fixed set the governor divides its base capacity over.
var KnownProviders = []ProviderTag{
	ProviderGeminiOnePro,
	ProviderChatGPTTeacherK12,
	ProviderSpotifyStudent,
	ProviderYouTubeStudent,
	ProviderBoltTeacher,
}

// AttemptStatus is the recorded state of one verification attempt.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptPending AttemptStatus = "pending"
	AttemptFailed  AttemptStatus = "failed"
)

// VerificationAttempt is one run of a provider workflow for one account.
// It is created once per attempt and immutable after reaching a terminal
// status, except for the pending -> success/failed transition driven by the
// status poller or a manual re-check.
type VerificationAttempt struct {
	ID         string
	AccountID  string
	Provider   ProviderTag
	Reference  string // the user-submitted URL or code
	Status     AttemptStatus
	Result     string // opaque result payload
	ExternalID string // provider verification id, needed for later lookup
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewAttempt(accountID string, provider ProviderTag, reference string) *VerificationAttempt {
	now := time.Now()
	return &VerificationAttempt{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		AccountID: accountID,
		Provider:  provider,
		Reference: reference,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OutcomeStatus enumerates every user-visible result of requestVerification.
type OutcomeStatus string

const (
	OutcomeSuccess           OutcomeStatus = "success"
	OutcomePending           OutcomeStatus = "pending"
	OutcomeFailed            OutcomeStatus = "failed"
	OutcomeInsufficientFunds OutcomeStatus = "insufficient_funds"
	OutcomeInvalidReference  OutcomeStatus = "invalid_reference"
	OutcomeAccountBlocked    OutcomeStatus = "account_blocked"
	OutcomeUnregistered      OutcomeStatus = "account_unregistered"
	OutcomeRateLimited       OutcomeStatus = "rate_limited"
	OutcomeUnknownStatus     OutcomeStatus = "unknown_status"
)

// Outcome is the typed result returned to the chat-command layer. No raw
// provider payload or fault ever escapes through it.
type Outcome struct {
	Status      OutcomeStatus
	RewardCode  string
	RedirectURL string
	ExternalID  string
	Reason      string
	Balance     int // populated for insufficient_funds
}

// ProviderRef is the identifier a provider client extracts from the submitted
// reference. External marks identifiers from the provider's own namespace
// (e.g. an externalUserId) that must be resolved to a verification id before
// the workflow can run.
type ProviderRef struct {
	ID       string
	External bool
}

// WorkflowResult is what a provider protocol client returns after driving the
// remote step sequence to a paid terminal state (success or pendingApproval).
type WorkflowResult struct {
	Pending        bool // approval is asynchronous, poll by VerificationID
	VerificationID string
	RewardCode     string
	RedirectURL    string
}

// StatusResult is a point-in-time view of a provider verification, obtained
// from the free-of-charge status endpoint.
type StatusResult struct {
	Step        string // success | pending | error | anything provider-defined
	RewardCode  string
	RedirectURL string
	ErrorIDs    []string
}

func (s *StatusResult) Success() bool { return s.Step == "success" }
func (s *StatusResult) Failed() bool  { return s.Step == "error" }

// InProgress reports whether the step is one of the known non-terminal
// workflow states. A step outside this set is neither terminal nor known to
// resolve on its own, and callers surface it as such.
func (s *StatusResult) InProgress() bool {
	switch s.Step {
	case "pending", "sso", "docUpload", "completeDocUpload", "docReview",
		"collectTeacherPersonalInfo", "collectStudentPersonalInfo":
		return true
	}
	return false
}

const fingerprintLen = 32

// NewDeviceFingerprint returns a uniformly random lowercase-hex string.
// It is regenerated per attempt and carries no security meaning; the provider
// merely expects the field to be present.
func NewDeviceFingerprint() string {
	const chars = "0123456789abcdef"
	b := make([]byte, fingerprintLen)
	for i := range b {
		b[i] = chars[rand.Intn(len(chars))]
	}
	return string(b)
}
