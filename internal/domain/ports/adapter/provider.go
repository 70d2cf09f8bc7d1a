package adapter

import (
	"context"

	"telegram-verification-bot/internal/domain/model"
)

// ProviderClient drives one provider's multi-step remote workflow. A client
// is stateless across attempts; ParseReference never performs a remote call.
type ProviderClient interface {
	Tag() model.ProviderTag

	// ParseReference extracts the provider identifier from the submitted URL
	// or code, recording which namespace it came from. It returns a
	// *domain.ReferenceError when no identifier is recognizable; no cost may
	// be charged in that case.
	ParseReference(reference string) (model.ProviderRef, error)

	// Run executes the full step sequence for the given identifier and
	// returns a paid terminal state, or a typed error (*domain.StepError,
	// *domain.UploadError) on definitive failure.
	Run(ctx context.Context, ref model.ProviderRef) (*model.WorkflowResult, error)
}

// DocumentProducer renders the supporting evidence artifacts for an identity.
// The core treats the artifacts as opaque bytes with a declared MIME type.
type DocumentProducer interface {
	Produce(identity model.Identity) ([]model.Document, error)
}

// IdentityGenerator yields a synthetic profile for one attempt.
type IdentityGenerator interface {
	Generate(provider model.ProviderTag) model.Identity
}

// StatusSource answers free-of-charge, idempotent status queries by external
// verification id.
type StatusSource interface {
	Lookup(ctx context.Context, verificationID string) (*model.StatusResult, error)
}
