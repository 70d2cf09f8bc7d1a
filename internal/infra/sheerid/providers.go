package sheerid

import (
	"context"
	"fmt"
	"net/http"

	"telegram-verification-bot/internal/config"
	"telegram-verification-bot/internal/domain"
	"telegram-verification-bot/internal/domain/model"
	"telegram-verification-bot/internal/domain/ports/adapter"
	"telegram-verification-bot/internal/infra/docs"

	"github.com/rs/zerolog"
)

const (
	stepCollectTeacherInfo = "collectTeacherPersonalInfo"
	stepCollectStudentInfo = "collectStudentPersonalInfo"
	stepSSO                = "sso"
	stepDocUpload          = "docUpload"
	stepCompleteDocUpload  = "completeDocUpload"
	stepError              = "error"
)

// providerClient drives the shared multi-step workflow for one configured
// program. Provider behavior differs only in segment (which collect step and
// evidence set applies), program id and the async flag, so one implementation
// covers the whole synchronous set.
type providerClient struct {
	c       *Client
	tag     model.ProviderTag
	program config.ProgramConfig
	ids     adapter.IdentityGenerator
	docs    adapter.DocumentProducer
	log     *zerolog.Logger
}

func (p *providerClient) Tag() model.ProviderTag { return p.tag }

func (p *providerClient) ParseReference(reference string) (model.ProviderRef, error) {
	if id, ok := ParseVerificationID(reference); ok {
		return model.ProviderRef{ID: id}, nil
	}
	return model.ProviderRef{}, &domain.ReferenceError{Reference: reference}
}

func (p *providerClient) collectStep() string {
	if p.program.Segment == string(docs.SegmentStudent) {
		return stepCollectStudentInfo
	}
	return stepCollectTeacherInfo
}

func (p *providerClient) Run(ctx context.Context, ref model.ProviderRef) (*model.WorkflowResult, error) {
	id := ref.ID
	identity := p.ids.Generate(p.tag)
	artifacts, err := p.docs.Produce(identity)
	if err != nil {
		return nil, fmt.Errorf("produce documents: %w", err)
	}

	log := p.log.With().
		Str("provider", string(p.tag)).
		Str("verification_id", id).
		Logger()

	resp, err := p.submitPersonalInfo(ctx, id, identity)
	if err != nil {
		return nil, err
	}

	// The provider sometimes routes the flow through an SSO step first; a
	// DELETE on it skips ahead. Best effort: a failure here is ignored and
	// surfaces later, at docUpload, if the flow really was stuck.
	if resp.CurrentStep == stepSSO || resp.CurrentStep == p.collectStep() {
		if skipped, _, err := p.c.do(ctx, http.MethodDelete, p.c.verificationURL(id, stepSSO), nil); err == nil && skipped.CurrentStep != "" {
			resp = skipped
		} else if err != nil {
			log.Debug().Err(err).Msg("sso skip failed, continuing")
		}
	}

	targets, err := p.declareDocuments(ctx, id, artifacts)
	if err != nil {
		return nil, err
	}
	for i, doc := range artifacts {
		if err := p.c.upload(ctx, targets[i], doc); err != nil {
			return nil, err
		}
	}

	final, err := p.completeUpload(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.program.Async {
		log.Info().Str("step", final.CurrentStep).Msg("workflow submitted, approval pending")
		return &model.WorkflowResult{
			Pending:        true,
			VerificationID: id,
			RedirectURL:    final.RedirectURL,
		}, nil
	}
	log.Info().Str("step", final.CurrentStep).Msg("workflow complete")
	return &model.WorkflowResult{
		VerificationID: id,
		RewardCode:     final.reward(),
		RedirectURL:    final.RedirectURL,
	}, nil
}

func (p *providerClient) submitPersonalInfo(ctx context.Context, id string, identity model.Identity) (*apiResponse, error) {
	step := p.collectStep()
	body := map[string]interface{}{
		"firstName":   identity.FirstName,
		"lastName":    identity.LastName,
		"birthDate":   identity.BirthDate,
		"email":       identity.Email,
		"phoneNumber": "",
		"organization": map[string]interface{}{
			"id":         identity.Organization.ID,
			"idExtended": identity.Organization.IDExtended,
			"name":       identity.Organization.Name,
		},
		"deviceFingerprintHash": model.NewDeviceFingerprint(),
		"locale":                "en-US",
		"metadata": map[string]interface{}{
			"verificationId": id,
			"refererUrl":     "",
		},
	}

	resp, status, err := p.c.do(ctx, http.MethodPost, p.c.verificationURL(id, step), body)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", step, err)
	}
	if status != http.StatusOK {
		return nil, &domain.StepError{Step: step, HTTPCode: status, ErrorIDs: resp.ErrorIDs}
	}
	if resp.CurrentStep == stepError {
		return nil, &domain.StepError{Step: step, HTTPCode: status, ErrorIDs: resp.ErrorIDs}
	}
	return resp, nil
}

// declareDocuments announces the artifact manifest and returns one upload
// target per artifact, in manifest order.
func (p *providerClient) declareDocuments(ctx context.Context, id string, artifacts []model.Document) ([]string, error) {
	files := make([]map[string]interface{}, 0, len(artifacts))
	for _, doc := range artifacts {
		files = append(files, map[string]interface{}{
			"fileName": doc.FileName,
			"mimeType": doc.MIMEType,
			"fileSize": doc.Size(),
		})
	}

	resp, status, err := p.c.do(ctx, http.MethodPost, p.c.verificationURL(id, stepDocUpload), map[string]interface{}{"files": files})
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", stepDocUpload, err)
	}
	if status != http.StatusOK || resp.CurrentStep == stepError {
		return nil, &domain.StepError{Step: stepDocUpload, HTTPCode: status, ErrorIDs: resp.ErrorIDs}
	}
	if len(resp.Documents) < len(artifacts) {
		return nil, &domain.StepError{Step: stepDocUpload, HTTPCode: status, ErrorIDs: []string{"noUploadTargets"}}
	}
	targets := make([]string, len(artifacts))
	for i := range artifacts {
		targets[i] = resp.Documents[i].UploadURL
	}
	return targets, nil
}

func (p *providerClient) completeUpload(ctx context.Context, id string) (*apiResponse, error) {
	resp, status, err := p.c.do(ctx, http.MethodPost, p.c.verificationURL(id, stepCompleteDocUpload), nil)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", stepCompleteDocUpload, err)
	}
	if status != http.StatusOK || resp.CurrentStep == stepError {
		return nil, &domain.StepError{Step: stepCompleteDocUpload, HTTPCode: status, ErrorIDs: resp.ErrorIDs}
	}
	return resp, nil
}

// boltClient wraps the shared workflow for the one program whose references
// may carry an external user id instead of a verification id. The external id
// is resolved to a verification id against the program endpoint before the
// normal step sequence runs.
type boltClient struct {
	providerClient
}

func (b *boltClient) ParseReference(reference string) (model.ProviderRef, error) {
	if id, ok := ParseVerificationID(reference); ok {
		return model.ProviderRef{ID: id}, nil
	}
	if id, ok := ParseExternalUserID(reference); ok {
		return model.ProviderRef{ID: id, External: true}, nil
	}
	return model.ProviderRef{}, &domain.ReferenceError{Reference: reference}
}

func (b *boltClient) Run(ctx context.Context, ref model.ProviderRef) (*model.WorkflowResult, error) {
	if ref.External {
		resolved, err := b.resolve(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		ref = model.ProviderRef{ID: resolved}
	}
	return b.providerClient.Run(ctx, ref)
}

func (b *boltClient) resolve(ctx context.Context, externalUserID string) (string, error) {
	url := fmt.Sprintf("%s/rest/v2/program/%s/verification", b.c.baseURL, b.program.ID)
	resp, status, err := b.c.do(ctx, http.MethodPost, url, map[string]interface{}{
		"externalUserId": externalUserID,
	})
	if err != nil {
		return "", fmt.Errorf("resolve external user id: %w", err)
	}
	if status != http.StatusOK || resp.VerificationID == "" {
		return "", &domain.StepError{Step: "resolveExternalUserId", HTTPCode: status, ErrorIDs: resp.ErrorIDs}
	}
	return resp.VerificationID, nil
}

// NewProviderClients builds one client per configured program, keyed by tag.
func NewProviderClients(cfg config.SheerIDConfig, c *Client, ids adapter.IdentityGenerator, logger *zerolog.Logger) map[model.ProviderTag]adapter.ProviderClient {
	clients := make(map[model.ProviderTag]adapter.ProviderClient, len(cfg.Programs))
	for name, program := range cfg.Programs {
		tag := model.ProviderTag(name)
		base := providerClient{
			c:       c,
			tag:     tag,
			program: program,
			ids:     ids,
			docs:    docs.NewProducer(docs.Segment(program.Segment)),
			log:     logger,
		}
		if tag == model.ProviderBoltTeacher {
			clients[tag] = &boltClient{providerClient: base}
		} else {
			clients[tag] = &base
		}
	}
	return clients
}
