package sheerid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"telegram-verification-bot/internal/config"
	"telegram-verification-bot/internal/domain"
	"telegram-verification-bot/internal/domain/model"

	"github.com/rs/zerolog"
)

// Reference patterns accepted from user-submitted URLs.
var (
	verificationIDRe = regexp.MustCompile(`(?i)verificationId=([a-f0-9]+)`)
	externalUserIDRe = regexp.MustCompile(`(?i)externalUserId=([A-Za-z0-9_-]+)`)
)

// ParseVerificationID extracts a verification id from a reference URL.
func ParseVerificationID(reference string) (string, bool) {
	m := verificationIDRe.FindStringSubmatch(reference)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseExternalUserID extracts an external user id from a reference URL.
func ParseExternalUserID(reference string) (string, bool) {
	m := externalUserIDRe.FindStringSubmatch(reference)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// apiResponse is the subset of the provider payload the workflow depends on.
type apiResponse struct {
	VerificationID string   `json:"verificationId"`
	CurrentStep    string   `json:"currentStep"`
	ErrorIDs       []string `json:"errorIds"`
	RedirectURL    string   `json:"redirectUrl"`
	RewardCode     string   `json:"rewardCode"`
	RewardData     struct {
		RewardCode string `json:"rewardCode"`
	} `json:"rewardData"`
	Documents []struct {
		UploadURL string `json:"uploadUrl"`
	} `json:"documents"`
}

func (r *apiResponse) reward() string {
	if r.RewardCode != "" {
		return r.RewardCode
	}
	return r.RewardData.RewardCode
}

// Client carries the HTTP plumbing shared by every provider workflow and by
// the status poller. It holds no per-attempt state.
type Client struct {
	baseURL string
	http    *http.Client
	uploads *http.Client
	log     *zerolog.Logger
}

func NewClient(cfg config.SheerIDConfig, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		uploads: &http.Client{Timeout: cfg.UploadTimeout},
		log:     logger,
	}
}

// do sends one JSON exchange with the provider. A non-JSON body is tolerated;
// only transport errors are returned as errors, HTTP status is the caller's
// to interpret.
func (c *Client) do(ctx context.Context, method, url string, body interface{}) (*apiResponse, int, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	var out apiResponse
	_ = json.Unmarshal(raw, &out)
	return &out, resp.StatusCode, nil
}

// upload PUTs one artifact's bytes to its assigned target. Any result outside
// the 2xx range is a terminal *domain.UploadError naming the artifact.
func (c *Client) upload(ctx context.Context, target string, doc model.Document) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(doc.Data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", doc.MIMEType)

	resp, err := c.uploads.Do(req)
	if err != nil {
		return &domain.UploadError{FileName: doc.FileName}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.UploadError{FileName: doc.FileName, HTTPCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) verificationURL(id, step string) string {
	if step == "" {
		return fmt.Sprintf("%s/rest/v2/verification/%s", c.baseURL, id)
	}
	return fmt.Sprintf("%s/rest/v2/verification/%s/step/%s", c.baseURL, id, step)
}
