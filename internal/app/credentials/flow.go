// Package credentials obtains join credentials from the issuance endpoint and
// hands them to the session host.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Rana-X/nora/internal/domain"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	TokenPath      = "/api/token"
	defaultTimeout = 10 * time.Second
)

var (
	ErrIssuance  = errors.New("credential issuance failed")
	ErrMalformed = errors.New("malformed issuance response")
)

// IssuanceError is a non-2xx answer from the issuance endpoint.
type IssuanceError struct {
	Status  int
	Message string
}

func (e *IssuanceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("credential issuance failed: status %d", e.Status)
	}
	return fmt.Sprintf("credential issuance failed: status %d: %s", e.Status, e.Message)
}

func (e *IssuanceError) Is(target error) bool { return target == ErrIssuance }

// Starter receives freshly issued credentials.
type Starter func(ctx context.Context, creds domain.SessionCredentials) error

type Options struct {
	// IssuerURL is the base URL serving TokenPath.
	IssuerURL   string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Now         func() time.Time
	NewIdentity func() string
}

type tokenRequest struct {
	RoomName        string `json:"roomName"`
	ParticipantName string `json:"participantName"`
}

type errorBody struct {
	Error string `json:"error"`
}

type Flow struct {
	client      *resty.Client
	now         func() time.Time
	newIdentity func() string
	logger      zerolog.Logger
}

func NewFlow(opts Options) *Flow {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewIdentity == nil {
		opts.NewIdentity = domain.NewParticipantIdentity
	}
	client := resty.New()
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	}
	client.SetBaseURL(opts.IssuerURL).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)

	return &Flow{
		client:      client,
		now:         opts.Now,
		newIdentity: opts.NewIdentity,
		logger:      log.With().Str("module", "credentials").Logger(),
	}
}

// Start runs one user-initiated start: fresh room and identity, one request,
// no retry. start only runs with valid credentials.
func (f *Flow) Start(ctx context.Context, start Starter) (domain.SessionCredentials, error) {
	room := domain.NewRoomName(f.now())
	identity := f.newIdentity()

	creds, err := f.Request(ctx, room, identity)
	if err != nil {
		return domain.SessionCredentials{}, err
	}
	if start != nil {
		if err := start(ctx, creds); err != nil {
			return creds, fmt.Errorf("start session: %w", err)
		}
	}
	return creds, nil
}

// Request asks the issuance endpoint for credentials. Inputs are validated
// before any network call.
func (f *Flow) Request(ctx context.Context, roomName, participant string) (domain.SessionCredentials, error) {
	if err := domain.ValidateJoinRequest(roomName, participant); err != nil {
		return domain.SessionCredentials{}, err
	}

	var out domain.SessionCredentials
	var apiErr errorBody
	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(tokenRequest{RoomName: roomName, ParticipantName: participant}).
		SetResult(&out).
		SetError(&apiErr).
		Post(TokenPath)
	if err != nil {
		f.logger.Error().Err(err).Str("room", roomName).Msg("issuance request failed")
		return domain.SessionCredentials{}, fmt.Errorf("%w: %w", ErrIssuance, err)
	}
	if resp.IsError() || resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		f.logger.Warn().Int("status", resp.StatusCode()).Str("error", apiErr.Error).Str("room", roomName).Msg("issuance rejected")
		return domain.SessionCredentials{}, &IssuanceError{Status: resp.StatusCode(), Message: apiErr.Error}
	}

	if out.RoomName == "" {
		out.RoomName = roomName
	}
	if err := out.Validate(); err != nil {
		f.logger.Warn().Err(err).Str("room", roomName).Msg("issuance response incomplete")
		return domain.SessionCredentials{}, fmt.Errorf("%w: %w: %w", ErrIssuance, ErrMalformed, err)
	}

	f.logger.Info().Str("room", out.RoomName).Str("identity", participant).Msg("credentials issued")
	return out, nil
}
