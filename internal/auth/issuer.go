// Package auth mints room join tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/Rana-X/nora/internal/domain"
	lkauth "github.com/livekit/protocol/auth"
)

const DefaultTTL = time.Hour

var ErrNotConfigured = errors.New("livekit credentials not configured")

type Config struct {
	URL       string
	APIKey    string
	APISecret string
	TTL       time.Duration
}

type Issuer struct {
	cfg Config
}

func NewIssuer(cfg Config) *Issuer {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Issuer{cfg: cfg}
}

// Configured reports whether every server-side setting is present.
func (i *Issuer) Configured() bool {
	return i.cfg.URL != "" && i.cfg.APIKey != "" && i.cfg.APISecret != ""
}

// Issue grants room join with publish, data and subscribe rights.
func (i *Issuer) Issue(roomName, participant string) (domain.SessionCredentials, error) {
	if err := domain.ValidateJoinRequest(roomName, participant); err != nil {
		return domain.SessionCredentials{}, err
	}
	if !i.Configured() {
		return domain.SessionCredentials{}, ErrNotConfigured
	}

	grant := &lkauth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	grant.SetCanPublish(true)
	grant.SetCanPublishData(true)
	grant.SetCanSubscribe(true)

	token, err := lkauth.NewAccessToken(i.cfg.APIKey, i.cfg.APISecret).
		SetVideoGrant(grant).
		SetIdentity(participant).
		SetName(participant).
		SetValidFor(i.cfg.TTL).
		ToJWT()
	if err != nil {
		return domain.SessionCredentials{}, fmt.Errorf("sign token: %w", err)
	}

	return domain.SessionCredentials{Token: token, URL: i.cfg.URL, RoomName: roomName}, nil
}
