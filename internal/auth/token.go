package auth

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken   = errors.New("bearer token is required")
	ErrMalformedToken = errors.New("malformed bearer token")
	ErrInvalidSubject = errors.New("token subject is not a valid user id")
)

// idPattern is the expected id namespace: the same shape user and channel
// ids take everywhere else in the system.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Identity is the decoded connection identity.
type Identity struct {
	UserID    string
	ChannelID string // set when the user owns a channel
	Username  string
}

// Claims carries the identity fields issued by the upstream auth layer.
type Claims struct {
	jwt.RegisteredClaims
	ChannelID string `json:"channel_id,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Decode extracts the identity from a bearer token. The signature is not
// verified here: tokens reach the gateway only from an already
// authenticated upstream issuer, so the fast path trusts the claims and
// validates them structurally.
func Decode(token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if claims.Subject == "" || !idPattern.MatchString(claims.Subject) {
		return nil, ErrInvalidSubject
	}
	if claims.ChannelID != "" && !idPattern.MatchString(claims.ChannelID) {
		return nil, fmt.Errorf("%w: bad channel id", ErrMalformedToken)
	}

	return &Identity{
		UserID:    claims.Subject,
		ChannelID: claims.ChannelID,
		Username:  claims.Username,
	}, nil
}
