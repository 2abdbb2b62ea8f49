// Package ident turns request cookies into a validated model.Identity.
//
// Two grammars are supported as interchangeable strategies:
//
//   - UUIDStrategy: a single cookie (user_id) holding a version 4, RFC 4122
//     variant UUID. There is no separate access token.
//   - AnonymousStrategy: a uid cookie of the form "a" followed by a positive
//     plain integer without leading zeros, and a token cookie holding a
//     version 4 UUID.
//
// After syntactic validation a Validator can hand the identity to a
// PairingVerifier, which decides whether the (user id, token) pair is known.
package ident

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/alphabot-ai/gamerev/internal/apierror"
	"github.com/alphabot-ai/gamerev/internal/model"
	"github.com/google/uuid"
)

const (
	CookieUserID = "user_id"
	CookieUID    = "uid"
	CookieToken  = "token"
)

// ErrPairingRequired is returned by NewValidator when pairing enforcement is
// on but no verifier was supplied.
var ErrPairingRequired = errors.New("ident: pairing enforcement requires a PairingVerifier")

// ErrUnpaired is returned by a PairingVerifier when the user id and token
// were never issued together. Any other verifier error is a server failure.
var ErrUnpaired = errors.New("ident: user id and token are not paired")

// Cookies holds raw cookie values by name.
type Cookies map[string]string

// FromRequest collects the request's cookies. The first value wins when a
// name repeats.
func FromRequest(r *http.Request) Cookies {
	out := make(Cookies)
	for _, c := range r.Cookies() {
		if _, ok := out[c.Name]; !ok {
			out[c.Name] = c.Value
		}
	}
	return out
}

type Strategy interface {
	Validate(c Cookies) (model.Identity, error)
}

// PairingVerifier reports ErrUnpaired, possibly inside an *apierror.Error,
// when the pair was never issued.
type PairingVerifier interface {
	VerifyPairing(ctx context.Context, id model.Identity) error
}

// PairingFunc adapts a function to PairingVerifier.
type PairingFunc func(ctx context.Context, id model.Identity) error

func (f PairingFunc) VerifyPairing(ctx context.Context, id model.Identity) error {
	return f(ctx, id)
}

type Validator struct {
	strategy Strategy
	pairing  PairingVerifier
}

// NewValidator builds a Validator. When enforcePairing is set, pairing must be
// non-nil; when it is not set, pairing is ignored.
func NewValidator(strategy Strategy, pairing PairingVerifier, enforcePairing bool) (*Validator, error) {
	if strategy == nil {
		return nil, errors.New("ident: nil strategy")
	}
	if !enforcePairing {
		return &Validator{strategy: strategy}, nil
	}
	if pairing == nil {
		return nil, ErrPairingRequired
	}
	return &Validator{strategy: strategy, pairing: pairing}, nil
}

func (v *Validator) Validate(ctx context.Context, c Cookies) (model.Identity, error) {
	id, err := v.strategy.Validate(c)
	if err != nil {
		return model.Identity{}, err
	}
	if v.pairing == nil {
		return id, nil
	}
	if err := v.pairing.VerifyPairing(ctx, id); err != nil {
		var apiErr *apierror.Error
		switch {
		case errors.As(err, &apiErr):
			return model.Identity{}, err
		case errors.Is(err, ErrUnpaired):
			return model.Identity{}, &apierror.Error{
				Kind:        apierror.KindInvalidCredential,
				Title:       "Access token invalid",
				Description: fmt.Sprintf("Cookie '%s' is not paired with the given user.", CookieToken),
				Anchor:      "cookie-" + CookieToken,
				Cause:       err,
			}
		default:
			return model.Identity{}, fmt.Errorf("verify pairing: %w", err)
		}
	}
	return id, nil
}

type UUIDStrategy struct{}

func (UUIDStrategy) Validate(c Cookies) (model.Identity, error) {
	raw, ok := c[CookieUserID]
	if !ok {
		return model.Identity{}, missing(CookieUserID, "User ID not provided")
	}
	u, ok := ParseUUID4(raw)
	if !ok {
		return model.Identity{}, invalid(CookieUserID, "User ID invalid",
			fmt.Sprintf("Cookie '%s' must hold a Version 4 UUID.", CookieUserID))
	}
	return model.Identity{UserID: u.String()}, nil
}

type AnonymousStrategy struct{}

var plainInteger = regexp.MustCompile(`^[1-9][0-9]*$`)

func (AnonymousStrategy) Validate(c Cookies) (model.Identity, error) {
	uid, ok := c[CookieUID]
	if !ok {
		return model.Identity{}, missing(CookieUID, "User ID not provided")
	}
	if !ValidAnonymousID(uid) {
		return model.Identity{}, invalid(CookieUID, "User ID invalid",
			fmt.Sprintf("Cookie '%s' must hold the letter 'a' followed by a plain integer.", CookieUID))
	}

	raw, ok := c[CookieToken]
	if !ok {
		return model.Identity{}, missing(CookieToken, "Access token not provided")
	}
	token, ok := ParseUUID4(raw)
	if !ok {
		return model.Identity{}, invalid(CookieToken, "Access token invalid",
			fmt.Sprintf("Cookie '%s' must hold a Version 4 UUID.", CookieToken))
	}
	return model.Identity{UserID: uid, Token: token}, nil
}

// ValidAnonymousID reports whether s is "a" followed by a positive integer
// with no leading zero that fits in an int64.
func ValidAnonymousID(s string) bool {
	if len(s) < 2 || s[0] != 'a' {
		return false
	}
	digits := s[1:]
	if !plainInteger.MatchString(digits) {
		return false
	}
	_, err := strconv.ParseInt(digits, 10, 64)
	return err == nil
}

// AnonymousID formats the anonymous user id for sequence number seq.
func AnonymousID(seq int64) string {
	return "a" + strconv.FormatInt(seq, 10)
}

// ParseUUID4 parses s and accepts it only as a version 4, RFC 4122 variant
// UUID.
func ParseUUID4(s string) (uuid.UUID, bool) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	if u.Version() != 4 || u.Variant() != uuid.RFC4122 {
		return uuid.Nil, false
	}
	return u, true
}

func missing(cookie, title string) error {
	return &apierror.Error{
		Kind:        apierror.KindMissingCredential,
		Title:       title,
		Description: fmt.Sprintf("Cookie '%s' must be set.", cookie),
		Anchor:      "cookie-" + cookie,
	}
}

func invalid(cookie, title, description string) error {
	return &apierror.Error{
		Kind:        apierror.KindInvalidCredential,
		Title:       title,
		Description: description,
		Anchor:      "cookie-" + cookie,
	}
}
