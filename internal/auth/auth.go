// Package auth issues and verifies anonymous (uid, token) identity pairs.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/alphabot-ai/gamerev/internal/apierror"
	"github.com/alphabot-ai/gamerev/internal/ident"
	"github.com/alphabot-ai/gamerev/internal/model"
	"github.com/alphabot-ai/gamerev/internal/store"
	"github.com/google/uuid"
)

type Service struct {
	store store.PairingStore
}

func NewService(store store.PairingStore) *Service {
	return &Service{store: store}
}

// IssueAnonymous mints a fresh uid and access token and records the pair.
func (s *Service) IssueAnonymous(ctx context.Context) (model.Identity, error) {
	token := uuid.New()
	uid, err := s.store.CreatePairing(ctx, token, ident.AnonymousID)
	if err != nil {
		return model.Identity{}, fmt.Errorf("issue pairing: %w", err)
	}
	return model.Identity{UserID: uid, Token: token}, nil
}

// VerifyPairing checks that id.Token is the token issued to id.UserID. It is
// the pairing hook handed to ident.NewValidator.
func (s *Service) VerifyPairing(ctx context.Context, id model.Identity) error {
	token, err := s.store.GetPairing(ctx, id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return unpaired("User ID was never issued.")
	}
	if err != nil {
		return err
	}
	if token != id.Token {
		return unpaired(fmt.Sprintf("Cookie '%s' does not belong to cookie '%s'.", ident.CookieToken, ident.CookieUID))
	}
	return nil
}

func unpaired(description string) error {
	return &apierror.Error{
		Kind:        apierror.KindInvalidCredential,
		Title:       "Access token invalid",
		Description: description,
		Anchor:      "cookie-" + ident.CookieToken,
		Cause:       ident.ErrUnpaired,
	}
}
