package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/alphabot-ai/gamerev/internal/apierror"
	"github.com/alphabot-ai/gamerev/internal/ident"
	"github.com/alphabot-ai/gamerev/internal/model"
	"github.com/alphabot-ai/gamerev/internal/store/memory"
	"github.com/alphabot-ai/gamerev/internal/store/sqlite"
	"github.com/google/uuid"
)

func TestIssueAndVerify(t *testing.T) {
	st, err := sqlite.Open("file:auth_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	svc := NewService(st)
	ctx := context.Background()

	first, err := svc.IssueAnonymous(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := svc.IssueAnonymous(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if first.UserID == second.UserID {
		t.Fatalf("expected distinct user ids, got %q twice", first.UserID)
	}
	for _, id := range []model.Identity{first, second} {
		if !ident.ValidAnonymousID(id.UserID) {
			t.Fatalf("issued uid %q does not match the anonymous grammar", id.UserID)
		}
		if _, ok := ident.ParseUUID4(id.Token.String()); !ok {
			t.Fatalf("issued token %s is not a v4 uuid", id.Token)
		}
		if err := svc.VerifyPairing(ctx, id); err != nil {
			t.Fatalf("verify %s: %v", id.UserID, err)
		}
	}

	swapped := model.Identity{UserID: first.UserID, Token: second.Token}
	if err := svc.VerifyPairing(ctx, swapped); !errors.Is(err, apierror.InvalidCredential) {
		t.Fatalf("expected invalid credential for swapped token, got %v", err)
	}
}

func TestVerifyUnknownUser(t *testing.T) {
	svc := NewService(memory.New())
	err := svc.VerifyPairing(context.Background(), model.Identity{UserID: "a42", Token: uuid.New()})
	if !errors.Is(err, apierror.InvalidCredential) || !errors.Is(err, ident.ErrUnpaired) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
}

func TestServiceAsValidatorHook(t *testing.T) {
	svc := NewService(memory.New())
	ctx := context.Background()
	id, err := svc.IssueAnonymous(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	v, err := ident.NewValidator(ident.AnonymousStrategy{}, svc, true)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	got, err := v.Validate(ctx, ident.Cookies{ident.CookieUID: id.UserID, ident.CookieToken: id.Token.String()})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got != id {
		t.Fatalf("expected %+v, got %+v", id, got)
	}
	_, err = v.Validate(ctx, ident.Cookies{ident.CookieUID: id.UserID, ident.CookieToken: uuid.NewString()})
	if !errors.Is(err, apierror.InvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
}
