package authpw

import (
	"context"
	"errors"
	"testing"

	"movesethub/api/internal/store"
)

type fakeUserStore struct {
	usersByEmail map[string]store.User
	usersByID    map[string]store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		usersByEmail: map[string]store.User{},
		usersByID:    map[string]store.User{},
	}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	user, ok := f.usersByEmail[email]
	if !ok {
		return store.User{}, errors.New("not found")
	}
	return user, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	user, ok := f.usersByID[id]
	if !ok {
		return store.User{}, errors.New("not found")
	}
	return user, nil
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) (store.User, error) {
	f.usersByEmail[user.Email] = user
	f.usersByID[user.ID] = user
	return user, nil
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "avery@example.com",
		Password:    "correct-horse",
		DisplayName: "Avery",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.Role != "guest" {
		t.Fatalf("new accounts must start as guests, got %q", user.Role)
	}
	if user.PasswordHash == "correct-horse" {
		t.Fatal("password stored in the clear")
	}

	signedIn, err := svc.SignIn(ctx, SignInRequest{Email: "avery@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if signedIn.ID != user.ID {
		t.Fatalf("signed in as %q, want %q", signedIn.ID, user.ID)
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	req := SignUpRequest{Email: "avery@example.com", Password: "correct-horse", DisplayName: "Avery"}
	if _, err := svc.SignUp(ctx, req); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := svc.SignUp(ctx, req); err == nil {
		t.Fatal("expected duplicate email to be rejected")
	}
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "avery@example.com",
		Password:    "short",
		DisplayName: "Avery",
	})
	if err == nil {
		t.Fatal("expected short password to be rejected")
	}
}

func TestSignInRejectsWrongPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "avery@example.com",
		Password:    "correct-horse",
		DisplayName: "Avery",
	}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	if _, err := svc.SignIn(ctx, SignInRequest{Email: "avery@example.com", Password: "wrong"}); err == nil {
		t.Fatal("expected wrong password to be rejected")
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "unknown@example.com", Password: "correct-horse"}); err == nil {
		t.Fatal("expected unknown email to be rejected")
	}
}
