package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ipocket/ipocket/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "ipocket.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background(), "auth", Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	users := NewUserStore(db.DB())
	tokens := NewTokenService([]byte("test-secret"), time.Hour)
	return NewService(users, tokens, zap.NewNop())
}

func TestService_LoginAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.CreateUser(ctx, "alice", "password123", RoleEditor); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	result, err := svc.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.TokenType != "bearer" {
		t.Errorf("TokenType = %q, want bearer", result.TokenType)
	}
	if result.User.Username != "alice" {
		t.Errorf("User.Username = %q, want alice", result.User.Username)
	}

	user, err := svc.Authenticate(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.ID != result.User.ID {
		t.Errorf("authenticated user id = %d, want %d", user.ID, result.User.ID)
	}
	if user.Role != RoleEditor {
		t.Errorf("authenticated role = %q, want %q", user.Role, RoleEditor)
	}
}

func TestService_LoginRejections(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.CreateUser(ctx, "alice", "password123", RoleViewer)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: err = %v, want ErrInvalidCredentials", err)
	}

	if err := svc.Store().SetUserActive(ctx, user.ID, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("inactive user: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestService_LogoutRevokesSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.CreateUser(ctx, "alice", "password123", RoleViewer); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	result, err := svc.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.Logout(ctx, result.AccessToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, result.AccessToken); err == nil {
		t.Fatal("expected authentication to fail after logout")
	}

	// Logging out with an unknown or malformed token is not an error.
	if err := svc.Logout(ctx, "not-a-token"); err != nil {
		t.Errorf("Logout with garbage token: %v", err)
	}
}

func TestService_ChangePasswordRevokesSessions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.CreateUser(ctx, "alice", "password123", RoleViewer)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	result, err := svc.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "new-password-456"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := svc.Authenticate(ctx, result.AccessToken); err == nil {
		t.Fatal("expected existing sessions to be revoked after a password change")
	}
	if _, err := svc.Login(ctx, "alice", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password still accepted: err = %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "new-password-456"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestService_DisablingUserRevokesSessions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.CreateUser(ctx, "alice", "password123", RoleEditor)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	result, err := svc.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.Store().SetUserActive(ctx, user.ID, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	if _, err := svc.Authenticate(ctx, result.AccessToken); err == nil {
		t.Fatal("expected authentication to fail for a disabled user")
	}
}

func TestService_CreateUserValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.CreateUser(ctx, "", "password123", RoleViewer); err == nil {
		t.Error("expected error for an empty username")
	}
	if _, err := svc.CreateUser(ctx, "alice", "short", RoleViewer); err == nil {
		t.Error("expected error for a too-short password")
	}
	if _, err := svc.CreateUser(ctx, "alice", "password123", RoleViewer); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := svc.CreateUser(ctx, "alice", "password456", RoleViewer); err == nil {
		t.Error("expected error for a duplicate username")
	}
}

func TestService_Bootstrap(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if err := svc.Bootstrap(ctx, "admin", "bootstrap-pw"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	admin, err := svc.Store().GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if admin == nil {
		t.Fatal("bootstrap admin was not created")
	}
	if admin.Role != RoleAdmin {
		t.Errorf("bootstrap role = %q, want %q", admin.Role, RoleAdmin)
	}

	// A second bootstrap against a non-empty user table is a no-op.
	if err := svc.Bootstrap(ctx, "admin2", "another-pw"); err != nil {
		t.Fatalf("Bootstrap (second): %v", err)
	}
	other, err := svc.Store().GetUserByUsername(ctx, "admin2")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if other != nil {
		t.Error("second bootstrap should not create a user")
	}
}
