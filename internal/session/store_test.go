package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/capmis/capmis-console/internal/capmis"
)

type fakeAuthAPI struct {
	loginCalls   int
	profileCalls int
	session      *capmis.Session
	profile      *capmis.User
	profileErr   error
}

func (f *fakeAuthAPI) Login(ctx context.Context, email, password string) (*capmis.Session, error) {
	f.loginCalls++
	if f.session == nil {
		return nil, &capmis.Error{Kind: capmis.KindServerStatus, Status: 401, Message: "invalid credentials"}
	}
	return f.session, nil
}

func (f *fakeAuthAPI) Register(ctx context.Context, in capmis.RegisterInput) (*capmis.Session, error) {
	f.loginCalls++
	return f.session, nil
}

func (f *fakeAuthAPI) Logout(ctx context.Context) error { return nil }

func (f *fakeAuthAPI) GetProfile(ctx context.Context) (*capmis.User, error) {
	f.profileCalls++
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func testSession() *capmis.Session {
	return &capmis.Session{
		User:  capmis.User{ID: 1, Email: "admin@school.cm", FirstName: "Ada"},
		Token: "tok-abc",
	}
}

func TestLoginRejectsBadEmailBeforeNetwork(t *testing.T) {
	api := &fakeAuthAPI{session: testSession()}
	store := New(api, NewMemoryBackend(), zap.NewNop())

	for _, email := range []string{"", "not-an-email", "a@b", "has space@x.com"} {
		_, err := store.Login(context.Background(), email, "secret")
		if capmis.KindOf(err) != capmis.KindValidation {
			t.Fatalf("email %q: expected validation error, got %v", email, err)
		}
	}
	if api.loginCalls != 0 {
		t.Fatalf("backend was called %d times for invalid input", api.loginCalls)
	}
}

func TestLoginPersistsToken(t *testing.T) {
	api := &fakeAuthAPI{session: testSession()}
	storage := NewMemoryBackend()
	store := New(api, storage, zap.NewNop())

	user, err := store.Login(context.Background(), "admin@school.cm", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if user.Email != "admin@school.cm" {
		t.Fatalf("unexpected profile %+v", user)
	}
	if tok, _ := storage.Load(TokenKey); tok != "tok-abc" {
		t.Fatalf("token not persisted, got %q", tok)
	}
	if !store.LoggedIn() {
		t.Fatal("store should be logged in")
	}
}

func TestResumeClearsTokenOnProfileFailure(t *testing.T) {
	api := &fakeAuthAPI{profileErr: errors.New("401")}
	storage := NewMemoryBackend()
	if err := storage.Save(TokenKey, "stale-token"); err != nil {
		t.Fatal(err)
	}
	store := New(api, storage, zap.NewNop())

	if err := store.Resume(context.Background()); err == nil {
		t.Fatal("expected resume to surface the profile error")
	}
	if store.LoggedIn() {
		t.Fatal("store must not stay logged in after profile failure")
	}
	if store.Token() != "" {
		t.Fatal("in-memory token not cleared")
	}
	if _, err := storage.Load(TokenKey); !errors.Is(err, ErrNotFound) {
		t.Fatal("stored token not deleted")
	}
}

func TestResumeDiscardsExpiredToken(t *testing.T) {
	api := &fakeAuthAPI{profile: &capmis.User{ID: 1}}
	storage := NewMemoryBackend()
	if err := storage.Save(TokenKey, makeJWT(t, time.Now().Add(-time.Hour))); err != nil {
		t.Fatal(err)
	}
	store := New(api, storage, zap.NewNop())

	if err := store.Resume(context.Background()); err != nil {
		t.Fatal(err)
	}
	if api.profileCalls != 0 {
		t.Fatal("expired token must not hit the backend")
	}
	if store.LoggedIn() {
		t.Fatal("expired token must not resume a session")
	}
}

func TestResumeAcceptsOpaqueToken(t *testing.T) {
	api := &fakeAuthAPI{profile: &capmis.User{ID: 1, Email: "admin@school.cm"}}
	storage := NewMemoryBackend()
	if err := storage.Save(TokenKey, "opaque-server-token"); err != nil {
		t.Fatal(err)
	}
	store := New(api, storage, zap.NewNop())

	if err := store.Resume(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !store.LoggedIn() {
		t.Fatal("opaque token should resume via profile fetch")
	}
}

type brokenBackend struct{}

func (brokenBackend) Name() string                { return "broken" }
func (brokenBackend) Load(string) (string, error) { return "", errors.New("io error") }
func (brokenBackend) Save(string, string) error   { return errors.New("io error") }
func (brokenBackend) Delete(string) error         { return errors.New("io error") }

func TestSelectBackendFallsThrough(t *testing.T) {
	mem := NewMemoryBackend()
	got := SelectBackend(zap.NewNop(), brokenBackend{}, mem)
	if got != StorageBackend(mem) {
		t.Fatalf("expected memory backend, got %s", got.Name())
	}

	got = SelectBackend(zap.NewNop(), brokenBackend{})
	if got.Name() != "memory" {
		t.Fatalf("expected memory last resort, got %s", got.Name())
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	f := NewFileBackend(t.TempDir())
	if err := f.Save(TokenKey, "tok"); err != nil {
		t.Fatal(err)
	}
	v, err := f.Load(TokenKey)
	if err != nil || v != "tok" {
		t.Fatalf("load = %q, %v", v, err)
	}
	if err := f.Delete(TokenKey); err != nil {
		t.Fatal(err)
	}
	if err := f.Delete(TokenKey); err != nil {
		t.Fatalf("deleting a missing key must be a no-op, got %v", err)
	}
}

// makeJWT builds an unsigned token with the given exp; the store only reads
// claims, it never verifies.
func makeJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	enc := func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		return base64.RawURLEncoding.EncodeToString(b)
	}
	header := enc(map[string]string{"alg": "none", "typ": "JWT"})
	claims := enc(map[string]int64{"exp": exp.Unix()})
	return fmt.Sprintf("%s.%s.", header, claims)
}
