package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/expense-keeper/internal/auth"
	pkgcrypto "github.com/and161185/expense-keeper/internal/crypto"
	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/limiter"
	"github.com/and161185/expense-keeper/internal/model"
	"github.com/and161185/expense-keeper/internal/repository"
	"github.com/gofrs/uuid/v5"
)

var testHasher = pkgcrypto.NewHasher(pkgcrypto.Argon2Params{Time: 1, Memory: 1024})

type fakeUsers struct {
	byEmail map[string]*model.User

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byEmail == nil {
		f.byEmail = map[string]*model.User{}
	}
	if _, exists := f.byEmail[u.Email]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byEmail[u.Email] = &cpy
	return nil
}
func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}
func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

func newAuth(users *fakeUsers, ttl time.Duration, lim limiter.Limiter) (*AuthServiceImpl, *auth.Manager) {
	tm := auth.NewManager([]byte("secret"), ttl)
	return NewAuthService(users, tm, testHasher, lim), tm
}

func TestAuth_Register_Basics(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{}
	s, _ := newAuth(users, time.Minute, &fakeLimiter{})

	if _, err := s.Register(context.Background(), "", "pwd"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("want validation error on empty email, got %v", err)
	}
	if _, err := s.Register(context.Background(), "not-an-email", "pwd"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("want validation error on bad email, got %v", err)
	}
	if _, err := s.Register(context.Background(), "a@x.io", ""); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("want validation error on empty password, got %v", err)
	}

	id, err := s.Register(context.Background(), " Alice@X.io ", "pwd")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id == "" {
		t.Fatalf("empty user id")
	}
	if _, ok := users.byEmail["alice@x.io"]; !ok {
		t.Fatalf("email not normalized: %v", users.byEmail)
	}

	if _, err := s.Register(context.Background(), "alice@x.io", "pwd2"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists on duplicate email, got %v", err)
	}

	users.createErr = errors.New("boom")
	if _, err := s.Register(context.Background(), "bob@x.io", "pwd"); err == nil {
		t.Fatalf("want propagated repo error")
	}
}

func TestAuth_LoginWithIP_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()

	pw := []byte("correct")
	hash, salt, err := testHasher.New(pw)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "alice@x.io", SaltAuth: salt, PwdHash: hash}

	users := &fakeUsers{byEmail: map[string]*model.User{"alice@x.io": u}}
	lim := &fakeLimiter{allowOK: true}
	s, tm := newAuth(users, 2*time.Minute, lim)

	lim.allowErr = errors.New("lim-err")
	if _, _, err := s.LoginWithIP(context.Background(), "alice@x.io", "correct", "1.2.3.4"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	lim.allowErr = nil

	lim.allowOK = false
	if _, _, err := s.LoginWithIP(context.Background(), "alice@x.io", "correct", "1.2.3.4"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	lim.allowOK = true

	if _, _, err := s.LoginWithIP(context.Background(), "nope@x.io", "x", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on missing user, got %v", err)
	}

	lim.failBlocked = true
	if _, _, err := s.LoginWithIP(context.Background(), "alice@x.io", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited on blocked after failure, got %v", err)
	}

	lim.failBlocked = false
	if _, _, err := s.LoginWithIP(context.Background(), "alice@x.io", "wrong", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong password, got %v", err)
	}

	tok, gotUser, err := s.LoginWithIP(context.Background(), "ALICE@x.io", "correct", "127.0.0.1:123")
	if err != nil {
		t.Fatalf("LoginWithIP success: %v", err)
	}
	if tok.AccessToken == "" || tok.ExpiresAt.Before(time.Now()) {
		t.Fatalf("bad token: %+v", tok)
	}
	if gotUser.ID != u.ID {
		t.Fatalf("bad user returned: %+v", gotUser)
	}
	if lim.successCalls == 0 {
		t.Fatalf("expected Success() to be called")
	}

	caller, err := tm.Verify(tok.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if caller.UID != u.ID.String() || caller.Email != "alice@x.io" {
		t.Fatalf("token identity: %+v", caller)
	}
}
