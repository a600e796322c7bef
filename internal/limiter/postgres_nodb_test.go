package limiter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

/************ fake pgx ************/
type fakeRow struct{ scan func(dest ...any) error }

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakePool struct {
	qrErr         error
	qrBlockedTill *time.Time
	qrFailsRet    int

	lastExecSQL string
	execErr     error
}

func (f *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastExecSQL = sql
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	switch {

	case contains(sql, "SELECT blocked_until"):
		return fakeRow{scan: func(dest ...any) error {
			if f.qrErr != nil {
				return f.qrErr
			}

			if f.qrBlockedTill != nil {
				*(dest[0].(*time.Time)) = *f.qrBlockedTill
			} else {
				*(dest[0].(*time.Time)) = time.Time{} // 'epoch'
			}
			return nil
		}}

	case contains(sql, "RETURNING fail_count"):
		return fakeRow{scan: func(dest ...any) error {
			if f.qrErr != nil {
				return f.qrErr
			}
			*(dest[0].(*int)) = f.qrFailsRet
			return nil
		}}
	default:
		return fakeRow{scan: func(dest ...any) error { return errors.New("unexpected query") }}
	}
}

func contains(s, sub string) bool { return strings.Contains(s, sub) }

func settings(window time.Duration, maxFails int, blockFor time.Duration) Settings {
	return Settings{Window: window, MaxFails: maxFails, BlockFor: blockFor}
}

func TestAllow_NoRow_Allows(t *testing.T) {
	fp := &fakePool{qrErr: pgx.ErrNoRows}
	l := NewPG(fp, settings(15*time.Minute, 5, 15*time.Minute))

	ok, dur, err := l.Allow(context.Background(), "u", []byte("h"))
	if err != nil || !ok || dur != 0 {
		t.Fatalf("Allow no-row: ok=%v dur=%v err=%v", ok, dur, err)
	}
}

func TestAllow_BlockedUntilFuture(t *testing.T) {
	fut := time.Now().Add(10 * time.Minute)
	fp := &fakePool{qrBlockedTill: &fut}
	l := NewPG(fp, settings(15*time.Minute, 5, 15*time.Minute))

	ok, dur, err := l.Allow(context.Background(), "u", []byte("h"))
	if err != nil || ok || dur <= 0 {
		t.Fatalf("Allow blocked: ok=%v dur=%v err=%v", ok, dur, err)
	}
}

func TestAllow_PastOrEpoch_Allows(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	fp := &fakePool{qrBlockedTill: &past}
	l := NewPG(fp, settings(15*time.Minute, 5, 15*time.Minute))

	ok, dur, err := l.Allow(context.Background(), "u", []byte("h"))
	if err != nil || !ok || dur != 0 {
		t.Fatalf("Allow past: ok=%v dur=%v err=%v", ok, dur, err)
	}
}

func TestAllow_DBError_Propagates(t *testing.T) {
	fp := &fakePool{qrErr: errors.New("db boom")}
	l := NewPG(fp, settings(15*time.Minute, 5, 15*time.Minute))

	ok, _, err := l.Allow(context.Background(), "u", []byte("h"))
	if err == nil || ok {
		t.Fatalf("want error propagate, got ok=%v err=%v", ok, err)
	}
}

func TestSuccess_ExecError_Propagates(t *testing.T) {
	fp := &fakePool{execErr: errors.New("exec fail")}
	l := NewPG(fp, settings(15*time.Minute, 5, 15*time.Minute))

	if err := l.Success(context.Background(), "u", []byte("h")); err == nil {
		t.Fatalf("want exec error")
	}
}

func TestSuccess_OK(t *testing.T) {
	fp := &fakePool{}
	l := NewPG(fp, settings(15*time.Minute, 5, 15*time.Minute))

	if err := l.Success(context.Background(), "u", []byte("h")); err != nil {
		t.Fatalf("success err: %v", err)
	}
	if !contains(fp.lastExecSQL, "DELETE FROM auth_limiter") {
		t.Fatalf("unexpected exec: %s", fp.lastExecSQL)
	}
}

func TestFailure_Increments_NoBlock(t *testing.T) {
	fp := &fakePool{qrFailsRet: 2}
	l := NewPG(fp, settings(5*time.Minute, 5, 15*time.Minute))

	blocked, dur, err := l.Failure(context.Background(), "u", []byte("h"))
	if err != nil || blocked || dur != 0 {
		t.Fatalf("Failure no block: blocked=%v dur=%v err=%v", blocked, dur, err)
	}
}

func TestFailure_BlocksAtThreshold(t *testing.T) {
	fp := &fakePool{qrFailsRet: 5}
	l := NewPG(fp, settings(5*time.Minute, 5, 10*time.Minute))

	blocked, dur, err := l.Failure(context.Background(), "u", []byte("h"))
	if err != nil || !blocked || dur != 10*time.Minute {
		t.Fatalf("Failure block: blocked=%v dur=%v err=%v", blocked, dur, err)
	}
	if !contains(fp.lastExecSQL, "UPDATE auth_limiter SET blocked_until") {
		t.Fatalf("must update blocked_until, exec=%s", fp.lastExecSQL)
	}
}

func TestFailure_DBErrorOnReturning(t *testing.T) {
	fp := &fakePool{qrErr: errors.New("query error")}
	l := NewPG(fp, settings(5*time.Minute, 5, 10*time.Minute))

	if _, _, err := l.Failure(context.Background(), "u", []byte("h")); err == nil {
		t.Fatalf("want error from returning fail_count")
	}
}

func TestHashIP_Determinism(t *testing.T) {
	a := HashIP("1.2.3.4:123")
	b := HashIP("1.2.3.4:123")
	c := HashIP("5.6.7.8:321")
	if string(a) != string(b) || string(a) == string(c) || len(a) != 32 {
		t.Fatalf("hash mismatch/len: %d", len(a))
	}
}

func TestAllow_RetryAfterUsesClock(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(3 * time.Minute)
	fp := &fakePool{qrBlockedTill: &until}
	l := NewPG(fp, settings(time.Minute, 3, time.Minute))
	l.now = func() time.Time { return now }

	ok, dur, err := l.Allow(context.Background(), "u", []byte("h"))
	if err != nil || ok || dur != 3*time.Minute {
		t.Fatalf("Allow: ok=%v dur=%v err=%v", ok, dur, err)
	}
}

func TestMemory_BlockAndReset(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(settings(5*time.Minute, 3, 10*time.Minute))
	m.now = func() time.Time { return now }
	ctx := context.Background()
	ip := HashIP("1.2.3.4")

	for i := 0; i < 2; i++ {
		if blocked, _, _ := m.Failure(ctx, "a@x.io", ip); blocked {
			t.Fatalf("blocked too early at %d", i)
		}
	}
	blocked, dur, _ := m.Failure(ctx, "a@x.io", ip)
	if !blocked || dur != 10*time.Minute {
		t.Fatalf("want block, got %v %v", blocked, dur)
	}
	if ok, _, _ := m.Allow(ctx, "a@x.io", ip); ok {
		t.Fatalf("want denied while blocked")
	}
	if ok, _, _ := m.Allow(ctx, "b@x.io", ip); !ok {
		t.Fatalf("other email must not be blocked")
	}

	now = now.Add(11 * time.Minute)
	if ok, _, _ := m.Allow(ctx, "a@x.io", ip); !ok {
		t.Fatalf("block must expire")
	}
	_ = m.Success(ctx, "a@x.io", ip)
	if blocked, _, _ := m.Failure(ctx, "a@x.io", ip); blocked {
		t.Fatalf("success must reset counter")
	}
}

func TestMemory_WindowExpiresFailures(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(settings(time.Minute, 2, time.Hour))
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, _, _ = m.Failure(ctx, "a@x.io", nil)
	now = now.Add(2 * time.Minute)
	if blocked, _, _ := m.Failure(ctx, "a@x.io", nil); blocked {
		t.Fatalf("stale failure must not count")
	}
}
