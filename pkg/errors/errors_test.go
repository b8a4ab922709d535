package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"auth", Auth("fetch", errors.New("401")), KindAuth},
		{"not found", NotFound("fetch", nil), KindNotFound},
		{"validation wrapped", fmt.Errorf("学期 1: %w", Validation("exam", errors.New("bad"))), KindValidation},
		{"plain error", errors.New("connection reset"), KindTransient},
		{"sentinel", fmt.Errorf("x: %w", ErrAuth), KindAuth},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf 期望 %s, 实际 %s", tc.want, got)
			}
		})
	}
}

func TestErrorIsSentinel(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Auth("fetchFacultyList", errors.New("HTTP 401")))
	if !errors.Is(err, ErrAuth) {
		t.Error("Auth 错误应满足 errors.Is(ErrAuth)")
	}
	if errors.Is(err, ErrTransient) {
		t.Error("Auth 错误不应满足 errors.Is(ErrTransient)")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil 不应可重试")
	}
	if !IsRetryable(Transient("op", errors.New("503"))) {
		t.Error("临时性错误应可重试")
	}
	if IsRetryable(NotFound("op", nil)) {
		t.Error("NotFound 不应重试")
	}
	if IsRetryable(Auth("op", nil)) {
		t.Error("Auth 不应重试")
	}
}
