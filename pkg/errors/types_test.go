package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeGatewayRead, "snapshot fetch failed")

	if err.Code != ErrCodeGatewayRead {
		t.Errorf("Code = %q, want %q", err.Code, ErrCodeGatewayRead)
	}
	if !strings.Contains(err.Error(), "GATEWAY_READ") {
		t.Errorf("Error() = %q, missing code", err.Error())
	}
	if err.IsRetryable() {
		t.Error("new error should not be retryable by default")
	}
}

func TestWrap(t *testing.T) {
	underlying := stderrors.New("connection refused")
	err := Wrap(underlying, ErrCodeGatewayWrite, "write dropped").
		WithContext("action", "updateLog").
		WithRetryable(true)

	if !stderrors.Is(err, underlying) {
		t.Error("errors.Is should find the underlying error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q, missing underlying message", err.Error())
	}
	if !strings.Contains(err.Error(), "action: updateLog") {
		t.Errorf("Error() = %q, missing context", err.Error())
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable = false, want true")
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, ErrCodeInternal, "whatever"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestIsCode(t *testing.T) {
	err := New(ErrCodeTicketNotFound, "no such ticket")

	if !IsCode(err, ErrCodeTicketNotFound) {
		t.Error("IsCode should match")
	}
	if IsCode(err, ErrCodeToolNotFound) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(stderrors.New("plain"), ErrCodeTicketNotFound) {
		t.Error("IsCode should be false for plain errors")
	}
	if IsCode(nil, ErrCodeTicketNotFound) {
		t.Error("IsCode should be false for nil")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeModelTimeout, "slow")); got != ErrCodeModelTimeout {
		t.Errorf("GetCode = %q, want %q", got, ErrCodeModelTimeout)
	}
	if got := GetCode(stderrors.New("plain")); got != ErrCodeInternal {
		t.Errorf("GetCode(plain) = %q, want %q", got, ErrCodeInternal)
	}
	if got := GetCode(nil); got != "" {
		t.Errorf("GetCode(nil) = %q, want empty", got)
	}
}
