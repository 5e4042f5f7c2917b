package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "resource not found"},
			want: "resource not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to process",
				Cause:   errors.New("underlying error"),
			},
			want: "failed to process: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{Code: ErrCodeInternal, Message: "wrapped error", Cause: cause}

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(AppError, cause) = false")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
		is   func(error) bool
	}{
		{"not found", NotFound("x"), ErrCodeNotFound, IsNotFound},
		{"not foundf", NotFoundf("user %s", "u1"), ErrCodeNotFound, IsNotFound},
		{"conflict", Conflict("x"), ErrCodeConflict, IsConflict},
		{"validation", Validation("x"), ErrCodeValidation, IsValidation},
		{"validationf", Validationf("bad %d", 1), ErrCodeValidation, IsValidation},
		{"internal", Internal("x"), ErrCodeInternal, IsInternal},
		{"unauthenticated", Unauthenticated("x"), ErrCodeUnauthenticated, IsUnauthenticated},
		{"forbidden", Forbidden("x"), ErrCodeForbidden, IsForbidden},
		{"rate limited", RateLimited("x"), ErrCodeRateLimited, IsRateLimited},
		{"unavailable", Unavailable(errors.New("dial"), "x"), ErrCodeUnavailable, IsUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
			if !tt.is(tt.err) {
				t.Errorf("predicate returned false for %v", tt.err)
			}
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !tt.is(wrapped) {
				t.Errorf("predicate returned false for wrapped %v", wrapped)
			}
		})
	}

	if NotFoundf("user %s", "u1").Message != "user u1" {
		t.Errorf("NotFoundf did not format message")
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("email", "invalid email")
	if GetField(err) != "email" || !IsValidation(err) {
		t.Errorf("ValidationField() = %+v", err)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Errorf("Wrap(nil) should return nil")
	}

	cause := context.DeadlineExceeded
	err := Wrapf(cause, ErrCodeUnavailable, "find session %s", "abc")
	if !IsUnavailable(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wrapf() = %v", err)
	}
	if err.Message != "find session abc" {
		t.Errorf("Wrapf() message = %q", err.Message)
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(errors.New("plain")) != "" {
		t.Errorf("GetCode(plain) should be empty")
	}
	if GetCode(nil) != "" {
		t.Errorf("GetCode(nil) should be empty")
	}
	outer := Unavailable(Validation("inner"), "outer")
	if GetCode(outer) != ErrCodeUnavailable {
		t.Errorf("GetCode should report the outermost code, got %v", GetCode(outer))
	}
	if IsValidation(outer) {
		t.Errorf("predicates match the outermost AppError only")
	}
}
