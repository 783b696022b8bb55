package ai

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExtractAPIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           error
		wantNil       bool
		wantPermanent bool
	}{
		{"nil", nil, true, false},
		{"unrelated", errors.New("connection reset"), true, false},
		{"rate limit text", errors.New(`POST "/chat/completions": 429 Too Many Requests {"message":"slow down","type":"requests","code":"rate_limit_exceeded"}`), false, false},
		{"quota text", errors.New(`429 {"message":"You exceeded your quota","type":"insufficient_quota","code":"insufficient_quota"}`), false, true},
		{"already extracted", fmt.Errorf("failed to classify_input: %w", &APIError{StatusCode: 429, Type: "rate_limit_error"}), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractAPIError(tt.err)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Expected APIError, got nil")
			}
			if got.IsPermanent != tt.wantPermanent {
				t.Errorf("Expected permanent=%v, got %v", tt.wantPermanent, got.IsPermanent)
			}
		})
	}
}

func TestIsRateLimitAndQuota(t *testing.T) {
	t.Parallel()

	rate := fmt.Errorf("failed to split_task: %w", &APIError{StatusCode: 429})
	quota := fmt.Errorf("failed to split_task: %w", &APIError{StatusCode: 429, IsPermanent: true, Code: "insufficient_quota"})

	if !IsRateLimitError(rate) {
		t.Error("Expected rate limit error")
	}
	if IsQuotaError(rate) {
		t.Error("Expected rate limit not to be a quota error")
	}
	if IsRateLimitError(quota) {
		t.Error("Expected quota error not to be a rate limit error")
	}
	if !IsQuotaError(quota) {
		t.Error("Expected quota error")
	}
	if IsRateLimitError(nil) || IsQuotaError(nil) {
		t.Error("Expected nil to be neither")
	}
}

func TestGetRetryDelay(t *testing.T) {
	t.Parallel()

	rate := &APIError{StatusCode: 429}
	quota := &APIError{StatusCode: 429, IsPermanent: true}
	other := errors.New("boom")

	tests := []struct {
		name    string
		err     error
		attempt int
		want    time.Duration
	}{
		{"rate first", rate, 0, 60 * time.Second},
		{"rate capped", rate, 8, 15 * time.Minute},
		{"quota first", quota, 0, time.Hour},
		{"quota capped", quota, 9, 24 * time.Hour},
		{"default first", other, 0, 5 * time.Second},
		{"default second", other, 1, 10 * time.Second},
		{"default capped", other, 40, 5 * time.Minute},
		{"negative attempt", other, -3, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := GetRetryDelay(tt.err, tt.attempt); got != tt.want {
				t.Errorf("GetRetryDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAPIError_Is(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("failed to synthesize_schedule: %w", &APIError{StatusCode: 429, Code: "rate_limit_exceeded"})
	if !errors.Is(wrapped, ErrRateLimited) {
		t.Error("Expected wrapped 429 to match ErrRateLimited")
	}
	if errors.Is(wrapped, ErrQuotaExceeded) {
		t.Error("Expected wrapped 429 not to match ErrQuotaExceeded")
	}

	quota := ExtractAPIError(errors.New(`429 {"message":"billing","type":"insufficient_quota","code":"insufficient_quota"}`))
	if !errors.Is(quota, ErrQuotaExceeded) || errors.Is(quota, ErrRateLimited) {
		t.Errorf("Expected quota error to match only ErrQuotaExceeded, got %+v", quota)
	}
	if quota.RetryAfter == nil || *quota.RetryAfter != time.Hour {
		t.Errorf("Expected one hour retry-after, got %v", quota.RetryAfter)
	}
}
