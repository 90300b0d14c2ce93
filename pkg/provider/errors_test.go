package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	withHotel := &Error{
		HotelID:    "h1",
		StatusCode: 500,
		Class:      ErrorClassServer,
		Message:    "500 Internal Server Error",
	}
	want := "provider server error for hotel h1 (status 500): 500 Internal Server Error"
	if got := withHotel.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	withoutHotel := &Error{
		StatusCode: 429,
		Class:      ErrorClassClient,
		Message:    "429 Too Many Requests",
	}
	want = "provider client error (status 429): 429 Too Many Requests"
	if got := withoutHotel.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := fmt.Errorf("fetch details: %w", &Error{
		Class:   ErrorClassNetwork,
		Message: inner.Error(),
		Err:     inner,
	})

	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatal("errors.As failed to find *Error")
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is failed to reach wrapped error")
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassClient},
		{500, ErrorClassServer},
		{502, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.expected {
			t.Errorf("classifyStatus(%d) = %s, want %s", tt.status, got, tt.expected)
		}
	}
}

func TestClassifyErr(t *testing.T) {
	if got := classifyErr(context.DeadlineExceeded); got != ErrorClassTimeout {
		t.Errorf("classifyErr(DeadlineExceeded) = %s, want timeout", got)
	}
	if got := classifyErr(errors.New("connection refused")); got != ErrorClassNetwork {
		t.Errorf("classifyErr(generic) = %s, want network", got)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected bool
	}{
		{ErrorClassClient, false},
		{ErrorClassServer, true},
		{ErrorClassNetwork, true},
		{ErrorClassTimeout, true},
	}

	for _, tt := range tests {
		if got := shouldRetry(tt.class); got != tt.expected {
			t.Errorf("shouldRetry(%s) = %v, want %v", tt.class, got, tt.expected)
		}
	}
}
