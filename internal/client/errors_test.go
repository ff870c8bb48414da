package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
)

func TestIsConflict(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"409 status", &APIError{Status: http.StatusConflict, Message: "duplicate"}, true},
		{"message match", &APIError{Status: http.StatusUnprocessableEntity, Message: "entity already exists"}, true},
		{"wrapped", fmt.Errorf("create: %w", &APIError{Status: http.StatusConflict}), true},
		{"plain 400", &APIError{Status: http.StatusBadRequest, Message: "bad field"}, false},
		{"non-api error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsConflict(tc.err); got != tc.want {
				t.Errorf("IsConflict(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsClientError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"400", &APIError{Status: http.StatusBadRequest}, true},
		{"404", &APIError{Status: http.StatusNotFound}, true},
		{"409 excluded", &APIError{Status: http.StatusConflict}, false},
		{"408 excluded", &APIError{Status: http.StatusRequestTimeout}, false},
		{"429 excluded", &APIError{Status: http.StatusTooManyRequests}, false},
		{"500", &APIError{Status: http.StatusInternalServerError}, false},
		{"non-api error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsClientError(tc.err); got != tc.want {
				t.Errorf("IsClientError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"500", &APIError{Status: http.StatusInternalServerError}, true},
		{"503", &APIError{Status: http.StatusServiceUnavailable}, true},
		{"429", &APIError{Status: http.StatusTooManyRequests}, true},
		{"408", &APIError{Status: http.StatusRequestTimeout}, true},
		{"400", &APIError{Status: http.StatusBadRequest}, false},
		{"409", &APIError{Status: http.StatusConflict}, false},
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("connection refused")}, true},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestAPIErrorString(t *testing.T) {
	err := &APIError{Status: 422, Code: "0007", Message: "invalid alias"}
	want := "api error 422 (0007): invalid alias"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
