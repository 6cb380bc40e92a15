package errutil

import (
	"context"
	"errors"
	"net"
	"net/http"
)

type CoreStatus string

const (
	StatusUnknown             CoreStatus = "unknown"
	StatusBadRequest          CoreStatus = "bad_request"
	StatusUnauthorized        CoreStatus = "unauthorized"
	StatusNotFound            CoreStatus = "not_found"
	StatusConflict            CoreStatus = "conflict"
	StatusTooManyRequests     CoreStatus = "too_many_requests"
	StatusTimeout             CoreStatus = "timeout"
	StatusInternal            CoreStatus = "internal"
	StatusBadGateway          CoreStatus = "bad_gateway"
	StatusServiceUnavailable  CoreStatus = "service_unavailable"
	StatusInvariantViolation  CoreStatus = "invariant_violation"
	StatusClientClosedRequest CoreStatus = "client_closed_request"
)

// HTTPStatus maps the status onto the closest HTTP response code.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict, StatusInvariantViolation:
		return http.StatusConflict
	case StatusTooManyRequests:
		return http.StatusTooManyRequests
	case StatusTimeout:
		return http.StatusGatewayTimeout
	case StatusBadGateway:
		return http.StatusBadGateway
	case StatusServiceUnavailable:
		return http.StatusServiceUnavailable
	case StatusClientClosedRequest:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTP classifies an upstream HTTP response code.
func FromHTTP(code int) CoreStatus {
	switch {
	case code == http.StatusTooManyRequests:
		return StatusTooManyRequests
	case code == http.StatusNotFound:
		return StatusNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return StatusUnauthorized
	case code == http.StatusGatewayTimeout || code == http.StatusRequestTimeout:
		return StatusTimeout
	case code == http.StatusServiceUnavailable:
		return StatusServiceUnavailable
	case code >= 500:
		return StatusBadGateway
	case code >= 400:
		return StatusBadRequest
	default:
		return StatusUnknown
	}
}

// StatusOf returns the CoreStatus carried by err, or StatusUnknown.
func StatusOf(err error) CoreStatus {
	var coder interface{ Status() CoreStatus }
	if errors.As(err, &coder) {
		return coder.Status()
	}
	return StatusUnknown
}

// IsTransient reports whether err is worth retrying on a later attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	switch StatusOf(err) {
	case StatusTimeout, StatusTooManyRequests, StatusBadGateway, StatusServiceUnavailable:
		return true
	}
	return false
}
