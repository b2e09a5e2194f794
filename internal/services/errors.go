package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrBusy                  = errors.New("busy")
	ErrInputNotFound         = errors.New("input not found")
	ErrSourceUnavailable     = errors.New("source unavailable")
	ErrToolExecution         = errors.New("tool execution failure")
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrProcessingFault       = errors.New("processing fault")
	ErrValidation            = errors.New("validation error")
	ErrConfiguration         = errors.New("configuration error")
)

// Kind is the stable, wire-visible name of an error marker.
type Kind string

const (
	KindNone                  Kind = ""
	KindBusy                  Kind = "busy"
	KindInputNotFound         Kind = "input_not_found"
	KindSourceUnavailable     Kind = "source_unavailable"
	KindToolExecution         Kind = "tool_execution_failure"
	KindCapabilityUnavailable Kind = "capability_unavailable"
	KindProcessingFault       Kind = "processing_fault"
	KindValidation            Kind = "validation"
	KindConfiguration         Kind = "configuration"
	KindInternal              Kind = "internal"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrProcessingFault
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its marker kind. Unmarked errors are internal.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrInputNotFound):
		return KindInputNotFound
	case errors.Is(err, ErrSourceUnavailable):
		return KindSourceUnavailable
	case errors.Is(err, ErrToolExecution):
		return KindToolExecution
	case errors.Is(err, ErrCapabilityUnavailable):
		return KindCapabilityUnavailable
	case errors.Is(err, ErrProcessingFault):
		return KindProcessingFault
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindInternal
	}
}

// HTTPStatus maps an error to the response code the API should return when
// the error is raised synchronously (submit, uploads, library actions).
func HTTPStatus(err error) int {
	switch Classify(err) {
	case KindNone:
		return http.StatusOK
	case KindBusy:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindInputNotFound:
		return http.StatusNotFound
	case KindCapabilityUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
