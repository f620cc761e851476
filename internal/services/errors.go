package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks a failure caused by a job id absent from the store.
	ErrNotFound = errors.New("not found")
	// ErrUnknownAction marks a message whose action the pipeline does not
	// recognize. Such a message can never succeed on retry, so the consumer
	// acknowledges it instead of requesting redelivery.
	ErrUnknownAction = errors.New("unknown action")
	// ErrUpstream marks a failure reported by an external vendor API.
	ErrUpstream = errors.New("upstream error")
	// ErrTimeout marks a bounded wait that expired.
	ErrTimeout = errors.New("timeout")
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation error")
	// ErrTransient marks failures with no better classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retriable reports whether redelivering the originating message could
// plausibly change the outcome. Unknown actions are the one failure class
// where redelivery is guaranteed useless.
func Retriable(err error) bool {
	return !errors.Is(err, ErrUnknownAction)
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
