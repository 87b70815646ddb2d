package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a stable, machine-parseable error code. Frontends switch on the
// code; the message is free text for humans.
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeValidation         Code = "validation_error"
	CodeCycleDetected      Code = "cycle_detected"
	CodeInvalidTransition  Code = "invalid_transition"
	CodeAcceptanceCriteria Code = "acceptance_criteria_unmet"
	CodeStorageFault       Code = "storage_fault"
)

// Error is the failure half of the engine's result envelope. Every business
// rule violation is reported through one of these; storage problems are
// wrapped with CodeStorageFault and keep the underlying error in Cause.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// AsEngineError extracts the typed error from an error chain, if present.
func AsEngineError(err error) (*Error, bool) {
	var ee *Error
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

func notFoundErr(kind, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

func validationErr(msg string, details map[string]any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

func cycleErr(path []string) *Error {
	return &Error{
		Code:    CodeCycleDetected,
		Message: "dependency would create a cycle: " + strings.Join(path, " -> "),
		Details: map[string]any{"cycle": path},
	}
}

func transitionErr(entity, from, to string) *Error {
	return &Error{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("invalid %s status transition %s -> %s", entity, from, to),
		Details: map[string]any{"from": from, "to": to},
	}
}

func criteriaUnmetErr(taskID string, ids, contents []string) *Error {
	return &Error{
		Code:    CodeAcceptanceCriteria,
		Message: fmt.Sprintf("cannot complete task %s: %d acceptance criteria not met", taskID, len(ids)),
		Details: map[string]any{
			"task_id":             taskID,
			"unmet_criterion_ids": ids,
			"unmet_criteria":      contents,
		},
	}
}

func storageErr(op string, err error) *Error {
	return &Error{
		Code:    CodeStorageFault,
		Message: op + " failed",
		Cause:   err,
	}
}
