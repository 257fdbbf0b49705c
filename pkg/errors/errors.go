// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
//
// Codes are dotted paths ending in a reason segment ("handle.get.not_found").
// The reason segment drives the Is* classifiers below.
type Code string

const (
	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"
	CodeStoreConflict           Code = "store.conflict"
	CodeStoreInvalidInput       Code = "store.invalid_input"

	CodeGraphStoreFailure      Code = "graph.store.failure"
	CodeGraphNodeNotFound      Code = "graph.node.not_found"
	CodeGraphEdgeNotFound      Code = "graph.edge.not_found"
	CodeGraphNodeDeleteBlocked Code = "graph.node.delete.conflict"
	CodeGraphPatternInvalid    Code = "graph.pattern.invalid"

	CodeHandleNotFound         Code = "handle.get.not_found"
	CodeHandleDuplicate        Code = "handle.create.conflict"
	CodeHandleInvalid          Code = "handle.validate.invalid_input"
	CodeHandleConsistencyFault Code = "handle.consistency.fault"
	CodeHandleCompensation     Code = "handle.compensation.failure"

	CodeNodeTypeNotFound Code = "nodetype.get.not_found"
	CodeNodeTypeConflict Code = "nodetype.register.conflict"

	CodeGroupNotFound Code = "group.get.not_found"
	CodeUserNotFound  Code = "user.get.not_found"
	CodeUserConflict  Code = "user.create.conflict"

	CodeRelationIncompatible Code = "relation.connect.incompatible"
	CodeRelationCardinality  Code = "relation.connect.cardinality_violation"
	CodeRelationUnknownType  Code = "relation.rules.invalid"
	CodeRelationRulesInvalid Code = "relation.rules.invalid_format"

	CodeAuthzContextUnknown Code = "authz.context.unknown"
	CodeAuthzDenied         Code = "authz.action.denied"
	CodeAuthzInvalidInput   Code = "authz.request.invalid_input"

	CodeFreshnessInvalidInput Code = "freshness.reap.invalid_input"

	CodeSecretInvalidInput   Code = "secret.input.invalid"
	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretStoreFailure   Code = "secret.keyring.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeServerConfigInvalid Code = "server.config.invalid"
	CodeServerStartFailure  Code = "server.start.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"

	CodeInternalFailure Code = "internal.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldHandleID(value int64) Attr {
	return Field("handle_id", value)
}

func FieldNodeID(value string) Attr {
	return Field("node_id", value)
}

func FieldEdgeID(value string) Attr {
	return Field("edge_id", value)
}

func FieldContext(value string) Attr {
	return Field("context", value)
}

func FieldUserID(value string) Attr {
	return Field("user_id", value)
}

func FieldRelType(value string) Attr {
	return Field("rel_type", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

// CodeOf returns the deepest code in the chain, so wrapping a not-found
// error keeps it classified as not found.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

// IsConflict reports uniqueness violations, including DuplicateNodeError.
func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsConsistencyFault(err error) bool {
	return HasCode(err, CodeHandleConsistencyFault)
}

func IsIncompatible(err error) bool {
	return reason(CodeOf(err)) == "incompatible"
}

func IsCardinalityViolation(err error) bool {
	return reason(CodeOf(err)) == "cardinality_violation"
}

func IsUnknownContext(err error) bool {
	return HasCode(err, CodeAuthzContextUnknown)
}

func IsUnauthorized(err error) bool {
	r := reason(CodeOf(err))
	return r == "unauthorized" || r == "forbidden" || r == "denied"
}

// IsStoreFailure reports a failure of either underlying store. Callers may
// retry these after checking actual state; nothing else is retryable.
func IsStoreFailure(err error) bool {
	code := CodeOf(err)
	return code == CodeStoreDatabaseFailure || code == CodeGraphStoreFailure || code == CodeHandleCompensation
}

// HTTPStatus maps an error to the status a consuming HTTP layer should use.
func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err), IsIncompatible(err), IsCardinalityViolation(err), IsUnknownContext(err):
		return http.StatusBadRequest
	case IsUnauthorized(err):
		return http.StatusForbidden
	case IsConsistencyFault(err):
		return http.StatusInternalServerError
	case IsStoreFailure(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(CodeInternalFailure).Wrap(joined)
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
