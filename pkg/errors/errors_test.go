// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	nlerr "github.com/noclook/noclook/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := nlerr.New(
		nlerr.CodeHandleNotFound,
		"handle missing",
		nlerr.FieldHandleID(42),
		nlerr.Field("type", "Router"),
	)

	require.Error(t, err)
	assert.Equal(t, nlerr.CodeHandleNotFound, nlerr.CodeOf(err))
	assert.True(t, nlerr.HasCode(err, nlerr.CodeHandleNotFound))

	fields := nlerr.FieldsOf(err)
	assert.Equal(t, int64(42), fields["handle_id"])
	assert.Equal(t, "Router", fields["type"])
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := nlerr.Errorf(nlerr.CodeStoreDatabaseFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, nlerr.CodeStoreDatabaseFailure, nlerr.CodeOf(err))
	assert.Contains(t, err.Error(), "write failed")
}

// ---------------------------------------------------------------------------
// Wrap / With
// ---------------------------------------------------------------------------

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("row missing")
	err := nlerr.Wrap(root, nlerr.CodeHandleNotFound, "loading handle", nlerr.FieldHandleID(7))

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.True(t, nlerr.IsNotFound(err))
	assert.Equal(t, int64(7), nlerr.FieldsOf(err)["handle_id"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, nlerr.Wrap(nil, nlerr.CodeInternalFailure, "ignored"))
	assert.NoError(t, nlerr.Wrapf(nil, nlerr.CodeInternalFailure, "ignored %s", "arg"))
	assert.NoError(t, nlerr.With(nil, nlerr.FieldContext("network")))
}

func TestWithOnPlainErrorDefaultsToInternalCode(t *testing.T) {
	enriched := nlerr.With(stderrors.New("something broke"), nlerr.FieldUserID("u-1"))

	require.Error(t, enriched)
	assert.Equal(t, nlerr.CodeInternalFailure, nlerr.CodeOf(enriched))
	assert.Equal(t, "u-1", nlerr.FieldsOf(enriched)["user_id"])
}

func TestCodeOfReturnsInnermostCodedError(t *testing.T) {
	inner := nlerr.New(nlerr.CodeGraphNodeNotFound, "node gone")
	outer := nlerr.Wrap(inner, nlerr.CodeGraphStoreFailure, "reading node")

	assert.Equal(t, nlerr.CodeGraphNodeNotFound, nlerr.CodeOf(outer))
	assert.True(t, nlerr.IsNotFound(outer))
}

func TestErrorIsWithWrappedChain(t *testing.T) {
	sentinel := stderrors.New("root cause")
	outer := nlerr.Wrap(fmt.Errorf("mid: %w", sentinel), nlerr.CodeInternalFailure, "handler")

	assert.ErrorIs(t, outer, sentinel)
}

// ---------------------------------------------------------------------------
// Classification helpers
// ---------------------------------------------------------------------------

func TestClassificationAndStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		code   nlerr.Code
		status int
		check  func(error) bool
	}{
		{name: "handle not found", code: nlerr.CodeHandleNotFound, status: 404, check: nlerr.IsNotFound},
		{name: "node not found", code: nlerr.CodeGraphNodeNotFound, status: 404, check: nlerr.IsNotFound},
		{name: "duplicate node", code: nlerr.CodeHandleDuplicate, status: 409, check: nlerr.IsConflict},
		{name: "store conflict", code: nlerr.CodeStoreConflict, status: 409, check: nlerr.IsConflict},
		{name: "invalid handle", code: nlerr.CodeHandleInvalid, status: 400, check: nlerr.IsInvalidInput},
		{name: "incompatible", code: nlerr.CodeRelationIncompatible, status: 400, check: nlerr.IsIncompatible},
		{name: "cardinality", code: nlerr.CodeRelationCardinality, status: 400, check: nlerr.IsCardinalityViolation},
		{name: "unknown context", code: nlerr.CodeAuthzContextUnknown, status: 400, check: nlerr.IsUnknownContext},
		{name: "denied", code: nlerr.CodeAuthzDenied, status: 403, check: nlerr.IsUnauthorized},
		{name: "consistency fault", code: nlerr.CodeHandleConsistencyFault, status: 500, check: nlerr.IsConsistencyFault},
		{name: "relational failure", code: nlerr.CodeStoreDatabaseFailure, status: 503, check: nlerr.IsStoreFailure},
		{name: "graph failure", code: nlerr.CodeGraphStoreFailure, status: 503, check: nlerr.IsStoreFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := nlerr.New(tt.code, "boom")
			assert.Equal(t, tt.status, nlerr.HTTPStatus(err))
			assert.True(t, tt.check(err))
		})
	}
}

func TestClassificationNegativeCases(t *testing.T) {
	for _, err := range []error{nil, stderrors.New("plain"), nlerr.New(nlerr.CodeInternalFailure, "x")} {
		assert.False(t, nlerr.IsNotFound(err))
		assert.False(t, nlerr.IsConflict(err))
		assert.False(t, nlerr.IsInvalidInput(err))
		assert.False(t, nlerr.IsUnauthorized(err))
		assert.False(t, nlerr.IsConsistencyFault(err))
		assert.False(t, nlerr.IsStoreFailure(err))
	}
	assert.Equal(t, http.StatusInternalServerError, nlerr.HTTPStatus(nil))
}

// ---------------------------------------------------------------------------
// Join
// ---------------------------------------------------------------------------

func TestJoinKeepsFirstCodedError(t *testing.T) {
	step := nlerr.New(nlerr.CodeGraphStoreFailure, "create node")
	undo := stderrors.New("undo failed")
	joined := nlerr.Join(step, undo)

	require.Error(t, joined)
	assert.ErrorIs(t, joined, undo)
	assert.True(t, nlerr.IsStoreFailure(joined))
}

func TestJoinOfNothingIsNil(t *testing.T) {
	assert.NoError(t, nlerr.Join())
	assert.NoError(t, nlerr.Join(nil, nil))
}
