package errors

import (
	nativeerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCastPlainError(t *testing.T) {
	e, ok := Cast(nativeerrors.New("boom"))
	assert.False(t, ok)
	assert.Equal(t, ErrUnexpected, e.Code)
	assert.EqualError(t, e.Err, "boom")
}

func TestCastWrappedWithFmt(t *testing.T) {
	orig := NewNotFoundError(KindMatchNotFound, "match not found", nil)
	e, ok := Cast(fmt.Errorf("outer: %w", orig))
	require.True(t, ok)
	assert.Equal(t, ErrNotFound, e.Code)
	assert.Equal(t, KindMatchNotFound, e.Kind)
}

func TestWrapKeepsCodeAndKind(t *testing.T) {
	err := NewRulesViolationError(KindTauntBlocks, "taunt", Details{"target": "hero"})
	wrapped := Wrap(err, "attack", Details{"target": "minion", "match_id": "m1"})

	e, ok := Cast(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrRulesViolation, e.Code)
	assert.Equal(t, KindTauntBlocks, e.Kind)
	assert.Equal(t, "attack: taunt", e.Message)
	assert.Equal(t, "minion", e.Details["target"])
	assert.Equal(t, "hero", e.Details["_target"])
	assert.Equal(t, "m1", e.Details["match_id"])
}

func TestWrapDoesNotMutateOriginalDetails(t *testing.T) {
	details := Details{"a": 1}
	err := NewNotFoundError(KindDeckNotFound, "deck", details)
	_ = Wrap(err, "load", Details{"b": 2})
	assert.Len(t, details, 1)
}

func TestWrapPlainError(t *testing.T) {
	wrapped := Wrap(nativeerrors.New("io"), "read", nil)
	assert.Equal(t, ErrUnexpected, CodeOf(wrapped))
	assert.Equal(t, "read: io", wrapped.Error())
}

func TestErrorUnwrap(t *testing.T) {
	root := nativeerrors.New("root")
	err := NewInternalErrorFromErr(root, "db", nil)
	assert.True(t, nativeerrors.Is(err, root))
}

func TestLogLevelByCode(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	Log(logger, NewNotFoundError(KindMatchNotFound, "missing", nil))
	Log(logger, NewInternalErrorFromErr(nativeerrors.New("x"), "broken", Details{"id": "1"}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "1", entries[1].ContextMap()["err_details_id"])
}
