package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerRetainKeepsTodaysFires(t *testing.T) {
	l := newFiredLedger()
	assert.True(t, l.Claim("a", at(1, 14, 30, 0)))
	assert.False(t, l.Claim("a", at(1, 14, 30, 1)))
	assert.True(t, l.Claim("b", at(1, 9, 0, 0)))

	l.Retain(map[string]struct{}{}, at(1, 23, 59, 0))
	assert.True(t, l.Has("a"), "removed today, still fired today")
	assert.True(t, l.Has("b"))

	l.Retain(map[string]struct{}{"b": {}}, at(2, 0, 1, 0))
	assert.False(t, l.Has("a"))
	assert.True(t, l.Has("b"), "present identities are kept across days")
}
