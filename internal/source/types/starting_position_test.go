package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartingPosition_Equal(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		a, b  StartingPosition
		equal bool
	}{
		{"trim horizon vs trim horizon", NewTrimHorizon(), NewTrimHorizon(), true},
		{"trim horizon vs latest", NewTrimHorizon(), NewLatest(), false},
		{"same timestamp", NewAtTimestamp(t1), NewAtTimestamp(t1), true},
		{"different timestamp", NewAtTimestamp(t1), NewAtTimestamp(t2), false},
		{"same sequence", NewAfterSequenceNumber("A"), NewAfterSequenceNumber("A"), true},
		{"different sequence", NewAfterSequenceNumber("A"), NewAfterSequenceNumber("B"), false},
		{"sequence vs trim horizon", NewAfterSequenceNumber("A"), NewTrimHorizon(), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.equal, tc.a.Equal(tc.b))
		})
	}
}
