package delivery

import (
	"context"
	"testing"

	"github.com/Veraticus/sessionguard/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatedSender(t *testing.T) {
	tests := []struct {
		name         string
		granted      bool
		grantOnAsk   bool
		requestErr   error
		wantSent     int
		wantRequests int
	}{
		{name: "already granted", granted: true, wantSent: 2, wantRequests: 0},
		{name: "granted on request", grantOnAsk: true, wantSent: 2, wantRequests: 1},
		{name: "denied on request", wantSent: 0, wantRequests: 1},
		{name: "request error counts as denial", grantOnAsk: true, requestErr: testutil.ErrMockDenied, wantSent: 0, wantRequests: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := newRecordingSender()
			perm := testutil.NewMockPermission(tt.granted, tt.grantOnAsk)
			if tt.requestErr != nil {
				perm.SetRequestError(tt.requestErr)
			}
			g := NewGatedSender(inner, perm, nil)

			for i := 0; i < 2; i++ {
				err := g.Send(context.Background(), Item{Title: "x"})
				if tt.wantSent == 0 {
					assert.ErrorIs(t, err, ErrPermissionDenied)
				} else {
					assert.NoError(t, err)
				}
			}

			assert.Len(t, inner.Sent(), tt.wantSent)
			assert.Equal(t, tt.wantRequests, perm.RequestCalls())
			assert.Equal(t, 1, perm.GrantedCalls(), "outcome is remembered")

			decided, granted := g.Decided()
			assert.True(t, decided)
			assert.Equal(t, tt.wantSent > 0, granted)
		})
	}
}

func TestGatedSender_UndecidedBeforeFirstSend(t *testing.T) {
	g := NewGatedSender(newRecordingSender(), testutil.NewMockPermission(true, true), nil)
	decided, _ := g.Decided()
	require.False(t, decided)
}
