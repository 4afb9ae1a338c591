package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditDue(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		cycle int
		want  bool
	}{
		{"no webhook base means no audit", "", 10, false},
		{"off-cadence cycle", "https://fleet.example.com", 9, false},
		{"audit cycle", "https://fleet.example.com", 10, true},
		{"every tenth cycle", "https://fleet.example.com", 20, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auditDue(tt.base, tt.cycle))
		})
	}
}

// A bot that failed over must keep hitting the audit cadence; the gate
// depends on the base URL and cycle alone, not on the current mode.
func TestAuditDueIgnoresPollingState(t *testing.T) {
	rb := &runningBot{polling: true}
	assert.True(t, auditDue("https://fleet.example.com", 10))
	assert.True(t, rb.polling)
}

func TestStopPollingWithoutLoopIsSafe(t *testing.T) {
	rb := &runningBot{polling: true}
	rb.stopPolling()
	assert.False(t, rb.polling)
	assert.Nil(t, rb.pollCancel)
}

func TestStopPollingCancelsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rb := &runningBot{polling: true, pollCancel: cancel}

	rb.stopPolling()

	assert.False(t, rb.polling)
	assert.Nil(t, rb.pollCancel)
	select {
	case <-ctx.Done():
	default:
		t.Fatal("poll context must be cancelled")
	}
}
