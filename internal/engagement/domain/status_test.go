package domain

import "testing"

func TestMapProviderCallState(t *testing.T) {
	cases := []struct {
		state string
		want  CallStatus
	}{
		{"queued", CallInitiated},
		{"initiated", CallInitiated},
		{"dialing", CallInitiated},
		{"ringing", CallRinging},
		{"in-progress", CallConnected},
		{"connected", CallConnected},
		{"answered", CallConnected},
		{"completed", CallEnded},
		{"ended", CallEnded},
		{"hangup", CallEnded},
		{"busy", CallFailed},
		{"failed", CallFailed},
		{"no-answer", CallFailed},
		{"canceled", CallFailed},
		{"RINGING", CallRinging},
		{"  completed  ", CallEnded},
	}

	for _, tc := range cases {
		if got := MapProviderCallState(tc.state); got != tc.want {
			t.Errorf("MapProviderCallState(%q) = %q, want %q", tc.state, got, tc.want)
		}
	}
}

func TestMapProviderCallStateAbsentDefaultsToInitiated(t *testing.T) {
	if got := MapProviderCallState(""); got != CallInitiated {
		t.Fatalf("expected absent state to map to %q, got %q", CallInitiated, got)
	}
	if got := MapProviderCallState("some-future-state"); got != CallInitiated {
		t.Fatalf("expected unknown state to map to %q, got %q", CallInitiated, got)
	}
}
