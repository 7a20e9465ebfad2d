package message

import "testing"

func TestCanActivate(t *testing.T) {
	tests := []struct {
		name        string
		ctx         ActivationContext
		wantAllowed bool
	}{
		{
			name:        "free slot",
			ctx:         ActivationContext{MessageID: "MSG-0001"},
			wantAllowed: true,
		},
		{
			name:        "slot held by same message",
			ctx:         ActivationContext{ActiveID: "MSG-0001", MessageID: "MSG-0001"},
			wantAllowed: true,
		},
		{
			name:        "slot held by another message",
			ctx:         ActivationContext{ActiveID: "MSG-0001", MessageID: "MSG-0002"},
			wantAllowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanActivate(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("CanActivate() allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if !tt.wantAllowed && result.Reason == "" {
				t.Error("CanActivate() reason should not be empty when disallowed")
			}
		})
	}
}

func TestCanDecide(t *testing.T) {
	tests := []struct {
		state       State
		wantAllowed bool
	}{
		{StateAwaitingDecision, true},
		{StateFailedDraft, true},
		{StateQueued, false},
		{StateReviewing, false},
		{StateSent, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			result := CanDecide(DecisionContext{MessageID: "MSG-0001", State: tt.state})
			if result.Allowed != tt.wantAllowed {
				t.Errorf("CanDecide(%q) allowed = %v, want %v", tt.state, result.Allowed, tt.wantAllowed)
			}
		})
	}
}

func TestCanIgnore(t *testing.T) {
	tests := []struct {
		state       State
		wantAllowed bool
	}{
		{StateAwaitingDecision, true},
		{StateFailedDraft, true},
		{StateDrafting, true},
		{StateReviewing, false},
		{StateSending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			result := CanIgnore(DecisionContext{MessageID: "MSG-0001", State: tt.state})
			if result.Allowed != tt.wantAllowed {
				t.Errorf("CanIgnore(%q) allowed = %v, want %v", tt.state, result.Allowed, tt.wantAllowed)
			}
		})
	}
}

func TestCanApprove(t *testing.T) {
	tests := []struct {
		name        string
		ctx         ReviewContext
		wantAllowed bool
	}{
		{
			name:        "reviewing with draft",
			ctx:         ReviewContext{MessageID: "MSG-0001", State: StateReviewing, DraftCount: 1},
			wantAllowed: true,
		},
		{
			name:        "reviewing without draft",
			ctx:         ReviewContext{MessageID: "MSG-0001", State: StateReviewing},
			wantAllowed: false,
		},
		{
			name:        "editing",
			ctx:         ReviewContext{MessageID: "MSG-0001", State: StateEditing, DraftCount: 2},
			wantAllowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanApprove(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("CanApprove() allowed = %v, want %v (reason %q)", result.Allowed, tt.wantAllowed, result.Reason)
			}
		})
	}
}

func TestCanRegenerate(t *testing.T) {
	if !CanRegenerate(ReviewContext{State: StateReviewing}).Allowed {
		t.Error("CanRegenerate(reviewing) should be allowed")
	}
	if !CanRegenerate(ReviewContext{State: StateFailedDraft}).Allowed {
		t.Error("CanRegenerate(failed_draft) should be allowed")
	}
	if CanRegenerate(ReviewContext{State: StateSending}).Allowed {
		t.Error("CanRegenerate(sending) should not be allowed")
	}
}

func TestCanSubmitManual(t *testing.T) {
	tests := []struct {
		name        string
		state       State
		text        string
		wantAllowed bool
	}{
		{"manual with text", StateManualDraft, "see you tomorrow", true},
		{"manual with blank text", StateManualDraft, "   ", false},
		{"wrong state", StateReviewing, "hello", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanSubmitManual(DecisionContext{MessageID: "MSG-0001", State: tt.state}, tt.text)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("CanSubmitManual() allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
		})
	}
}

func TestCanResend(t *testing.T) {
	tests := []struct {
		name        string
		ctx         ResendContext
		wantAllowed bool
	}{
		{
			name:        "send_failed with free slot",
			ctx:         ResendContext{MessageID: "MSG-0001", State: StateSendFailed, FinalResponse: "ok"},
			wantAllowed: true,
		},
		{
			name:        "slot taken by another message",
			ctx:         ResendContext{MessageID: "MSG-0001", State: StateSendFailed, FinalResponse: "ok", ActiveID: "MSG-0002"},
			wantAllowed: false,
		},
		{
			name:        "not send_failed",
			ctx:         ResendContext{MessageID: "MSG-0001", State: StateSent, FinalResponse: "ok"},
			wantAllowed: false,
		},
		{
			name:        "missing final response",
			ctx:         ResendContext{MessageID: "MSG-0001", State: StateSendFailed},
			wantAllowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanResend(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("CanResend() allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
		})
	}
}

func TestGuardResultError(t *testing.T) {
	if err := (GuardResult{Allowed: true}).Error(); err != nil {
		t.Errorf("Error() = %v, want nil", err)
	}
	err := (GuardResult{Reason: "nope"}).Error()
	if err == nil || err.Error() != "nope" {
		t.Errorf("Error() = %v, want \"nope\"", err)
	}
}
