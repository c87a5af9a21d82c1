package workflow

import "testing"

func TestEvaluate(t *testing.T) {
	table := buildVendorInvoiceTable(t)

	tests := []struct {
		name       string
		req        GuardRequest
		wantAllow  bool
		wantReason ReasonCode
	}{
		{
			name:      "vendor submits pending invoice",
			req:       GuardRequest{From: StatePending, To: StateReadyForProcessing, Role: RoleVendor},
			wantAllow: true,
		},
		{
			name:      "system forwards to admin",
			req:       GuardRequest{From: StateReadyForProcessing, To: StateSentToAdmin, Role: RoleSystem},
			wantAllow: true,
		},
		{
			name:       "absent pair",
			req:        GuardRequest{From: StatePending, To: StatePaid, Role: RoleAccounting},
			wantReason: ReasonNoSuchTransition,
		},
		{
			name:       "unknown state",
			req:        GuardRequest{From: "archived", To: StatePaid, Role: RoleAccounting},
			wantReason: ReasonNoSuchTransition,
		},
		{
			name:       "terminal state has no exits",
			req:        GuardRequest{From: StatePaid, To: StateRejected, Role: RoleAdmin, GuardResult: Bool(true)},
			wantReason: ReasonNoSuchTransition,
		},
		{
			name:       "wrong role",
			req:        GuardRequest{From: StateSentToAdmin, To: StateSentToAccounting, Role: RoleVendor},
			wantReason: ReasonRoleNotAuthorized,
		},
		{
			name:       "guard false",
			req:        GuardRequest{From: StateSentToAdmin, To: StateRejected, Role: RoleAdmin, GuardResult: Bool(false)},
			wantReason: ReasonGuardNotSatisfied,
		},
		{
			name:       "guard absent",
			req:        GuardRequest{From: StateSentToAdmin, To: StateRejected, Role: RoleAdmin},
			wantReason: ReasonGuardNotSatisfied,
		},
		{
			name:      "guard true",
			req:       GuardRequest{From: StateSentToAdmin, To: StateRejected, Role: RoleAdmin, GuardResult: Bool(true)},
			wantAllow: true,
		},
		{
			name:      "guard result ignored on unguarded rule",
			req:       GuardRequest{From: StateSentToAdmin, To: StateSentToAccounting, Role: RoleAdmin, GuardResult: Bool(false)},
			wantAllow: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(table, tt.req)
			if d.Allowed != tt.wantAllow {
				t.Errorf("Evaluate().Allowed = %v, want %v (reason %s)", d.Allowed, tt.wantAllow, d.Reason)
			}
			if d.Reason != tt.wantReason {
				t.Errorf("Evaluate().Reason = %v, want %v", d.Reason, tt.wantReason)
			}
			if tt.wantAllow && d.Rule == nil {
				t.Error("allowed decision should carry the matched rule")
			}
		})
	}
}

func TestEvaluate_Ambiguous(t *testing.T) {
	// The builder refuses overlapping role sets, so assemble the table directly.
	rules := []Rule{
		{From: "a", To: "b", Roles: []Role{"r1"}},
		{From: "a", To: "b", Roles: []Role{"r1"}, Guard: "g"},
	}
	table := &Table{
		docType:  "doc",
		initial:  "a",
		states:   map[State]bool{"a": true, "b": true},
		terminal: map[State]bool{"b": true},
		rules:    map[edge][]Rule{{from: "a", to: "b"}: rules},
		outgoing: map[State][]Rule{"a": rules},
	}

	d := Evaluate(table, GuardRequest{From: "a", To: "b", Role: "r1", GuardResult: Bool(true)})
	if d.Allowed || d.Reason != ReasonAmbiguousTransition {
		t.Errorf("Evaluate() = %+v, want AmbiguousTransition", d)
	}
}

func TestEvaluate_NilTable(t *testing.T) {
	d := Evaluate(nil, GuardRequest{From: "a", To: "b", Role: "r1"})
	if d.Allowed || d.Reason != ReasonNoSuchTransition {
		t.Errorf("Evaluate(nil) = %+v", d)
	}
}

func TestEvaluate_IsPure(t *testing.T) {
	table := buildVendorInvoiceTable(t)
	req := GuardRequest{From: StateSentToAdmin, To: StateRejected, Role: RoleAdmin, GuardResult: Bool(true)}

	first := Evaluate(table, req)
	for i := 0; i < 10; i++ {
		if got := Evaluate(table, req); got.Allowed != first.Allowed || got.Reason != first.Reason {
			t.Fatalf("Evaluate() changed result on call %d", i)
		}
	}
}
