package rpccode

import "testing"

func TestCodesAreStable(t *testing.T) {
	t.Parallel()

	// Contract values: a change here breaks deployed clients.
	tests := []struct {
		name string
		code int
		want int
	}{
		{"AuthRequired", AuthRequired, -32001},
		{"PermissionDenied", PermissionDenied, -32002},
		{"PolicyBlocked", PolicyBlocked, -32003},
		{"BudgetExceeded", BudgetExceeded, -32004},
		{"SandboxViolation", SandboxViolation, -32005},
		{"Timeout", Timeout, -32006},
		{"RateLimited", RateLimited, -32007},
		{"QuotaExceeded", QuotaExceeded, -32008},
		{"InvalidParams", InvalidParams, -32602},
		{"MethodNotFound", MethodNotFound, -32601},
		{"Internal", Internal, -32603},
	}
	for _, tt := range tests {
		if tt.code != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.code, tt.want)
		}
	}
}

func TestMessage(t *testing.T) {
	t.Parallel()

	if got := Message(PolicyBlocked); got != "blocked by policy" {
		t.Errorf("Message(PolicyBlocked) = %q", got)
	}
	if got := Message(-1); got != "error -1" {
		t.Errorf("Message(unknown) = %q", got)
	}
	if got := Messagef(Timeout, "after %ds", 300); got != "execution timed out: after 300s" {
		t.Errorf("Messagef = %q", got)
	}
}
