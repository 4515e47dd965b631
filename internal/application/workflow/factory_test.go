package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	domainwf "github.com/garyjia/credit-approvals/internal/domain/workflow"
)

func TestBuildApprovalStateMachine_RoutesOncePerSubmission(t *testing.T) {
	state := domainwf.NewState("1")
	state.Observe(domainwf.StatusSubmitForApproval, "")

	machine := BuildApprovalStateMachine(&state)
	assert.True(t, machine.CanFire(domainwf.TriggerRoute))
	assert.True(t, machine.CanFire(domainwf.TriggerAutoApprove))

	state.AutoAssignProcessed = true
	machine = BuildApprovalStateMachine(&state)
	err := machine.Fire(context.Background(), domainwf.TriggerRoute)
	assert.True(t, errors.Is(err, domainwf.ErrGuardFailed), "got %v", err)
}

func TestBuildApprovalStateMachine_ApprovedIsTerminal(t *testing.T) {
	state := domainwf.NewState("1")
	state.CurrentStatus = domainwf.StatusApproved

	machine := BuildApprovalStateMachine(&state)
	assert.Empty(t, machine.PermittedTriggers())
}

func TestExternalMoveAllowed(t *testing.T) {
	fresh := domainwf.NewState("1")

	submitted := fresh
	submitted.Observe(domainwf.StatusSubmitForApproval, "")
	submitted.Observe(domainwf.StatusPendingApproval, "G1")

	declined := submitted
	declined.Observe(domainwf.StatusDeclined, "")

	revised := submitted
	revised.CurrentStatus = domainwf.StatusPreSubmission

	tests := []struct {
		name  string
		state domainwf.State
		to    domainwf.Status
		want  bool
	}{
		{"unchanged", submitted, domainwf.StatusPendingApproval, true},
		{"first submission", fresh, domainwf.StatusSubmitForApproval, true},
		{"approve before submission", fresh, domainwf.StatusApproved, false},
		{"pending before submission", fresh, domainwf.StatusPendingApproval, false},
		{"resubmit after decline", declined, domainwf.StatusSubmitForApproval, true},
		{"approve while pending", submitted, domainwf.StatusApproved, false},
		{"decline while pending", submitted, domainwf.StatusDeclined, false},
		{"back to submit while pending", submitted, domainwf.StatusSubmitForApproval, false},
		{"resubmit from pre submission", revised, domainwf.StatusSubmitForApproval, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, externalMoveAllowed(tt.state, tt.to))
		})
	}
}
