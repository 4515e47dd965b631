package workflow

import (
	"context"

	domainwf "github.com/garyjia/credit-approvals/internal/domain/workflow"
)

// BuildApprovalStateMachine creates a state machine for the credit memo approval
// lifecycle positioned at state's current status. Auto routing is guarded by
// state.AutoAssignProcessed so a request is routed at most once per submission.
func BuildApprovalStateMachine(state *domainwf.State) domainwf.StateMachine {
	notProcessed := func(ctx context.Context) bool {
		return !state.AutoAssignProcessed
	}

	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StatusPreSubmission).
		Permit(domainwf.TriggerSubmit, domainwf.StatusSubmitForApproval)

	builder.Configure(domainwf.StatusSubmitForApproval).
		PermitIf(domainwf.TriggerAutoApprove, domainwf.StatusApproved, notProcessed).
		PermitIf(domainwf.TriggerRoute, domainwf.StatusPendingApproval, notProcessed)

	builder.Configure(domainwf.StatusPendingApproval).
		Permit(domainwf.TriggerAdvance, domainwf.StatusPendingApproval).
		Permit(domainwf.TriggerReassignLevel, domainwf.StatusPendingApproval).
		Permit(domainwf.TriggerFinalApprove, domainwf.StatusApproved).
		Permit(domainwf.TriggerDecline, domainwf.StatusDeclined)

	builder.Configure(domainwf.StatusDeclined).
		Permit(domainwf.TriggerResubmit, domainwf.StatusSubmitForApproval)

	// Approved is terminal

	return builder.Build(state.CurrentStatus)
}

// externalMoveAllowed reports whether a status change made directly on the host
// platform is one the workflow accepts without reverting.
func externalMoveAllowed(state domainwf.State, to domainwf.Status) bool {
	if to == state.CurrentStatus {
		return true
	}
	if to != domainwf.StatusSubmitForApproval {
		return false
	}
	if !state.HasBeenSubmitted {
		return true
	}
	machine := BuildApprovalStateMachine(&state)
	return machine.CanFire(domainwf.TriggerSubmit) || machine.CanFire(domainwf.TriggerResubmit)
}
