package workflow

import (
	"fmt"

	"github.com/garyjia/credit-approvals/internal/domain/rule"
	domainwf "github.com/garyjia/credit-approvals/internal/domain/workflow"
)

const autoApprovedComment = "Credit memo automatically approved based on auto-approve rules."

func routedComment(lvl rule.ApprovalLevel) string {
	return fmt.Sprintf("Ticket automatically assigned to %s (Level %d) for approval.", lvl.GroupName, lvl.Level)
}

func finalApprovalComment(approver string) string {
	return fmt.Sprintf("Final approval granted by %s. All required approvals complete.", approver)
}

func advancedComment(approver string, next rule.ApprovalLevel) string {
	return fmt.Sprintf("Approved by %s. Ticket assigned to %s (Level %d) for next approval.", approver, next.GroupName, next.Level)
}

func reassignedComment(next rule.ApprovalLevel) string {
	return fmt.Sprintf("Ticket assigned to %s (Level %d) for approval.", next.GroupName, next.Level)
}

func declinedComment(approver, reason string) string {
	return fmt.Sprintf("Request declined by %s.\n\nReason: %s", approver, reason)
}

func revertedComment(state domainwf.State, restored domainwf.Status) string {
	if !state.HasBeenSubmitted {
		return fmt.Sprintf("Status can only be changed to %s before the request is submitted. Status was restored to %s.",
			domainwf.StatusSubmitForApproval.Label(), restored.Label())
	}
	return fmt.Sprintf("Status changes must go through the Approve or Decline actions. Status was restored to %s.", restored.Label())
}
