package zendesk

import (
	"strconv"
	"strings"

	"github.com/garyjia/credit-approvals/internal/domain/workflow"
)

// CustomStatus is an entry of the account's custom status list
type CustomStatus struct {
	ID             int64  `json:"id"`
	AgentLabel     string `json:"agent_label"`
	StatusCategory string `json:"status_category"`
	Active         bool   `json:"active"`
}

// StatusCatalog maps custom status ids to workflow statuses
type StatusCatalog struct {
	ids      map[workflow.Status]int64
	statuses map[int64]workflow.Status
}

// DiscoverStatuses picks the custom statuses of the approval workflow by agent label.
// The first match wins for each status; every other id reads as Pre-Submission.
func DiscoverStatuses(customStatuses []CustomStatus) *StatusCatalog {
	c := &StatusCatalog{
		ids:      make(map[workflow.Status]int64),
		statuses: make(map[int64]workflow.Status),
	}

	for _, cs := range customStatuses {
		label := strings.ToLower(cs.AgentLabel)
		if label == "" {
			continue
		}

		var s workflow.Status
		switch {
		case strings.Contains(label, "submit") && strings.Contains(label, "approval"):
			s = workflow.StatusSubmitForApproval
		case strings.Contains(label, "pending") && strings.Contains(label, "approval"):
			s = workflow.StatusPendingApproval
		case strings.Contains(label, "approved") && !strings.Contains(label, "pending"):
			s = workflow.StatusApproved
		case strings.Contains(label, "declined"):
			s = workflow.StatusDeclined
		default:
			continue
		}

		if _, taken := c.ids[s]; taken {
			continue
		}
		c.ids[s] = cs.ID
		c.statuses[cs.ID] = s
	}
	return c
}

// StatusOf returns the workflow status of a custom status id
func (c *StatusCatalog) StatusOf(id int64) workflow.Status {
	if s, ok := c.statuses[id]; ok {
		return s
	}
	return workflow.StatusPreSubmission
}

// IDOf returns the custom status id of a workflow status
func (c *StatusCatalog) IDOf(s workflow.Status) (int64, bool) {
	id, ok := c.ids[s]
	return id, ok
}

// Complete reports whether every approval status except Pre-Submission was found
func (c *StatusCatalog) Complete() bool {
	for _, s := range workflow.AllStatuses() {
		if s == workflow.StatusPreSubmission {
			continue
		}
		if _, ok := c.ids[s]; !ok {
			return false
		}
	}
	return true
}

type ticketField struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	RawTitle  string `json:"raw_title"`
	Active    bool   `json:"active"`
	Removable bool   `json:"removable"`
}

// DefaultScopeFieldTerms are the words that identify the credit type field
func DefaultScopeFieldTerms() []string {
	return []string{"type", "credit"}
}

func customFieldName(id int64) string {
	return "custom_field_" + strconv.FormatInt(id, 10)
}

// FindScopeField returns the record key of the first custom field whose title
// contains every term, case-insensitively
func FindScopeField(fields []ticketField, terms []string) string {
	for _, f := range fields {
		if !f.Removable {
			continue
		}
		title := f.Title
		if title == "" {
			title = f.RawTitle
		}
		title = strings.ToLower(title)
		if title == "" {
			continue
		}

		matched := true
		for _, term := range terms {
			if !strings.Contains(title, strings.ToLower(term)) {
				matched = false
				break
			}
		}
		if matched {
			return customFieldName(f.ID)
		}
	}
	return ""
}
