package zendesk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/credit-approvals/internal/application/port"
	"github.com/garyjia/credit-approvals/internal/domain/entity"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
	"go.uber.org/zap"
)

// ErrStatusNotMapped is returned when no custom status matches a workflow status
var ErrStatusNotMapped = errors.New("no custom status mapped for workflow status")

// Config holds Zendesk API configuration
type Config struct {
	// BaseURL is the account URL, e.g. https://acme.zendesk.com
	BaseURL  string
	Email    string
	APIToken string
	Timeout  time.Duration
	// ScopeFieldTerms identify the credit type field by its title
	ScopeFieldTerms []string
}

// Client talks to the Zendesk Support REST API
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	mu       sync.Mutex
	catalog  *StatusCatalog
	scope    string
	fieldsOK bool
}

// NewClient creates a new Zendesk client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if len(cfg.ScopeFieldTerms) == 0 {
		cfg.ScopeFieldTerms = DefaultScopeFieldTerms()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type apiTicket struct {
	ID             int64         `json:"id"`
	Subject        string        `json:"subject"`
	Status         string        `json:"status"`
	CustomStatusID int64         `json:"custom_status_id"`
	GroupID        *int64        `json:"group_id"`
	RequesterID    int64         `json:"requester_id"`
	SubmitterID    int64         `json:"submitter_id"`
	AssigneeID     *int64        `json:"assignee_id"`
	TicketFormID   *int64        `json:"ticket_form_id"`
	CustomFields   []customValue `json:"custom_fields"`
}

type customValue struct {
	ID    int64 `json:"id"`
	Value any   `json:"value"`
}

type apiGroup struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ticketComment struct {
	Body   string `json:"body"`
	Public bool   `json:"public"`
}

// FetchTicket reads a ticket with its custom field values
func (c *Client) FetchTicket(ctx context.Context, requestID string) (*entity.Ticket, error) {
	catalog, err := c.Statuses(ctx)
	if err != nil {
		return nil, err
	}
	// without the field list the ticket is evaluated with no scope value
	scopeField, err := c.ScopeField(ctx)
	if err != nil {
		c.logger.Warn("Credit type field unavailable", zap.String("request_id", requestID), zap.Error(err))
		scopeField = ""
	}

	var resp struct {
		Ticket apiTicket `json:"ticket"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v2/tickets/"+requestID+".json", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch ticket %s: %w", requestID, err)
	}
	t := resp.Ticket

	fields := rule.Record{
		"status":       t.Status,
		"subject":      t.Subject,
		"requester_id": idString(&t.RequesterID),
	}
	for _, cv := range t.CustomFields {
		fields[customFieldName(cv.ID)] = cv.Value
	}

	ticket := &entity.Ticket{
		ID:          strconv.FormatInt(t.ID, 10),
		Subject:     t.Subject,
		Status:      catalog.StatusOf(t.CustomStatusID),
		GroupID:     idString(t.GroupID),
		RequesterID: idString(&t.RequesterID),
		CreatorID:   idString(&t.SubmitterID),
		Fields:      fields,
		ScopeField:  scopeField,
	}
	if t.TicketFormID != nil {
		ticket.FormName = idString(t.TicketFormID)
	}
	fields["group_id"] = ticket.GroupID
	fields["assignee_id"] = idString(t.AssigneeID)
	return ticket, nil
}

// ListGroups returns the agent groups of the account
func (c *Client) ListGroups(ctx context.Context) ([]rule.Group, error) {
	var resp struct {
		Groups []apiGroup `json:"groups"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v2/groups.json", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	groups := make([]rule.Group, 0, len(resp.Groups))
	for _, g := range resp.Groups {
		groups = append(groups, rule.Group{ID: strconv.FormatInt(g.ID, 10), Name: g.Name})
	}
	return groups, nil
}

// UpdateStatus applies a workflow mutation as one ticket update with a private comment.
// An empty group or assignee id is sent as null, which clears it.
func (c *Client) UpdateStatus(ctx context.Context, requestID string, m entity.Mutation) error {
	upd := make(map[string]interface{})

	if m.Status != nil {
		catalog, err := c.Statuses(ctx)
		if err != nil {
			return err
		}
		id, ok := catalog.IDOf(*m.Status)
		if !ok {
			return fmt.Errorf("%w: %s", ErrStatusNotMapped, *m.Status)
		}
		upd["custom_status_id"] = id
	}
	if m.GroupID != nil {
		id, err := optionalID(*m.GroupID)
		if err != nil {
			return fmt.Errorf("invalid group id %q: %w", *m.GroupID, err)
		}
		upd["group_id"] = id
	}
	if m.AssigneeID != nil {
		id, err := optionalID(*m.AssigneeID)
		if err != nil {
			return fmt.Errorf("invalid assignee id %q: %w", *m.AssigneeID, err)
		}
		upd["assignee_id"] = id
	}
	if m.Comment != "" {
		upd["comment"] = ticketComment{Body: m.Comment, Public: false}
	}

	body := map[string]interface{}{"ticket": upd}
	if err := c.do(ctx, http.MethodPut, "/api/v2/tickets/"+requestID+".json", body, nil); err != nil {
		c.logger.Error("Failed to update ticket",
			zap.String("request_id", requestID),
			zap.Error(err))
		return fmt.Errorf("failed to update ticket %s: %w", requestID, err)
	}

	c.logger.Info("Ticket updated",
		zap.String("request_id", requestID),
		zap.Bool("status_changed", m.Status != nil),
		zap.Bool("group_changed", m.GroupID != nil))
	return nil
}

// Statuses returns the status catalog, loading it once
func (c *Client) Statuses(ctx context.Context) (*StatusCatalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.catalog != nil {
		return c.catalog, nil
	}

	var resp struct {
		CustomStatuses []CustomStatus `json:"custom_statuses"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v2/custom_statuses.json", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list custom statuses: %w", err)
	}

	c.catalog = DiscoverStatuses(resp.CustomStatuses)
	c.logger.Info("Custom statuses discovered", zap.Any("ids", c.catalog.ids))
	return c.catalog, nil
}

// ScopeField returns the name of the credit type field, empty when none matches
func (c *Client) ScopeField(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fieldsOK {
		return c.scope, nil
	}

	var resp struct {
		TicketFields []ticketField `json:"ticket_fields"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v2/ticket_fields.json", nil, &resp); err != nil {
		return "", fmt.Errorf("failed to list ticket fields: %w", err)
	}

	c.scope = FindScopeField(resp.TicketFields, c.cfg.ScopeFieldTerms)
	c.fieldsOK = true
	if c.scope == "" {
		c.logger.Warn("No credit type field found", zap.Strings("terms", c.cfg.ScopeFieldTerms))
	}
	return c.scope, nil
}

// Reset drops the cached status catalog and ticket fields
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog = nil
	c.scope = ""
	c.fieldsOK = false
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	req.SetBasicAuth(c.cfg.Email+"/token", c.cfg.APIToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return port.ErrNotFound
	case resp.StatusCode >= 300:
		return fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, truncate(string(respBody), 512))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func idString(id *int64) string {
	if id == nil || *id == 0 {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func optionalID(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Verify interface compliance
var (
	_ port.RecordProvider = (*Client)(nil)
	_ port.GroupDirectory = (*Client)(nil)
	_ port.MutationSink   = (*Client)(nil)
)
