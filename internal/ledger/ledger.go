// Package ledger talks to the shared-expense service. It resolves groups and
// their member rosters and submits one expense per ledger entry, with
// explicit per-member paid and owed shares.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kassabot/internal/logging"
	"kassabot/internal/models"
)

// Client is the ledger backend the processing pipeline submits to.
type Client interface {
	ListGroups(ctx context.Context) ([]models.Group, error)
	FindGroup(ctx context.Context, name string) (models.Group, error)
	CreateExpense(ctx context.Context, entry models.LedgerEntry) error
}

// SplitwiseClient implements Client against the Splitwise v3.0 REST API.
type SplitwiseClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        logging.Logger
}

// NewSplitwiseClient creates a client for the given API base URL, for example
// https://secure.splitwise.com/api/v3.0.
func NewSplitwiseClient(baseURL, apiKey string, timeout time.Duration, logger logging.Logger) *SplitwiseClient {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &SplitwiseClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger,
	}
}

type groupsResponse struct {
	Groups []struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Members []struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
		} `json:"members"`
	} `json:"groups"`
}

type expenseResponse struct {
	Expenses []struct {
		ID int64 `json:"id"`
	} `json:"expenses"`
	Errors map[string][]string `json:"errors"`
}

// ListGroups fetches every group the authenticated user belongs to, with the
// full member roster per group.
func (c *SplitwiseClient) ListGroups(ctx context.Context) ([]models.Group, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get_groups", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build groups request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsed groupsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode groups response: %w", err)
	}

	groups := make([]models.Group, 0, len(parsed.Groups))
	for _, g := range parsed.Groups {
		group := models.Group{ID: g.ID, Name: g.Name}
		for _, m := range g.Members {
			group.Members = append(group.Members, models.Member{ID: m.ID, FirstName: m.FirstName})
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// FindGroup resolves a group by name, case-insensitively.
func (c *SplitwiseClient) FindGroup(ctx context.Context, name string) (models.Group, error) {
	groups, err := c.ListGroups(ctx)
	if err != nil {
		return models.Group{}, err
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	valid := make([]string, 0, len(groups))
	for _, group := range groups {
		if strings.ToLower(strings.TrimSpace(group.Name)) == needle {
			return group, nil
		}
		valid = append(valid, group.Name)
	}

	return models.Group{}, &models.InvalidMemberError{Name: name, ValidOptions: valid}
}

// CreateExpense submits one entry as a form-encoded expense with per-member
// paid and owed shares.
func (c *SplitwiseClient) CreateExpense(ctx context.Context, entry models.LedgerEntry) error {
	form := url.Values{}
	form.Set("cost", entry.Cost.StringFixed(2))
	form.Set("description", entry.Description)
	form.Set("group_id", strconv.FormatInt(entry.GroupID, 10))
	if entry.Date != "" {
		form.Set("date", entry.Date)
	}
	for i, share := range entry.Shares {
		prefix := fmt.Sprintf("users__%d__", i)
		form.Set(prefix+"user_id", strconv.FormatInt(share.MemberID, 10))
		form.Set(prefix+"paid_share", share.Paid.StringFixed(2))
		form.Set(prefix+"owed_share", share.Owed.StringFixed(2))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/create_expense", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build expense request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return err
	}

	var parsed expenseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("failed to decode expense response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return &models.LedgerSubmissionError{
			Description: entry.Description,
			Amount:      entry.Cost.StringFixed(2),
			FieldErrors: parsed.Errors,
		}
	}

	c.log.Info("expense created",
		logging.Field{Key: logging.FieldEntryID, Value: entry.ID},
		logging.Field{Key: logging.FieldItem, Value: entry.Description},
		logging.Field{Key: logging.FieldAmount, Value: entry.Cost.StringFixed(2)})
	return nil
}

func (c *SplitwiseClient) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ledger returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
