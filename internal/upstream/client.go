// Package upstream talks to the remote serverless expense API. The API is
// an opaque collaborator: this client knows its operations and nothing
// about its storage.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"expense-web/internal/expense"
)

// ErrUpstream reports a non-success response or transport failure from the
// remote API. There are no automatic retries; every failure is terminal
// for its operation.
var ErrUpstream = errors.New("upstream API error")

// ErrInvalidCredentials reports a rejected login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ReceiptFile is an optional binary receipt attached to a create call.
type ReceiptFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Client is an HTTP client for the remote expense API. The base URL and
// shared access code are injected configuration, never compiled in.
type Client struct {
	baseURL    string
	accessCode string
	client     *http.Client
}

// New creates a new Client instance.
func New(baseURL, accessCode string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if accessCode == "" {
		return nil, fmt.Errorf("api access code is required")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accessCode: accessCode,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// endpoint builds the operation URL with the access code and any extra
// query parameters.
func (c *Client) endpoint(op string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("code", c.accessCode)
	return fmt.Sprintf("%s/%s?%s", c.baseURL, op, params.Encode())
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("%w: %s returned status %d: %s", ErrUpstream, op, resp.StatusCode, strings.TrimSpace(string(body)))
}

// Login validates credentials and returns the user identifier.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", fmt.Errorf("marshaling credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint("Login", nil), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: calling Login: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		return "", statusError("Login", resp)
	}

	var out struct {
		ID json.Number `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding Login response: %v", ErrUpstream, err)
	}
	if out.ID.String() == "" {
		return "", ErrInvalidCredentials
	}
	return out.ID.String(), nil
}

// GetExpenses returns the user's expenses.
func (c *Client) GetExpenses(ctx context.Context, userID string) ([]expense.Expense, error) {
	var expenses []expense.Expense
	if err := c.getJSON(ctx, "GetExpenses", userID, &expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

// GetCategories returns the user's category reference set.
func (c *Client) GetCategories(ctx context.Context, userID string) ([]expense.Category, error) {
	var categories []expense.Category
	if err := c.getJSON(ctx, "GetCategories", userID, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) getJSON(ctx context.Context, op, userID string, v any) error {
	params := url.Values{"userId": {userID}}
	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint(op, params), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: calling %s: %v", ErrUpstream, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrUpstream, op, err)
	}
	return nil
}

// CreateExpense creates an expense, optionally with a binary receipt, as a
// multipart request: an "expense" part carrying the JSON payload and an
// optional "receipt" file part.
func (c *Client) CreateExpense(ctx context.Context, payload expense.ExpensePayload, receipt *ReceiptFile) (*expense.Expense, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling expense: %w", err)
	}
	if err := writer.WriteField("expense", string(payloadJSON)); err != nil {
		return nil, fmt.Errorf("writing expense field: %w", err)
	}

	if receipt != nil {
		part, err := writer.CreateFormFile("receipt", receipt.Filename)
		if err != nil {
			return nil, fmt.Errorf("creating receipt part: %w", err)
		}
		if _, err := part.Write(receipt.Data); err != nil {
			return nil, fmt.Errorf("writing receipt part: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint("CreateExpense", nil), &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling CreateExpense: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, statusError("CreateExpense", resp)
	}

	var created expense.Expense
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("%w: decoding CreateExpense response: %v", ErrUpstream, err)
	}
	return &created, nil
}

// UpdateExpense replaces an existing expense.
func (c *Client) UpdateExpense(ctx context.Context, payload expense.ExpensePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling expense: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", c.endpoint("UpdateExpense", nil), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: calling UpdateExpense: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError("UpdateExpense", resp)
	}
	return nil
}

// DeleteExpense removes an expense.
func (c *Client) DeleteExpense(ctx context.Context, expenseID int, userID string) error {
	params := url.Values{
		"expenseId": {strconv.Itoa(expenseID)},
		"userId":    {userID},
	}
	req, err := http.NewRequestWithContext(ctx, "DELETE", c.endpoint("DeleteExpense", params), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: calling DeleteExpense: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError("DeleteExpense", resp)
	}
	return nil
}

// AddCategory creates a new category and returns it.
func (c *Client) AddCategory(ctx context.Context, userID, name string) (*expense.Category, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, fmt.Errorf("marshaling category: %w", err)
	}

	params := url.Values{"userId": {userID}}
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint("AddCategory", params), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling AddCategory: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, statusError("AddCategory", resp)
	}

	var created expense.Category
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("%w: decoding AddCategory response: %v", ErrUpstream, err)
	}
	return &created, nil
}
