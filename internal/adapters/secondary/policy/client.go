// Package policy implements an HTTP client for an OPA-style external policy
// engine, grounded in original_source/agentweave/authz/opa.py.
package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/agentweave/agentweave/internal/core/domain"
	cerrors "github.com/agentweave/agentweave/internal/core/errors"
)

// Client evaluates policy decisions against an OPA-compatible HTTP data API:
// POST {endpoint}/v1/data/{policy_path} with {"input": ...}, expecting
// {"result": bool} or {"result": {"allow": bool, "reason": "...", "policy_id": "..."}}.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient constructs a Client against endpoint with the given request timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

type opaResponse struct {
	Result json.RawMessage `json:"result"`
}

type opaResultObject struct {
	Allow    bool   `json:"allow"`
	Reason   string `json:"reason"`
	PolicyID string `json:"policy_id"`
}

// Evaluate POSTs input to the policy engine and parses the result, which may
// be either a bare boolean or a structured object carrying a reason and
// policy id.
func (c *Client) Evaluate(ctx context.Context, policyPath string, input map[string]any) (domain.AuthorizationDecision, error) {
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return domain.AuthorizationDecision{}, fmt.Errorf("encode policy input: %w", err)
	}

	url := fmt.Sprintf("%s/v1/data/%s", c.endpoint, policyPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.AuthorizationDecision{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.AuthorizationDecision{}, cerrors.ErrPolicyEvaluationError.WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.AuthorizationDecision{}, cerrors.ErrPolicyEvaluationError.WithMessage(
			fmt.Sprintf("policy engine returned status %d", resp.StatusCode))
	}

	var parsed opaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.AuthorizationDecision{}, cerrors.ErrPolicyEvaluationError.WithCause(err)
	}

	decision := domain.AuthorizationDecision{AuditID: uuid.NewString()}

	var asBool bool
	if err := json.Unmarshal(parsed.Result, &asBool); err == nil {
		decision.Allowed = asBool
		return decision, nil
	}

	var asObject opaResultObject
	if err := json.Unmarshal(parsed.Result, &asObject); err != nil {
		return domain.AuthorizationDecision{}, cerrors.ErrPolicyEvaluationError.WithMessage("unrecognized policy result shape")
	}
	decision.Allowed = asObject.Allow
	decision.Reason = asObject.Reason
	decision.PolicyID = asObject.PolicyID
	return decision, nil
}
