package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentweave/agentweave/internal/core/domain"
	cerrors "github.com/agentweave/agentweave/internal/core/errors"
)

// Channel is a single mTLS-secured HTTP connection to one peer agent,
// verified to present the expected workload identifier on its leaf
// certificate's SPIFFE URI SAN (spec.md §4.3 "Secure Channel"). Grounded in
// original_source/agentweave/transport/channel.py and the teacher's
// spiffetls/tlsconfig usage, adapted from gRPC dial options to an
// *http.Client with a pinned *tls.Config.
type Channel struct {
	target     string
	client     *http.Client
	expectedID domain.WorkloadIdentifier
}

// NewChannel constructs a Channel to target using tlsConfig, which must
// already be configured (by the identity layer's BuildTLSMaterial) to
// authenticate this agent and to verify the peer's certificate chain
// against the trust bundle. expectedID additionally pins the exact peer
// workload identifier this channel is allowed to talk to.
func NewChannel(target string, tlsConfig *tls.Config, expectedID domain.WorkloadIdentifier, timeout time.Duration) *Channel {
	return &Channel{
		target: target,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		},
		expectedID: expectedID,
	}
}

// Healthy issues a GET /health and reports whether it returned 200.
func (c *Channel) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.target+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases the channel's idle connections.
func (c *Channel) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// Call issues a JSON-RPC 2.0 request to the peer's /rpc endpoint and decodes
// the result into out. It verifies, after the handshake completes, that the
// peer's certificate carries the expected workload identifier -- a
// mismatch is a hard failure even if the TLS handshake itself succeeded
// against the trust bundle, since a valid cert for the wrong identity must
// never be accepted as the intended peer.
func (c *Channel) Call(ctx context.Context, method string, params any, out any) error {
	envelope := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target+"/rpc", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return cerrors.ErrConnectionError.WithCause(err)
	}
	defer resp.Body.Close()

	if err := c.verifyPeer(resp.TLS); err != nil {
		return err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return cerrors.ErrInvalidRPC.WithCause(err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("peer returned JSON-RPC error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// FetchAgentCard retrieves the peer's published agent card from
// /.well-known/agent.json, verifying the peer identifier the same way Call
// does. Used by CLI tooling (agentweave ping) to confirm a peer is reachable
// and describes itself as expected, without invoking any capability.
func (c *Channel) FetchAgentCard(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.target+"/.well-known/agent.json", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, cerrors.ErrConnectionError.WithCause(err)
	}
	defer resp.Body.Close()

	if err := c.verifyPeer(resp.TLS); err != nil {
		return nil, err
	}

	var card map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("decode agent card: %w", err)
	}
	return card, nil
}

func (c *Channel) verifyPeer(state *tls.ConnectionState) error {
	if c.expectedID.IsZero() {
		return nil
	}
	if state == nil || len(state.PeerCertificates) == 0 {
		return cerrors.ErrPeerVerificationFailed.WithMessage("no peer certificate presented")
	}

	leaf := state.PeerCertificates[0]
	for _, uri := range leaf.URIs {
		if uri.Scheme == "spiffe" && uri.String() == c.expectedID.String() {
			return nil
		}
	}
	return cerrors.ErrPeerVerificationFailed.WithMessage(
		fmt.Sprintf("peer certificate does not carry expected identifier %s", c.expectedID.String()))
}
