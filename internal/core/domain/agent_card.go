package domain

import "sync"

// CapabilitySummary is the public, wire-safe description of a registered
// capability, as advertised on the agent card. It omits the handler and peer
// patterns, which are enforcement details, not discovery details.
type CapabilitySummary struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	AcceptedInputs  []string `json:"accepted_inputs,omitempty"`
	ProducedOutputs []string `json:"produced_outputs,omitempty"`
}

// AgentCard is the self-description an agent publishes at
// /.well-known/agent.json (spec.md §3 "Agent Card"). The card's identity
// fields are fixed at construction; its capability list may only grow, via
// RegisterCapability, mirroring a running agent registering capabilities
// over its lifetime without ever being able to misrepresent its identity.
type AgentCard struct {
	mu sync.RWMutex

	Name         string              `json:"name"`
	Description  string              `json:"description"`
	URL          string              `json:"url"`
	Version      string              `json:"version"`
	Capabilities []CapabilitySummary `json:"capabilities"`
	AuthSchemes  []string            `json:"auth_schemes"`
	Extensions   AgentCardExtensions `json:"extensions"`
}

// AgentCardExtensions carries agentweave-specific identity metadata that
// isn't part of a generic agent card but is required for peers to perform
// transport-level authorization before ever invoking a capability.
type AgentCardExtensions struct {
	WorkloadIdentifier string `json:"workload_identifier"`
	TrustDomain        string `json:"trust_domain"`
	Protocol           string `json:"protocol"`
}

// NewAgentCard builds a card for the given identity. Capabilities start empty
// and are populated via RegisterCapability as the agent registers them.
func NewAgentCard(name, description, url, version string, identifier WorkloadIdentifier) *AgentCard {
	return &AgentCard{
		Name:        name,
		Description: description,
		URL:         url,
		Version:     version,
		AuthSchemes: []string{"mtls"},
		Extensions: AgentCardExtensions{
			WorkloadIdentifier: identifier.String(),
			TrustDomain:        identifier.TrustDomain(),
			Protocol:           "jsonrpc2.0+sse",
		},
	}
}

// RegisterCapability appends a capability summary to the card. Safe for
// concurrent use alongside Snapshot/MarshalJSON readers.
func (c *AgentCard) RegisterCapability(cap Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Capabilities = append(c.Capabilities, CapabilitySummary{
		Name:            cap.Name,
		Description:     cap.Description,
		AcceptedInputs:  cap.AcceptedInputs,
		ProducedOutputs: cap.ProducedOutputs,
	})
}

// Snapshot returns a copy of the card safe to serialize without racing
// against a concurrent RegisterCapability call.
func (c *AgentCard) Snapshot() AgentCard {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := *c
	cp.Capabilities = append([]CapabilitySummary(nil), c.Capabilities...)
	return cp
}
