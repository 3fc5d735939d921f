package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// AuthorizationDecision is the result of evaluating a policy for a single
// (caller, capability, input-digest) tuple (spec.md §3 "Authorization Decision").
type AuthorizationDecision struct {
	Allowed  bool
	Reason   string
	PolicyID string
	AuditID  string
}

// DecisionCacheKey identifies a cacheable authorization decision. Two calls
// with the same caller, capability and input document digest are considered
// the same decision (spec.md §3 "Decision Cache Key").
type DecisionCacheKey struct {
	Caller     string
	Capability string
	InputHash  string
}

// String renders the cache key as a single string suitable for use as an LRU map key.
func (k DecisionCacheKey) String() string {
	return k.Caller + "|" + k.Capability + "|" + k.InputHash
}

// NewDecisionCacheKey builds a cache key from the caller's workload identifier,
// the capability name, and the policy input document. The input document is
// canonicalized (sorted keys, stable separators) before hashing so that
// semantically identical documents produce the same key regardless of map
// iteration order upstream.
func NewDecisionCacheKey(caller WorkloadIdentifier, capability string, input map[string]any) DecisionCacheKey {
	return DecisionCacheKey{
		Caller:     caller.String(),
		Capability: capability,
		InputHash:  hashInputDocument(input),
	}
}

func hashInputDocument(input map[string]any) string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, input[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
