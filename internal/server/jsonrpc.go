// Package server implements agentweave's request surface: JSON-RPC 2.0 task
// dispatch, the agent card well-known endpoint, an SSE task-update stream and
// a health check, all served over the mTLS listener built from an
// ports.IdentityProvider (spec.md §4.8 "Request Server", §6 "Transport").
//
// Grounded in original_source/agentweave/comms/a2a/server.py's A2AServer
// (routes, JSON-RPC method names, SSE event framing) and the net/http.Server
// plus signal.NotifyContext-driven graceful shutdown idiom used elsewhere in
// this tree's transport layer.
package server

import (
	"encoding/json"
	"net/http"
)

// jsonrpcVersion is the only protocol version this server accepts.
const jsonrpcVersion = "2.0"

// JSON-RPC 2.0 reserved error codes (https://www.jsonrpc.org/specification).
const (
	rpcErrParse          = -32700
	rpcErrInvalidRequest = -32600
	rpcErrMethodNotFound = -32601
	rpcErrInvalidParams  = -32602
	rpcErrServer         = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

func writeResult(w http.ResponseWriter, id any, result any) {
	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: jsonrpcVersion, Result: result, ID: id})
}

func writeRPCError(w http.ResponseWriter, id any, code int, message string) {
	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: jsonrpcVersion, Error: &rpcError{Code: code, Message: message}, ID: id})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// taskSendParams is the params document for the task.send RPC method.
type taskSendParams struct {
	TaskType string            `json:"task_type"`
	Payload  map[string]any    `json:"payload"`
	Messages []map[string]any  `json:"messages"`
	Metadata map[string]any    `json:"metadata"`
}

type taskIDParams struct {
	TaskID string `json:"task_id"`
}

// handleRPC dispatches a parsed JSON-RPC request to the method-specific handler.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, rpcErrParse, "parse error")
		return
	}
	if req.JSONRPC != jsonrpcVersion {
		writeRPCError(w, req.ID, rpcErrInvalidRequest, "invalid request: jsonrpc must be \"2.0\"")
		return
	}

	caller := peerIdentifier(r)

	switch req.Method {
	case "task.send":
		s.handleTaskSend(w, r.Context(), req, caller)
	case "task.status":
		s.handleTaskStatus(w, req)
	case "task.cancel":
		s.handleTaskCancel(w, req)
	default:
		writeRPCError(w, req.ID, rpcErrMethodNotFound, "method not found: "+req.Method)
	}
}
