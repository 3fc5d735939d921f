package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/agentweave/agentweave/internal/core/domain"
)

// handleTaskSend implements the task.send JSON-RPC method: it creates a task,
// dispatches it to the matching capability handler in the background, and
// returns the task's initial (pending) representation immediately. Grounded
// in server.py's _handle_task_send, adapted from asyncio.create_task to a
// plain goroutine since Go has no event loop to hand work back to.
func (s *Server) handleTaskSend(w http.ResponseWriter, ctx context.Context, req rpcRequest, caller domain.WorkloadIdentifier) {
	var params taskSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPCError(w, req.ID, rpcErrInvalidParams, "invalid params: "+err.Error())
		return
	}
	if params.TaskType == "" {
		writeRPCError(w, req.ID, rpcErrInvalidParams, "missing required parameter: task_type")
		return
	}
	if _, ok := s.registry.Lookup(params.TaskType); !ok {
		writeRPCError(w, req.ID, rpcErrServer, "no handler registered for task type: "+params.TaskType)
		return
	}

	messages := parseMessages(params.Messages)
	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["caller"] = caller.String()

	task := s.tasks.CreateTask(params.TaskType, params.Payload, messages, metadata)
	pending := task.Snapshot()

	go s.executeTask(task.ID, caller, params.TaskType, params.Payload)

	writeResult(w, req.ID, pending)
}

// executeTask runs a task's capability handler to completion and records the
// outcome back onto the task, mirroring server.py's _execute_task.
func (s *Server) executeTask(taskID string, caller domain.WorkloadIdentifier, taskType string, payload map[string]any) {
	if _, err := s.tasks.UpdateTask(taskID, domain.TaskStateRunning, nil, ""); err != nil {
		s.logger.Error("failed to mark task running", "task_id", taskID, "error", err)
		return
	}

	result, err := s.registry.Dispatch(context.Background(), caller, taskType, payload)
	if err != nil {
		if _, uerr := s.tasks.UpdateTask(taskID, domain.TaskStateFailed, nil, err.Error()); uerr != nil {
			s.logger.Error("failed to mark task failed", "task_id", taskID, "error", uerr)
		}
		return
	}

	if _, uerr := s.tasks.UpdateTask(taskID, domain.TaskStateCompleted, result, ""); uerr != nil {
		s.logger.Error("failed to mark task completed", "task_id", taskID, "error", uerr)
	}
}

// handleTaskStatus implements the task.status JSON-RPC method.
func (s *Server) handleTaskStatus(w http.ResponseWriter, req rpcRequest) {
	var params taskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.TaskID == "" {
		writeRPCError(w, req.ID, rpcErrInvalidParams, "missing required parameter: task_id")
		return
	}

	task, err := s.tasks.GetTask(params.TaskID)
	if err != nil {
		writeRPCError(w, req.ID, rpcErrServer, "task not found: "+params.TaskID)
		return
	}
	writeResult(w, req.ID, task.Snapshot())
}

// handleTaskCancel implements the task.cancel JSON-RPC method.
func (s *Server) handleTaskCancel(w http.ResponseWriter, req rpcRequest) {
	var params taskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.TaskID == "" {
		writeRPCError(w, req.ID, rpcErrInvalidParams, "missing required parameter: task_id")
		return
	}

	task, err := s.tasks.CancelTask(params.TaskID)
	if err != nil {
		writeRPCError(w, req.ID, rpcErrServer, "task not found: "+params.TaskID)
		return
	}
	writeResult(w, req.ID, task.Snapshot())
}

func parseMessages(raw []map[string]any) []domain.Message {
	if len(raw) == 0 {
		return nil
	}
	messages := make([]domain.Message, 0, len(raw))
	for _, m := range raw {
		role, _ := m["role"].(string)
		var parts []domain.MessagePart
		if rawParts, ok := m["parts"].([]any); ok {
			for _, rp := range rawParts {
				pm, ok := rp.(map[string]any)
				if !ok {
					continue
				}
				t, _ := pm["type"].(string)
				c, _ := pm["content"].(string)
				parts = append(parts, domain.MessagePart{Type: t, Content: c})
			}
		}
		messages = append(messages, domain.Message{Role: role, Parts: parts})
	}
	return messages
}
