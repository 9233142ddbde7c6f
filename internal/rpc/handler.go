package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"relfiles/internal/errors"
	"relfiles/internal/related"
)

type methodHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// FileParams addresses one file of one workspace.
type FileParams struct {
	Workspace string `json:"workspace"`
	File      string `json:"file,omitempty"`
}

// FilesResult is the result of relatedFiles/get and relatedFiles/refresh.
type FilesResult struct {
	Files []related.FileView `json:"files"`
}

// ClearedResult reports how many cached entries a call removed.
type ClearedResult struct {
	Cleared int `json:"cleared"`
}

// SweepResult is the result of relatedFiles/sweep.
type SweepResult struct {
	Evicted int `json:"evicted"`
}

// InitializeResult describes the server to the host.
type InitializeResult struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Methods []string `json:"methods"`
}

// Methods lists every method the server answers, in display order.
var Methods = []string{
	"initialize",
	"relatedFiles/get",
	"relatedFiles/preload",
	"relatedFiles/refresh",
	"relatedFiles/invalidate",
	"relatedFiles/sweep",
	"shutdown",
	"exit",
}

func (s *Server) registerMethods() {
	s.methods = map[string]methodHandler{
		"initialize":              s.handleInitialize,
		"relatedFiles/get":        s.handleGet,
		"relatedFiles/preload":    s.handlePreload,
		"relatedFiles/refresh":    s.handleRefresh,
		"relatedFiles/invalidate": s.handleInvalidate,
		"relatedFiles/sweep":      s.handleSweep,
	}
}

// handleMessage dispatches a request or notification. Notifications never
// produce a response.
func (s *Server) handleMessage(ctx context.Context, msg *Message) *Message {
	requestID := uuid.NewString()
	if msg.Id != nil {
		requestID = fmt.Sprint(msg.Id)
	}
	logger := s.logger.With("requestId", requestID, "method", msg.Method)
	logger.Debug("Handling message")

	handler, ok := s.methods[msg.Method]
	if !ok {
		if msg.IsNotification() {
			logger.Debug("Unknown notification")
			return nil
		}
		return NewErrorMessage(msg.Id, MethodNotFound, fmt.Sprintf("Method not found: %s", msg.Method), nil)
	}

	result, err := handler(ctx, msg.Params)
	if err != nil {
		logger.Warn("Request failed", "error", err.Error())
		if msg.IsNotification() {
			return nil
		}
		return errorResponse(msg.Id, err)
	}
	if msg.IsNotification() {
		return nil
	}
	return NewResultMessage(msg.Id, result)
}

func errorResponse(id interface{}, err error) *Message {
	if rpcErr, ok := err.(*Error); ok {
		return NewErrorMessage(id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}
	return NewErrorMessage(id, InternalError, err.Error(), map[string]string{"code": string(errors.CodeOf(err))})
}

func decodeParams(raw json.RawMessage, into interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return &Error{Code: InvalidParams, Message: "Invalid params: " + err.Error()}
	}
	return nil
}

func invalidParams(msg string) error {
	return &Error{Code: InvalidParams, Message: msg}
}

func (s *Server) fileParams(raw json.RawMessage, requireFile bool) (FileParams, error) {
	var p FileParams
	if err := decodeParams(raw, &p); err != nil {
		return p, err
	}
	if p.Workspace == "" {
		return p, invalidParams("workspace is required")
	}
	if requireFile && p.File == "" {
		return p, invalidParams("file is required")
	}
	return p, nil
}

func (s *Server) handleInitialize(context.Context, json.RawMessage) (interface{}, error) {
	return InitializeResult{Name: "relfiles", Version: s.version, Methods: Methods}, nil
}

func (s *Server) handleGet(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	p, err := s.fileParams(raw, true)
	if err != nil {
		return nil, err
	}
	files := s.service.GetRelatedFiles(ctx, p.Workspace, p.File)
	return FilesResult{Files: related.Views(p.Workspace, files)}, nil
}

func (s *Server) handlePreload(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	p, err := s.fileParams(raw, true)
	if err != nil {
		return nil, err
	}
	s.service.Preload(ctx, p.Workspace, p.File)
	return struct{}{}, nil
}

// handleRefresh recomputes one file when a file is given. Otherwise it
// clears the workspace, or everything when no workspace is given either.
func (s *Server) handleRefresh(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p FileParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	switch {
	case p.File != "" && p.Workspace == "":
		return nil, invalidParams("workspace is required with file")
	case p.File != "":
		files := s.service.Refresh(ctx, p.Workspace, p.File)
		return FilesResult{Files: related.Views(p.Workspace, files)}, nil
	case p.Workspace != "":
		return ClearedResult{Cleared: s.service.InvalidateWorkspace(p.Workspace)}, nil
	default:
		return ClearedResult{Cleared: s.service.InvalidateAll()}, nil
	}
}

func (s *Server) handleInvalidate(_ context.Context, raw json.RawMessage) (interface{}, error) {
	p, err := s.fileParams(raw, false)
	if err != nil {
		return nil, err
	}
	if p.File == "" {
		return ClearedResult{Cleared: s.service.InvalidateWorkspace(p.Workspace)}, nil
	}
	cleared := 0
	if s.service.Invalidate(p.Workspace, p.File) {
		cleared = 1
	}
	return ClearedResult{Cleared: cleared}, nil
}

func (s *Server) handleSweep(context.Context, json.RawMessage) (interface{}, error) {
	return SweepResult{Evicted: s.service.Sweep()}, nil
}
