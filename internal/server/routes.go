// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/handle"
	"github.com/noclook/noclook/internal/relation"
	"github.com/noclook/noclook/internal/store"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-handles",
		Method:      http.MethodGet,
		Path:        "/api/v1/handles",
		Summary:     "List readable handles",
		Tags:        []string{"handles"},
	}, s.handleListHandles)

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-handle",
		Method:        http.MethodPost,
		Path:          "/api/v1/handles",
		Summary:       "Create a handle and its node",
		Tags:          []string{"handles"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateHandle)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-handle",
		Method:      http.MethodGet,
		Path:        "/api/v1/handles/{id}",
		Summary:     "Get a handle with its node properties",
		Tags:        []string{"handles"},
	}, s.handleGetHandle)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-handle-properties",
		Method:      http.MethodPatch,
		Path:        "/api/v1/handles/{id}/properties",
		Summary:     "Merge properties into a handle's node",
		Tags:        []string{"handles"},
	}, s.handleUpdateProperties)

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-handle",
		Method:        http.MethodDelete,
		Path:          "/api/v1/handles/{id}",
		Summary:       "Delete a handle, its node and its relationships",
		Tags:          []string{"handles"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteHandle)

	huma.Register(s.api, huma.Operation{
		OperationID:   "assign-context",
		Method:        http.MethodPut,
		Path:          "/api/v1/handles/{id}/contexts/{context}",
		Summary:       "Add a handle to a context",
		Tags:          []string{"contexts"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleAssignContext)

	huma.Register(s.api, huma.Operation{
		OperationID: "find-or-create-port",
		Method:      http.MethodPost,
		Path:        "/api/v1/handles/{id}/ports",
		Summary:     "Find or create a named port under a handle",
		Tags:        []string{"relationships"},
	}, s.handlePort)

	huma.Register(s.api, huma.Operation{
		OperationID:   "connect",
		Method:        http.MethodPost,
		Path:          "/api/v1/relationships",
		Summary:       "Create a typed relationship between two handles",
		Tags:          []string{"relationships"},
		DefaultStatus: http.StatusCreated,
	}, s.handleConnect)

	huma.Register(s.api, huma.Operation{
		OperationID:   "disconnect",
		Method:        http.MethodDelete,
		Path:          "/api/v1/relationships/{id}",
		Summary:       "Delete a relationship",
		Tags:          []string{"relationships"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDisconnect)

	huma.Register(s.api, huma.Operation{
		OperationID: "authorize",
		Method:      http.MethodGet,
		Path:        "/api/v1/authorize",
		Summary:     "Evaluate an authorization decision for the caller",
		Tags:        []string{"contexts"},
	}, s.handleAuthorize)
}

// --- Request/Response types for huma ---

// HandleView is a handle as returned by the API.
type HandleView struct {
	ID         int64            `json:"handle_id"`
	NodeID     string           `json:"node_id"`
	Name       string           `json:"name"`
	Type       string           `json:"type"`
	MetaType   string           `json:"meta_type"`
	Creator    string           `json:"creator"`
	Modifier   string           `json:"modifier"`
	CreatedAt  time.Time        `json:"created_at"`
	ModifiedAt time.Time        `json:"modified_at"`
	Contexts   []string         `json:"contexts,omitempty"`
	Properties graph.Properties `json:"properties,omitempty"`
}

func newHandleView(h *store.Handle) HandleView {
	return HandleView{
		ID: h.ID, NodeID: h.NodeID, Name: h.Name, Type: h.Type, MetaType: string(h.MetaType),
		Creator: h.Creator, Modifier: h.Modifier, CreatedAt: h.CreatedAt, ModifiedAt: h.ModifiedAt,
	}
}

// NodeView is a graph node as returned by the API.
type NodeView struct {
	ID         string           `json:"node_id"`
	Properties graph.Properties `json:"properties"`
}

// EdgeView is a relationship as returned by the API.
type EdgeView struct {
	ID         string           `json:"edge_id"`
	Type       string           `json:"type"`
	From       string           `json:"from"`
	To         string           `json:"to"`
	Properties graph.Properties `json:"properties"`
}

type handleIDInput struct {
	ID int64 `path:"id" minimum:"1"`
}

type listHandlesInput struct {
	Type   string `query:"type" doc:"Only handles of this node type"`
	Prefix string `query:"prefix" doc:"Only names starting with this prefix"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" default:"100"`
}

type listHandlesOutput struct {
	Body struct {
		Handles []HandleView `json:"handles"`
	}
}

type createHandleInput struct {
	Body struct {
		Name       string           `json:"name" minLength:"1"`
		Type       string           `json:"type" minLength:"1"`
		MetaType   string           `json:"meta_type" enum:"Logical,Physical,Organisation,Location"`
		Context    string           `json:"context" minLength:"1"`
		Properties graph.Properties `json:"properties,omitempty"`
	}
}

type handleOutput struct {
	Body HandleView
}

type updatePropertiesInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body struct {
		Properties graph.Properties `json:"properties"`
	}
}

type nodeOutput struct {
	Body NodeView
}

type assignContextInput struct {
	ID      int64  `path:"id" minimum:"1"`
	Context string `path:"context"`
}

type portInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body struct {
		Name string `json:"name" minLength:"1"`
	}
}

type connectInput struct {
	Body struct {
		From       int64            `json:"from" minimum:"1" doc:"Source handle id"`
		To         int64            `json:"to" minimum:"1" doc:"Target handle id"`
		Type       string           `json:"type" minLength:"1"`
		Properties graph.Properties `json:"properties,omitempty"`
		AutoManage bool             `json:"auto_manage,omitempty"`
	}
}

type edgeOutput struct {
	Body EdgeView
}

type edgeIDInput struct {
	ID string `path:"id"`
}

type authorizeInput struct {
	Action   string `query:"action" required:"true" enum:"read,write,list,admin"`
	Context  string `query:"context" required:"true"`
	HandleID int64  `query:"handle_id" minimum:"0"`
}

type authorizeOutput struct {
	Body struct {
		Allowed bool `json:"allowed"`
	}
}

// --- Handlers ---

func (s *Server) handleListHandles(ctx context.Context, input *listHandlesInput) (*listHandlesOutput, error) {
	user, err := s.user(ctx)
	if err != nil {
		return nil, err
	}
	handles, err := s.svc.ListHandles(ctx, user, store.HandleQuery{Type: input.Type, NamePrefix: input.Prefix, Limit: input.Limit})
	if err != nil {
		return nil, s.apiError(ctx, "listing handles", err)
	}
	out := &listHandlesOutput{}
	out.Body.Handles = make([]HandleView, 0, len(handles))
	for _, h := range handles {
		out.Body.Handles = append(out.Body.Handles, newHandleView(h))
	}
	return out, nil
}

func (s *Server) handleCreateHandle(ctx context.Context, input *createHandleInput) (*handleOutput, error) {
	user, err := s.user(ctx)
	if err != nil {
		return nil, err
	}
	h, err := s.svc.CreateHandle(ctx, user, input.Body.Context, handle.CreateRequest{
		Name:       input.Body.Name,
		Type:       input.Body.Type,
		MetaType:   store.MetaType(input.Body.MetaType),
		Properties: input.Body.Properties,
	})
	if err != nil {
		return nil, s.apiError(ctx, "creating handle", err)
	}
	view := newHandleView(h)
	view.Contexts = []string{input.Body.Context}
	return &handleOutput{Body: view}, nil
}

func (s *Server) handleGetHandle(ctx context.Context, input *handleIDInput) (*handleOutput, error) {
	user, err := s.user(ctx)
	if err != nil {
		return nil, err
	}
	h, err := s.svc.GetHandle(ctx, user, input.ID)
	if err != nil {
		return nil, s.apiError(ctx, "reading handle", err)
	}
	node, err := s.svc.GetNode(ctx, user, input.ID)
	if err != nil {
		return nil, s.apiError(ctx, "reading node", err)
	}
	contexts, err := s.svc.ContextsOf(ctx, user, input.ID)
	if err != nil {
		return nil, s.apiError(ctx, "reading contexts", err)
	}
	view := newHandleView(h)
	view.Contexts = contexts
	view.Properties = node.Properties
	return &handleOutput{Body: view}, nil
}

func (s *Server) handleUpdateProperties(ctx context.Context, input *updatePropertiesInput) (*nodeOutput, error) {
	user, err := s.user(ctx)
	if err != nil {
		return nil, err
	}
	node, err := s.svc.UpdateProperties(ctx, user, input.ID, input.Body.Properties)
	if err != nil {
		return nil, s.apiError(ctx, "updating properties", err)
	}
	return &nodeOutput{Body: NodeView{ID: string(node.ID), Properties: node.Properties}}, nil
}

func (s *Server) handleDeleteHandle(ctx context.Context, input *handleIDInput) (*struct{}, error) {
	user, err := s.user(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.DeleteHandle(ctx, user, input.ID); err != nil {
		return nil, s.apiError(ctx, "deleting handle", err)
	}
	return nil, nil
}

func (s *Server) handleAssignContext(ctx context.Context, input *assignContextInput) (*struct{}, error) {
	user, err := s.user(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.AssignContext(ctx, user, input.ID, input.Context); err != nil {
		return nil, s.apiError(ctx, "assigning context", err)
	}
	return nil, nil
}

func (s *Server) handlePort(ctx context.Context, input *portInput) (*nodeOutput, error) {
	user, err := s.user(ctx)
	if err != nil {
		return nil, err
	}
	port, err := s.svc.FindOrCreatePort(ctx, user, input.ID, input.Body.Name)
	if err != nil {
		return nil, s.apiError(ctx, "finding port", err)
	}
	return &nodeOutput{Body: NodeView{ID: string(port.ID), Properties: port.Properties}}, nil
}

func (s *Server) handleConnect(ctx context.Context, input *connectInput) (*edgeOutput, error) {
	user, err := s.user(ctx)
	if err != nil {
		return nil, err
	}
	from, err := s.svc.GetHandle(ctx, user, input.Body.From)
	if err != nil {
		return nil, s.apiError(ctx, "reading source handle", err)
	}
	to, err := s.svc.GetHandle(ctx, user, input.Body.To)
	if err != nil {
		return nil, s.apiError(ctx, "reading target handle", err)
	}
	edge, err := s.svc.Connect(ctx, user, relation.ConnectRequest{
		From:       graph.NodeID(from.NodeID),
		To:         graph.NodeID(to.NodeID),
		Type:       input.Body.Type,
		Properties: input.Body.Properties,
		AutoManage: input.Body.AutoManage,
	})
	if err != nil {
		return nil, s.apiError(ctx, "connecting", err)
	}
	return &edgeOutput{Body: EdgeView{
		ID: string(edge.ID), Type: edge.Type, From: string(edge.From), To: string(edge.To), Properties: edge.Properties,
	}}, nil
}

func (s *Server) handleDisconnect(ctx context.Context, input *edgeIDInput) (*struct{}, error) {
	user, err := s.user(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Disconnect(ctx, user, graph.EdgeID(input.ID)); err != nil {
		return nil, s.apiError(ctx, "disconnecting", err)
	}
	return nil, nil
}

func (s *Server) handleAuthorize(ctx context.Context, input *authorizeInput) (*authorizeOutput, error) {
	user, err := s.user(ctx)
	if err != nil {
		return nil, err
	}
	var handleID *int64
	if input.HandleID > 0 {
		handleID = &input.HandleID
	}
	ok, err := s.svc.Authorize(ctx, user, store.AuthzAction(input.Action), input.Context, handleID)
	if err != nil {
		return nil, s.apiError(ctx, "authorizing", err)
	}
	out := &authorizeOutput{}
	out.Body.Allowed = ok
	return out, nil
}
