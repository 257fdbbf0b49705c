// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package handle

import (
	"context"
	"maps"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/saga"
	"github.com/noclook/noclook/internal/store"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// reservedKeys cannot be changed through UpdateProperties.
var reservedKeys = []string{graph.KeyHandleID, graph.KeyNodeType, graph.KeyNodeMetaType}

// CreateRequest describes a new handle and its node.
type CreateRequest struct {
	Name     string
	Type     string
	MetaType store.MetaType
	Creator  string
	// Properties are extra domain properties for the node.
	Properties graph.Properties
}

// Create allocates a handle and its backing node. On failure neither
// side persists.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*store.Handle, error) {
	h, err := r.create(ctx, req, false)
	r.metrics.HandleOp("create", err)
	return h, err
}

// GetOrCreateUnique returns the handle named name of type typ, creating it
// when absent. A handle made through Create counts as existing. Concurrent
// callers agree on a single handle: the relational unique claim decides
// the winner, and in-process callers share one attempt. A loser may
// observe the winner before its node is bound.
//
// The shared attempt is detached from every caller's cancellation; each
// caller stops waiting when its own ctx ends.
func (r *Registry) GetOrCreateUnique(ctx context.Context, req CreateRequest) (*store.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := r.unique.DoChan(uniqueKey(req.Name, req.Type), func() (any, error) {
		return r.getOrCreateUnique(context.WithoutCancel(ctx), req)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		r.metrics.HandleOp("get_or_create", ctx.Err())
		return nil, ctx.Err()
	case res = <-ch:
	}
	r.metrics.HandleOp("get_or_create", res.Err)
	if res.Err != nil {
		return nil, res.Err
	}
	h := *res.Val.(*store.Handle)
	return &h, nil
}

func (r *Registry) getOrCreateUnique(ctx context.Context, req CreateRequest) (*store.Handle, error) {
	existing, err := r.rel.Handles().GetUnique(ctx, req.Name, req.Type)
	if err == nil {
		return existing, nil
	}
	if !nlerr.IsNotFound(err) {
		return nil, err
	}

	h, err := r.create(ctx, req, true)
	if err == nil {
		return h, nil
	}
	if !nlerr.IsConflict(err) {
		return nil, err
	}

	r.logger.DebugContext(ctx, "lost unique handle race", "name", req.Name, "type", req.Type)
	return r.rel.Handles().GetUnique(ctx, req.Name, req.Type)
}

func (r *Registry) create(ctx context.Context, req CreateRequest, unique bool) (*store.Handle, error) {
	if req.Name == "" || req.Type == "" {
		return nil, nlerr.New(nlerr.CodeHandleInvalid, "handle requires name and type")
	}
	if err := r.validateType(ctx, req.Type, req.MetaType); err != nil {
		return nil, err
	}

	now := r.now()
	h := &store.Handle{
		Name:       req.Name,
		Type:       req.Type,
		MetaType:   req.MetaType,
		Creator:    req.Creator,
		Modifier:   req.Creator,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	var nodeID graph.NodeID

	err := saga.Run(ctx,
		saga.Step{
			Name: "insert handle",
			Do: func(ctx context.Context) error {
				return r.rel.Handles().Create(ctx, h, unique)
			},
			Undo: func(ctx context.Context) error {
				_, err := r.rel.Handles().Delete(ctx, h.ID)
				return err
			},
		},
		saga.Step{
			Name: "create node",
			Do: func(ctx context.Context) error {
				return graph.Update(ctx, r.graph, func(tx graph.Tx) error {
					id, err := tx.CreateNode(ctx, nodeProperties(h, req.Properties))
					nodeID = id
					return err
				})
			},
			Undo: func(ctx context.Context) error {
				return graph.Update(ctx, r.graph, func(tx graph.Tx) error {
					return tx.DeleteNode(ctx, nodeID)
				})
			},
		},
		saga.Step{
			Name: "bind node",
			Do: func(ctx context.Context) error {
				return r.rel.Handles().BindNode(ctx, h.ID, string(nodeID))
			},
		},
	)
	if err != nil {
		if h.ID != 0 {
			r.metrics.Compensated("create")
		}
		return nil, err
	}

	h.NodeID = string(nodeID)
	r.logger.InfoContext(ctx, "handle created", "handle_id", h.ID, "node_id", h.NodeID, "type", h.Type)
	r.audit(ctx, "handle.create", req.Creator, h.ID, map[string]any{"name": h.Name, "type": h.Type}, nil)
	return h, nil
}

// UpdateProperties merges props into the node of handle id, then stamps
// the handle with modifier. Keys absent from props are preserved.
func (r *Registry) UpdateProperties(ctx context.Context, id int64, props graph.Properties, modifier string) (*graph.Node, error) {
	node, err := r.updateProperties(ctx, id, props, modifier)
	r.metrics.HandleOp("update", err)
	return node, err
}

func (r *Registry) updateProperties(ctx context.Context, id int64, props graph.Properties, modifier string) (*graph.Node, error) {
	h, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		before graph.Properties
		after  *graph.Node
	)
	touch := store.Touch{Modifier: modifier}
	if name, ok := props[graph.KeyName]; ok {
		s, isString := name.(string)
		if !isString || s == "" {
			return nil, nlerr.New(nlerr.CodeHandleInvalid, "name must be a non-empty string", nlerr.FieldHandleID(id))
		}
		if s != h.Name {
			touch.Name = &s
		}
	}

	err = saga.Run(ctx,
		saga.Step{
			Name: "merge properties",
			Do: func(ctx context.Context) error {
				return graph.Update(ctx, r.graph, func(tx graph.Tx) error {
					node, err := r.loadNode(ctx, tx, h)
					if err != nil {
						return err
					}
					if err := checkReserved(node.Properties, props, id); err != nil {
						return err
					}
					if touch.Name != nil {
						for _, guard := range r.renames {
							if err := guard(ctx, tx, node, *touch.Name); err != nil {
								return err
							}
						}
					}
					merged := node.Properties.Merge(props)
					if v := r.validators[h.Type]; v != nil {
						if err := v(merged); err != nil {
							return nlerr.Wrap(err, nlerr.CodeHandleInvalid, "property validation failed",
								nlerr.FieldHandleID(id), nlerr.Field("type", h.Type))
						}
					}
					if err := tx.SetNodeProperties(ctx, node.ID, props, false); err != nil {
						return err
					}
					before = node.Properties
					after = &graph.Node{ID: node.ID, Properties: merged}
					return nil
				})
			},
			Undo: func(ctx context.Context) error {
				return graph.Update(ctx, r.graph, func(tx graph.Tx) error {
					return tx.SetNodeProperties(ctx, after.ID, before, true)
				})
			},
		},
		saga.Step{
			Name: "touch handle",
			Do: func(ctx context.Context) error {
				touch.At = r.now()
				return r.rel.Handles().Touch(ctx, id, touch)
			},
		},
	)
	if err != nil {
		if before != nil {
			r.metrics.Compensated("update")
		}
		return nil, err
	}

	r.audit(ctx, "handle.update", modifier, id, map[string]any{"keys": keysOf(props)}, nil)
	return after, nil
}

// Delete removes the node's incident edges, the node, and the handle row.
// Only edges touching the node are removed; neighbours are left alone.
func (r *Registry) Delete(ctx context.Context, id int64, actor string) error {
	err := r.delete(ctx, id, actor)
	r.metrics.HandleOp("delete", err)
	return err
}

func (r *Registry) delete(ctx context.Context, id int64, actor string) error {
	h, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	var snap *store.HandleSnapshot
	err = saga.Run(ctx,
		saga.Step{
			Name: "delete handle",
			Do: func(ctx context.Context) error {
				var err error
				snap, err = r.rel.Handles().Delete(ctx, id)
				return err
			},
			Undo: func(ctx context.Context) error {
				return r.rel.Handles().Restore(ctx, snap)
			},
		},
		saga.Step{
			Name: "delete node",
			Do: func(ctx context.Context) error {
				return graph.Update(ctx, r.graph, func(tx graph.Tx) error {
					node, err := r.loadNode(ctx, tx, h)
					if err != nil {
						return err
					}
					if err := r.detach(ctx, tx, node.ID); err != nil {
						return err
					}
					return tx.DeleteNode(ctx, node.ID)
				})
			},
		},
	)
	if err != nil {
		if snap != nil {
			r.metrics.Compensated("delete")
		}
		return err
	}

	r.logger.InfoContext(ctx, "handle deleted", "handle_id", id, "node_id", h.NodeID)
	r.audit(ctx, "handle.delete", actor, id, map[string]any{"name": h.Name, "type": h.Type}, nil)
	return nil
}

func checkReserved(current, update graph.Properties, id int64) error {
	for _, key := range reservedKeys {
		v, ok := update[key]
		if !ok {
			continue
		}
		if !graph.ValuesEqual(current[key], v) {
			return nlerr.New(nlerr.CodeHandleInvalid, "reserved property cannot change",
				nlerr.FieldHandleID(id), nlerr.Field("key", key))
		}
	}
	return nil
}

func keysOf(props graph.Properties) []string {
	return slices.Sorted(maps.Keys(props))
}
