// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package inventory wires the relational store, the graph store and the
// components working across them into one object.
package inventory

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/noclook/noclook/internal/authz"
	"github.com/noclook/noclook/internal/config"
	"github.com/noclook/noclook/internal/freshness"
	"github.com/noclook/noclook/internal/graph"
	_ "github.com/noclook/noclook/internal/graph/neo4j"  // register neo4j backend
	_ "github.com/noclook/noclook/internal/graph/sqlite" // register sqlite backend
	"github.com/noclook/noclook/internal/handle"
	"github.com/noclook/noclook/internal/metrics"
	"github.com/noclook/noclook/internal/relation"
	"github.com/noclook/noclook/internal/store"
	_ "github.com/noclook/noclook/internal/store/sqlite" // register sqlite backend
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// PortType is the node type FindOrCreatePort creates. It is always part of
// the seeded vocabulary.
const PortType = "Port"

// Inventory holds every wired component.
type Inventory struct {
	Rel       store.Store
	Graph     graph.Store
	Handles   *handle.Registry
	Relations *relation.Manager
	Authz     *authz.Engine
	Freshness *freshness.Tracker
	Metrics   *metrics.Metrics

	logger *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	validators map[string]handle.Validator
	rules      []authz.Rule
	directory  authz.Directory
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithValidator registers a property validator for a node type.
func WithValidator(nodeType string, v handle.Validator) Option {
	return func(o *options) { o.validators[nodeType] = v }
}

// WithAuthzRules adds authorization rules on top of the defaults.
func WithAuthzRules(rules ...authz.Rule) Option {
	return func(o *options) { o.rules = append(o.rules, rules...) }
}

// WithDirectory replaces the group directory used for authorization.
func WithDirectory(d authz.Directory) Option {
	return func(o *options) { o.directory = d }
}

// Open opens both stores, seeds the vocabulary and contexts from cfg and
// builds every component.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Inventory, error) {
	logger := resolve(opts).logger

	rules := relation.DefaultRules()
	if cfg.Relations.RulesFile != "" {
		var err error
		if rules, err = relation.LoadRules(cfg.Relations.RulesFile); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, nlerr.Errorf(nlerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	rel, err := store.Open(&store.StorageConfig{Backend: cfg.Storage.Backend, DataDir: cfg.Storage.DataDir})
	if err != nil {
		return nil, err
	}

	g, err := graph.Open(graph.Config{
		Backend: cfg.Graph.Backend,
		DataDir: cfg.Storage.DataDir,
		Neo4j: graph.Neo4jConfig{
			URI:      cfg.Graph.Neo4j.URI,
			Username: cfg.Graph.Neo4j.Username,
			Password: cfg.Graph.Neo4j.Password,
			Database: cfg.Graph.Neo4j.Database,
		},
	})
	if err != nil {
		_ = rel.Close()
		return nil, err
	}

	inv := New(rel, g, rules, opts...)
	if err := inv.seed(ctx, cfg); err != nil {
		_ = inv.Close()
		return nil, err
	}

	logger.InfoContext(ctx, "inventory opened",
		"storage", cfg.Storage.Backend,
		"graph", cfg.Graph.Backend,
		"data_dir", cfg.Storage.DataDir,
	)
	return inv, nil
}

func resolve(opts []Option) *options {
	o := &options{logger: slog.Default(), validators: make(map[string]handle.Validator)}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New builds the components over already opened stores. A nil rules
// table selects the default rules.
func New(rel store.Store, g graph.Store, rules *relation.Rules, opts ...Option) *Inventory {
	o := resolve(opts)
	if rules == nil {
		rules = relation.DefaultRules()
	}
	m := metrics.New()

	handleOpts := []handle.Option{
		handle.WithDetach(relation.DetachIncident),
		handle.WithRenameGuard(relation.UniqueChildNames(rules)),
		handle.WithMetrics(m),
		handle.WithLogger(o.logger),
	}
	for typ, v := range o.validators {
		handleOpts = append(handleOpts, handle.WithValidator(typ, v))
	}
	handles := handle.New(rel, g, handleOpts...)

	relations := relation.New(g, handles, rules,
		relation.WithLogger(o.logger),
		relation.WithPortType(PortType),
	)

	authzOpts := []authz.Option{authz.WithMetrics(m), authz.WithLogger(o.logger)}
	if len(o.rules) > 0 {
		authzOpts = append(authzOpts, authz.WithRules(o.rules...))
	}
	if o.directory != nil {
		authzOpts = append(authzOpts, authz.WithDirectory(o.directory))
	}

	return &Inventory{
		Rel:       rel,
		Graph:     g,
		Handles:   handles,
		Relations: relations,
		Authz:     authz.New(rel, authzOpts...),
		Freshness: freshness.New(g, handles, relations,
			freshness.WithMetrics(m),
			freshness.WithLogger(o.logger),
		),
		Metrics: m,
		logger:  o.logger,
	}
}

func (inv *Inventory) seed(ctx context.Context, cfg *config.Config) error {
	types := append([]config.NodeTypeConfig(nil), cfg.NodeTypes...)
	hasPort := false
	for _, nt := range types {
		hasPort = hasPort || nt.Type == PortType
	}
	if !hasPort {
		types = append(types, config.NodeTypeConfig{Type: PortType})
	}

	for _, nt := range types {
		if err := inv.Rel.NodeTypes().Register(ctx, &store.NodeType{Type: nt.Type, Hidden: nt.Hidden}); err != nil {
			return err
		}
	}
	for _, name := range cfg.Contexts {
		if _, err := inv.Rel.Contexts().Create(ctx, name); err != nil {
			return err
		}
	}

	inv.logger.DebugContext(ctx, "vocabulary seeded", "node_types", len(types), "contexts", len(cfg.Contexts))
	return nil
}

// Service returns the authorization-gated facade.
func (inv *Inventory) Service() *Service {
	return &Service{inv: inv}
}

// Close releases both stores.
func (inv *Inventory) Close() error {
	var errs []error
	if inv.Graph != nil {
		if err := inv.Graph.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if inv.Rel != nil {
		if err := inv.Rel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
