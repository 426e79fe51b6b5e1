package calendar

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rbaliyan/calendar/store"
)

// Plugin defines the interface for calendar extensions.
// Plugins can hook into invitation dispatch to add custom behavior such as
// rate limiting, recipient filtering, or content policy checks.
//
// For observing other operations (create, cancel, delete, etc.),
// use the event system instead (Service.Events()).
type Plugin interface {
	// Name returns the plugin identifier.
	Name() string
	// Init initializes the plugin. Called when service connects.
	Init(ctx context.Context) error
	// Close cleans up plugin resources. Called when service closes.
	Close(ctx context.Context) error
}

// DispatchHook is called before/after invitation dispatch.
// This is the primary extension point for dispatch validation and filtering.
type DispatchHook interface {
	Plugin
	// BeforeDispatch is called before invites fan out. Return an error to abort.
	// Use this for rate limiting or recipient policy checks.
	BeforeDispatch(ctx context.Context, p Principal, ev *store.Event) error
	// AfterDispatch is called after a fan-out completes, including partially
	// failed ones. Return an error to signal post-dispatch failures.
	// Note: delivered invites cannot be recalled.
	AfterDispatch(ctx context.Context, p Principal, result *DispatchResult) error
}

// pluginRegistry holds registered plugins.
type pluginRegistry struct {
	all      []Plugin
	dispatch []DispatchHook
	logger   *slog.Logger
}

// newPluginRegistry creates a new plugin registry.
func newPluginRegistry(logger *slog.Logger) *pluginRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &pluginRegistry{logger: logger}
}

// register adds a plugin to the registry.
func (r *pluginRegistry) register(p Plugin) {
	r.all = append(r.all, p)

	if h, ok := p.(DispatchHook); ok {
		r.dispatch = append(r.dispatch, h)
	}
}

// initAll initializes all plugins.
// On failure, already-initialized plugins are closed in reverse order.
func (r *pluginRegistry) initAll(ctx context.Context) error {
	for i, p := range r.all {
		if err := p.Init(ctx); err != nil {
			// Close already-initialized plugins in reverse order
			for j := i - 1; j >= 0; j-- {
				if closeErr := r.all[j].Close(ctx); closeErr != nil {
					r.logger.Error("failed to close plugin during init rollback",
						"plugin", r.all[j].Name(), "error", closeErr)
				}
			}
			return &PluginError{Plugin: p.Name(), Op: "init", Err: err}
		}
	}
	return nil
}

// closeAll closes all plugins in reverse order.
func (r *pluginRegistry) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(r.all) - 1; i >= 0; i-- {
		if err := r.all[i].Close(ctx); err != nil {
			errs = append(errs, &PluginError{Plugin: r.all[i].Name(), Op: "close", Err: err})
		}
	}
	return errors.Join(errs...)
}

// PluginError represents an error from a plugin.
type PluginError struct {
	Plugin string
	Op     string
	Err    error
}

func (e *PluginError) Error() string {
	return "plugin " + e.Plugin + " " + e.Op + ": " + e.Err.Error()
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// Hook execution helpers

func (r *pluginRegistry) beforeDispatch(ctx context.Context, p Principal, ev *store.Event) error {
	for _, h := range r.dispatch {
		if err := h.BeforeDispatch(ctx, p, ev); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "BeforeDispatch", Err: err}
		}
	}
	return nil
}

func (r *pluginRegistry) afterDispatch(ctx context.Context, p Principal, result *DispatchResult) error {
	for _, h := range r.dispatch {
		if err := h.AfterDispatch(ctx, p, result); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "AfterDispatch", Err: err}
		}
	}
	return nil
}
