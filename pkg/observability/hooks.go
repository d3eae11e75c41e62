// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about dependency lifecycle operations, path resolution,
// and debug-server sessions.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetDependencyHooks(&myDependencyHooks{})
//	    observability.SetDebugHooks(&myDebugHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Dependencies().OnInstallStart(ctx, pkg)
//	// ... run pip ...
//	observability.Dependencies().OnInstallComplete(ctx, pkg, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Dependency Hooks
// =============================================================================

// DependencyHooks receives events from dependency lifecycle operations.
type DependencyHooks interface {
	// Install events
	OnInstallStart(ctx context.Context, pkg string)
	OnInstallComplete(ctx context.Context, pkg string, duration time.Duration, err error)

	// Uninstall events
	OnUninstallStart(ctx context.Context, pkg string)
	OnUninstallComplete(ctx context.Context, pkg string, duration time.Duration, err error)

	// OnImport records a module import through the registry.
	// cached is true when the registry returned an existing handle.
	OnImport(ctx context.Context, module string, cached bool, err error)
}

// =============================================================================
// Resolver Hooks
// =============================================================================

// ResolverHooks receives events from path-resolution probes.
type ResolverHooks interface {
	// OnStrategy records the outcome of a single resolution strategy.
	OnStrategy(ctx context.Context, strategy string, path string, found bool)

	// OnResolved records the final resolution outcome.
	OnResolved(ctx context.Context, pkg string, path string, found bool)
}

// =============================================================================
// Debug Session Hooks
// =============================================================================

// DebugHooks receives events from the debug listener and its sessions.
type DebugHooks interface {
	// OnListen records a successful socket bind.
	OnListen(ctx context.Context, addr string)

	// OnSessionStart records a recognized editor connection.
	OnSessionStart(ctx context.Context, sessionID, clientID string)

	// OnSessionEnd records the end of an editor session.
	OnSessionEnd(ctx context.Context, sessionID string, duration time.Duration, err error)

	// OnAttachResult records the outcome of an attach-confirmation wait.
	OnAttachResult(ctx context.Context, attached bool, waited time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopDependencyHooks is a no-op implementation of DependencyHooks.
type NoopDependencyHooks struct{}

func (NoopDependencyHooks) OnInstallStart(context.Context, string)                            {}
func (NoopDependencyHooks) OnInstallComplete(context.Context, string, time.Duration, error)   {}
func (NoopDependencyHooks) OnUninstallStart(context.Context, string)                          {}
func (NoopDependencyHooks) OnUninstallComplete(context.Context, string, time.Duration, error) {}
func (NoopDependencyHooks) OnImport(context.Context, string, bool, error)                     {}

// NoopResolverHooks is a no-op implementation of ResolverHooks.
type NoopResolverHooks struct{}

func (NoopResolverHooks) OnStrategy(context.Context, string, string, bool) {}
func (NoopResolverHooks) OnResolved(context.Context, string, string, bool) {}

// NoopDebugHooks is a no-op implementation of DebugHooks.
type NoopDebugHooks struct{}

func (NoopDebugHooks) OnListen(context.Context, string)                           {}
func (NoopDebugHooks) OnSessionStart(context.Context, string, string)             {}
func (NoopDebugHooks) OnSessionEnd(context.Context, string, time.Duration, error) {}
func (NoopDebugHooks) OnAttachResult(context.Context, bool, time.Duration)        {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	dependencyHooks DependencyHooks = NoopDependencyHooks{}
	resolverHooks   ResolverHooks   = NoopResolverHooks{}
	debugHooks      DebugHooks      = NoopDebugHooks{}
	hooksMu         sync.RWMutex
)

// SetDependencyHooks registers custom dependency hooks.
// This should be called once at application startup before any lifecycle operations.
func SetDependencyHooks(h DependencyHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		dependencyHooks = h
	}
}

// SetResolverHooks registers custom resolver hooks.
// This should be called once at application startup before any resolution runs.
func SetResolverHooks(h ResolverHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		resolverHooks = h
	}
}

// SetDebugHooks registers custom debug-session hooks.
// This should be called once at application startup before the listener starts.
func SetDebugHooks(h DebugHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		debugHooks = h
	}
}

// Dependencies returns the registered dependency hooks.
func Dependencies() DependencyHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return dependencyHooks
}

// Resolver returns the registered resolver hooks.
func Resolver() ResolverHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return resolverHooks
}

// Debug returns the registered debug-session hooks.
func Debug() DebugHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return debugHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	dependencyHooks = NoopDependencyHooks{}
	resolverHooks = NoopResolverHooks{}
	debugHooks = NoopDebugHooks{}
}
