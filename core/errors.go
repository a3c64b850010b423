package core

import (
	"fmt"

	"emperror.dev/errors"
)

const (
	ErrFileNotFound  = errors.Sentinel("file not found")
	ErrInvalidRecord = errors.Sentinel("invalid record document")
	ErrMissingLayout = errors.Sentinel("layout file missing")

	ErrRouteNotFound = errors.Sentinel("route not found")
	ErrRouteExists   = errors.Sentinel("route already exists")
	ErrRouteReserved = errors.Sentinel("route is reserved")
	ErrInvalidRoute  = errors.Sentinel("invalid route")

	ErrWatcherNotRunning = errors.Sentinel("not running")
	ErrWatcherRunning    = errors.Sentinel("already running")

	ErrInvalidInput = errors.Sentinel("invalid input")
)

// PluginError is reported by a plugin that could not render a file
type PluginError struct {
	Plugin string
	File   string
	Err    error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s processing file %s: %v", e.Plugin, e.File, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

func NewPluginError(plugin, file string, err error) *PluginError {
	return &PluginError{Plugin: plugin, File: file, Err: err}
}

// RouterError names the route an operation of the RouterManager failed on
type RouterError struct {
	Op    string
	Route string
	Err   error
}

func (e *RouterError) Error() string {
	return fmt.Sprintf("router %s %s: %v", e.Op, e.Route, e.Err)
}

func (e *RouterError) Unwrap() error {
	return e.Err
}

func NewRouterError(op, route string, err error) *RouterError {
	return &RouterError{Op: op, Route: route, Err: err}
}

// ValidationError rejects a single input value
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s (value: %v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}
