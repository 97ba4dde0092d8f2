package agentloop

import "fmt"

// DuplicateToolError is returned by Registry.Register on a name collision.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// UnknownToolError is returned by Registry.Resolve for an unregistered name.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// FrozenRegistryError is returned when registering after Freeze. The model's
// view of the catalog must not change mid-task.
type FrozenRegistryError struct {
	Name string
}

func (e *FrozenRegistryError) Error() string {
	return fmt.Sprintf("cannot register tool %q: registry is frozen", e.Name)
}

// ValidationError means a tool call's arguments did not satisfy the tool's
// parameter schema. Detail always names the offending parameter.
type ValidationError struct {
	Tool   string
	Param  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: parameter %q: %s", e.Tool, e.Param, e.Detail)
}
