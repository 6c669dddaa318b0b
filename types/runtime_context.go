// Package types provides core type definitions shared across foundry.
package types

import json "github.com/goccy/go-json"

// RuntimeContext is the per-request key/value bag made available to agent
// instruction templates and tool functions. It carries request-scoped
// preferences such as the user id, session id or analysis type. A
// RuntimeContext is built once per request and treated as read-only while
// the run is in flight; tools may return a replacement map to extend it
// for the remainder of the run.
//
// Instruction templates address it directly:
//
//	agent.Instructions(`Answer for user {{.user_id}} in {{.language}}.`)
//
// RuntimeContext is a plain map and is not safe for concurrent mutation.
type RuntimeContext map[string]any

// String returns the JSON rendering of the context, or "" when it cannot
// be marshaled. Useful for logging and event metadata.
func (rc RuntimeContext) String() string {
	jsonData, err := json.Marshal(rc)
	if err != nil {
		return ""
	}
	return string(jsonData)
}
