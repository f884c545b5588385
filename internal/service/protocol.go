package service

import "encoding/json"

// JSONRPCMessage represents a JSON-RPC 2.0 message.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// CapabilitiesResponse lists the provider's analysis capabilities.
type CapabilitiesResponse struct {
	Capabilities []CapabilityDescriptor `json:"capabilities"`
}

// CapabilityDescriptor is one advertised capability.
type CapabilityDescriptor struct {
	Name            string          `json:"name"`
	TemplateContext json.RawMessage `json:"templateContext,omitempty"`
}

// InitResponse reports the outcome of an init call.
type InitResponse struct {
	Error      string `json:"error"`
	Successful bool   `json:"successful"`
	ID         int64  `json:"id"`
}

// EvaluateParams carries one condition evaluation request.
type EvaluateParams struct {
	Cap           string `json:"cap"`
	ConditionInfo string `json:"conditionInfo"`
}

// PrepareResponse acknowledges a prepare call.
type PrepareResponse struct {
	Error string `json:"error"`
}

// ProgressEvent is a prepare progress notification.
type ProgressEvent struct {
	Type           string `json:"type"`
	ProviderName   string `json:"providerName"`
	FilesProcessed int    `json:"filesProcessed"`
	TotalFiles     int    `json:"totalFiles"`
}

// DependencyResponse answers getDependencies. The host resolves .NET
// dependencies itself, so this surface always reports success with no
// entries.
type DependencyResponse struct {
	Successful bool   `json:"successful"`
	Error      string `json:"error"`
	FileDep    []any  `json:"fileDep"`
}

// DependencyDAGResponse answers getDependenciesDAG; same contract as
// DependencyResponse.
type DependencyDAGResponse struct {
	Successful bool   `json:"successful"`
	Error      string `json:"error"`
	FileDagDep []any  `json:"fileDagDep"`
}

// NotifyFileChangesResponse acknowledges a file-change notification.
type NotifyFileChangesResponse struct {
	Error string `json:"error"`
}
