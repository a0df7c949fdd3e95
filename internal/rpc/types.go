package rpc

import (
	"encoding/json"

	"github.com/Klingon-tech/klingnet-consolidator/internal/consolidate"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// Application codes.
	CodeAlreadyRunning    = -32001
	CodeInsufficientCoins = -32002
	CodeNodeUnavailable   = -32003
)

// Method names. The underscore spellings are accepted as aliases.
const (
	MethodConsolidate       = "consolidate"
	MethodConsolidateBelow  = "consolidate-below"
	MethodConsolidateCancel = "consolidate-cancel"
	MethodConsolidateStatus = "consolidate-status"
	MethodConsolidatePlan   = "consolidate-preview"
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Result types ────────────────────────────────────────────────────────

// StatusResult acknowledges consolidate-below and consolidate-cancel.
type StatusResult struct {
	Status string            `json:"status"`
	Job    *consolidate.Args `json:"job,omitempty"`
	// Running is set by consolidate-cancel: whether a job was signalled.
	Running *bool `json:"running,omitempty"`
}

// PreviewResult is returned by consolidate-preview.
type PreviewResult struct {
	FeeRate      consolidate.FeeRate `json:"feerate"`
	MinUTXOs     int                 `json:"min_utxos"`
	ReserveFloor uint64              `json:"reserve_floor_msat"`
	Count        int                 `json:"count"`
	TotalMsat    uint64              `json:"total_msat"`
	Outpoints    []string            `json:"outpoints"`
	Reserve      string              `json:"reserve,omitempty"`
	SelectionID  string              `json:"selection_id"`
}

// InsufficientData is attached to CodeInsufficientCoins errors.
type InsufficientData struct {
	Found  int `json:"found"`
	Wanted int `json:"wanted"`
}
