// Package protocol defines the JSON-RPC 2.0 message types, MCP method names
// and the error taxonomy shared by every other package.
//
// # Error Taxonomy
//
// Every failure that crosses the protocol boundary is a *Error:
//
//	CodeParseError       = -32700
//	CodeInvalidRequest   = -32600
//	CodeMethodNotFound   = -32601
//	CodeInvalidParams    = -32602  // bad registration or lookup arguments
//	CodeInternalError    = -32603  // wrapped handler failures
//	CodeUnauthorized     = -32001
//	CodeResourceNotFound = -32002
//	CodeRateLimited      = -32003
//
// User handlers may return any error. WrapHandlerError keeps protocol errors
// as they are and turns everything else into an internal error whose Data
// carries "wrapped_error": true, so a client can tell a rejected call from a
// failing handler:
//
//	err = protocol.WrapHandlerError(err)
//	if protocol.IsWrapped(err) { ... }
//
// # Request Metadata
//
// Transports attach headers and similar values to the context with
// SetRequestMeta; middleware reads them back with GetRequestMeta.
package protocol
