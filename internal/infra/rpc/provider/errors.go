package provider

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when the node cannot be reached at all.
var ErrNotConnected = errors.New("node not connected")

// RPCError is an error reported by the node itself (e.g. a rejected
// connect). The request reached the node and was answered.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsRPCError reports whether err wraps an *RPCError.
func IsRPCError(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}

// AsRPCError returns the wrapped *RPCError, if any.
func AsRPCError(err error) (*RPCError, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

// DecodeError is returned when a response could not be parsed.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrorKind is the coarse class of a failed call, used as a metrics label.
type ErrorKind string

const (
	ErrorNone      ErrorKind = ""
	ErrorRPC       ErrorKind = "rpc"
	ErrorDecode    ErrorKind = "decode"
	ErrorTransport ErrorKind = "transport"
)

// ClassifyError maps err to its ErrorKind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorNone
	}
	if IsRPCError(err) {
		return ErrorRPC
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return ErrorDecode
	}
	return ErrorTransport
}
