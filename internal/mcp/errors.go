package mcp

import (
	"encoding/json"
	"fmt"
)

// TransportError is returned when the HTTP exchange itself fails: the server
// answered with a non-2xx status or the request never completed.
type TransportError struct {
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Status, e.Body)
		}
		return fmt.Sprintf("http %d %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("http request: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError carries a JSON-RPC error object returned by the server.
// Code and Message are kept verbatim.
type ProtocolError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// ParseError is returned when a response body or result payload does not
// match the shape expected for the method.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MismatchedIDError is returned when the server answers with a response whose
// id does not belong to the request that was sent.
type MismatchedIDError struct {
	Want int64
	Got  json.RawMessage
}

func (e *MismatchedIDError) Error() string {
	got := string(e.Got)
	if got == "" {
		got = "<missing>"
	}
	return fmt.Sprintf("response id %s does not match request id %d", got, e.Want)
}
