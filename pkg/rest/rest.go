// Package rest declares the transport contract that generated bindings call.
// Implementations own signing, network I/O and retries; this package only
// carries the request shape and payload decoding.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ParamsLocation says where request parameters travel.
type ParamsLocation string

const (
	InQuery ParamsLocation = "query"
	InBody  ParamsLocation = "body"
)

// ErrNilSender is returned by Call when no Sender is supplied.
var ErrNilSender = errors.New("rest: nil sender")

// Request is the configuration handed to a Sender by a generated binding.
type Request struct {
	Path           string         `json:"path"`
	Method         string         `json:"method"`
	Params         any            `json:"params,omitempty"`
	ParamsLocation ParamsLocation `json:"paramsLocation"`
}

// Sender performs one remote call and returns the payload bytes: the inner
// data on success, otherwise the raw envelope as received.
type Sender interface {
	Send(ctx context.Context, req Request) ([]byte, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, req Request) ([]byte, error)

func (f SenderFunc) Send(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}

// Call sends req through s and decodes the payload into out.
// A nil out discards the payload.
func Call(ctx context.Context, s Sender, req Request, out any) error {
	if s == nil {
		return ErrNilSender
	}
	payload, err := s.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

// Envelope is the exchange's response wrapper.
type Envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Unwrap returns the data member when the envelope reports success
// (code "0"); any other body is returned unchanged.
func Unwrap(body []byte) []byte {
	var env Envelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		return body
	}
	if env.Code != "0" || len(env.Data) == 0 {
		return body
	}
	return env.Data
}
