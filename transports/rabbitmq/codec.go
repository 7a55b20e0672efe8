package rabbitmq

import (
	"fmt"
	"reflect"

	jsoniter "github.com/json-iterator/go"

	"github.com/lubkli/IoCBuilder-sub000/call"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ContentType of requests and replies
const ContentType = "application/json"

// Request is the body of a call message. Args is aligned with the formal
// parameter list; context and output-only positions are null.
type Request struct {
	Method string                `json:"method"`
	Args   []jsoniter.RawMessage `json:"args"`
}

// Reply is the body of a reply message. Args carries the values of the
// by-reference parameters after the call, null elsewhere.
type Reply struct {
	Results []jsoniter.RawMessage `json:"results,omitempty"`
	Args    []jsoniter.RawMessage `json:"args,omitempty"`
	Error   string                `json:"error,omitempty"`
}

var null = jsoniter.RawMessage("null")

func encodeValue(v any) (jsoniter.RawMessage, error) {
	if v == nil {
		return null, nil
	}
	return json.Marshal(v)
}

// decodeValue decodes raw into a new value of t. A nil t decodes into the
// generic JSON representation.
func decodeValue(raw jsoniter.RawMessage, t reflect.Type) (any, error) {
	if t == nil {
		var v any
		if len(raw) == 0 {
			return nil, nil
		}
		err := json.Unmarshal(raw, &v)
		return v, err
	}

	ptr := reflect.New(t)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
			return nil, err
		}
	}
	return ptr.Elem().Interface(), nil
}

// EncodeRequest builds the body calling m with args
func EncodeRequest(m *call.Method, args []any) ([]byte, error) {
	req := Request{Method: m.Name, Args: make([]jsoniter.RawMessage, len(m.Params))}
	ctx := m.ContextIndex()
	for i, p := range m.Params {
		if i == ctx || p.Direction == call.DirectionOut || i >= len(args) {
			req.Args[i] = null
			continue
		}
		raw, err := encodeValue(args[i])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", p.Name, err)
		}
		req.Args[i] = raw
	}
	return json.Marshal(req)
}

// DecodeRequest parses a request body. With a method descriptor the
// arguments are decoded into the parameter types; the context position is
// left nil for the caller to fill.
func DecodeRequest(body []byte, lookup func(name string) (*call.Method, bool)) (*call.Method, string, []any, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, "", nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if req.Method == "" {
		return nil, "", nil, fmt.Errorf("%w: no method", ErrBadMessage)
	}

	var m *call.Method
	if lookup != nil {
		m, _ = lookup(req.Method)
	}
	if m == nil {
		args := make([]any, len(req.Args))
		for i, raw := range req.Args {
			v, err := decodeValue(raw, nil)
			if err != nil {
				return nil, req.Method, nil, fmt.Errorf("%w: arg %d: %v", ErrBadMessage, i, err)
			}
			args[i] = v
		}
		return nil, req.Method, args, nil
	}

	args := make([]any, len(m.Params))
	ctx := m.ContextIndex()
	for i, p := range m.Params {
		if i == ctx {
			continue
		}
		var raw jsoniter.RawMessage
		if i < len(req.Args) {
			raw = req.Args[i]
		}
		v, err := decodeValue(raw, p.Type)
		if err != nil {
			return nil, req.Method, nil, fmt.Errorf("%w: %s: %v", ErrBadMessage, p.Name, err)
		}
		args[i] = v
	}
	return m, req.Method, args, nil
}

// EncodeReply builds the reply body for a completed call. m may be nil, in
// which case every argument is sent back.
func EncodeReply(m *call.Method, args []any, results []any, callErr error) ([]byte, error) {
	if callErr != nil {
		return json.Marshal(Reply{Error: callErr.Error()})
	}

	reply := Reply{Results: make([]jsoniter.RawMessage, len(results))}
	for i, v := range results {
		raw, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("encode result %d: %w", i, err)
		}
		reply.Results[i] = raw
	}

	if m == nil || m.HasOutputs() {
		reply.Args = make([]jsoniter.RawMessage, len(args))
		for i, v := range args {
			if m != nil && !m.Params[i].Direction.IsOutput() {
				reply.Args[i] = null
				continue
			}
			raw, err := encodeValue(v)
			if err != nil {
				return nil, fmt.Errorf("encode output %d: %w", i, err)
			}
			reply.Args[i] = raw
		}
	}
	return json.Marshal(reply)
}

// DecodeReply parses a reply to m, writes the by-reference outputs into
// args and returns the results decoded into m's result types
func DecodeReply(body []byte, m *call.Method, args []any) ([]any, error) {
	var reply Reply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if reply.Error != "" {
		return nil, &RemoteError{Method: m.Name, Message: reply.Error}
	}

	for i, p := range m.Params {
		if !p.Direction.IsOutput() || i >= len(reply.Args) || i >= len(args) {
			continue
		}
		v, err := decodeValue(reply.Args[i], p.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: output %s: %v", ErrBadMessage, p.Name, err)
		}
		args[i] = v
	}

	results := make([]any, len(m.Results))
	for i, t := range m.Results {
		var raw jsoniter.RawMessage
		if i < len(reply.Results) {
			raw = reply.Results[i]
		}
		v, err := decodeValue(raw, t)
		if err != nil {
			return nil, fmt.Errorf("%w: result %d: %v", ErrBadMessage, i, err)
		}
		results[i] = v
	}
	return results, nil
}
