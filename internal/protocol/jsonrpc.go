package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/go-faster/errors"
)

const Version = "2.0"

type idKind uint8

const (
	idNull idKind = iota
	idString
	idInt
)

// ID correlates a request with its response. The zero value is the null id.
type ID struct {
	kind idKind
	str  string
	num  int64
}

var NullID = ID{}

func StringID(s string) ID {
	return ID{kind: idString, str: s}
}

func IntID(n int64) ID {
	return ID{kind: idInt, num: n}
}

func (id ID) IsNull() bool {
	return id.kind == idNull
}

func (id ID) String() string {
	switch id.kind {
	case idString:
		return id.str
	case idInt:
		return strconv.FormatInt(id.num, 10)
	default:
		return "null"
	}
}

func (id ID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case idString:
		return json.Marshal(id.str)
	case idInt:
		return []byte(strconv.FormatInt(id.num, 10)), nil
	default:
		return []byte("null"), nil
	}
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
		return errors.New("empty id")
	case bytes.Equal(data, []byte("null")):
		*id = NullID
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "decode string id")
		}
		*id = StringID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errors.Errorf("id must be a string, integer or null: %s", data)
	}
	*id = IntID(n)
	return nil
}

// Request is a JSON-RPC request. A nil ID marks a notification; an explicit
// "id": null decodes to a non-nil null ID.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      *ID             `json:"id,omitempty"`
}

func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	var aux struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Request(aux.plain)
	r.ID = nil
	if len(aux.ID) > 0 {
		var id ID
		if err := id.UnmarshalJSON(aux.ID); err != nil {
			return err
		}
		r.ID = &id
	}
	return nil
}

func (r Request) IsNotification() bool {
	return r.ID == nil
}

// Validate reports InvalidRequest when the version is not exactly "2.0" or the
// method is empty.
func (r Request) Validate() *Error {
	if r.JSONRPC != Version {
		return NewError(InvalidRequest, `jsonrpc must be "2.0"`)
	}
	if r.Method == "" {
		return NewError(InvalidRequest, "method must not be empty")
	}
	return nil
}

// ParseRequest decodes a single request. Malformed JSON is a ParseError, a
// well-formed value that is not a request object is an InvalidRequest.
func ParseRequest(data []byte) (Request, *Error) {
	if !json.Valid(data) {
		return Request{}, NewError(ParseError, nil)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, NewError(InvalidRequest, err.Error())
	}
	return req, nil
}

// RequestID returns the id responses to req must carry.
func RequestID(req Request) ID {
	if req.ID == nil {
		return NullID
	}
	return *req.ID
}

// Response carries exactly one of Result or Error.
type Response struct {
	JSONRPC string
	ID      ID
	Result  json.RawMessage
	Error   *Error
}

type successFrame struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	ID      ID              `json:"id"`
}

type errorFrame struct {
	JSONRPC string `json:"jsonrpc"`
	Error   *Error `json:"error"`
	ID      ID     `json:"id"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	version := r.JSONRPC
	if version == "" {
		version = Version
	}
	if r.Error != nil {
		return json.Marshal(errorFrame{JSONRPC: version, Error: r.Error, ID: r.ID})
	}
	result := r.Result
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return json.Marshal(successFrame{JSONRPC: version, Result: result, ID: r.ID})
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var aux struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   *Error          `json:"error"`
		ID      json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	hasResult := len(aux.Result) > 0
	switch {
	case hasResult && aux.Error != nil:
		return errors.New("response carries both result and error")
	case !hasResult && aux.Error == nil:
		return errors.New("response carries neither result nor error")
	}
	id := NullID
	if len(aux.ID) > 0 {
		if err := id.UnmarshalJSON(aux.ID); err != nil {
			return err
		}
	}
	*r = Response{JSONRPC: aux.JSONRPC, ID: id, Result: aux.Result, Error: aux.Error}
	return nil
}

func (r Response) IsError() bool {
	return r.Error != nil
}

// Result builds a success response. A result that cannot be encoded turns
// into an InternalError response for the same id.
func Result(id ID, v any) Response {
	raw, err := json.Marshal(v)
	if err != nil {
		return ErrorResponse(id, NewError(InternalError, err.Error()))
	}
	return Response{JSONRPC: Version, ID: id, Result: raw}
}

func ErrorResponse(id ID, e *Error) Response {
	return Response{JSONRPC: Version, ID: id, Error: e}
}

// Notification is a server-initiated message pushed to transport subscribers.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

func NewNotification(method string, params any) Notification {
	return Notification{JSONRPC: Version, Method: method, Params: params}
}
