package event

import (
	"bytes"
	"collab-lab/errors"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type envelope struct {
	Type MessageType `json:"type"`
}

// Encode serialises m as a JSON object whose "type" field names its kind.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	head := fmt.Sprintf(`{"type":%q`, m.Type())
	body = bytes.TrimSpace(body)
	if bytes.Equal(body, []byte("{}")) {
		return []byte(head + "}"), nil
	}
	return append([]byte(head+","), body[1:]...), nil
}

// Decode parses any message kind. Payloads are validated before being returned.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedMessage, err)
	}

	var (
		msg Message
		err error
	)
	switch env.Type {
	case CursorUpdateType:
		msg, err = decodeAs[CursorUpdate](data)
	case SelectionUpdateType:
		msg, err = decodeAs[SelectionUpdate](data)
	case DocumentEditType:
		msg, err = decodeAs[DocumentEdit](data)
	case ChatMessageType:
		msg, err = decodeAs[ChatMessage](data)
	case UserJoinedType:
		msg, err = decodeAs[UserJoined](data)
	case UserLeftType:
		msg, err = decodeAs[UserLeft](data)
	case SessionStateType:
		msg, err = decodeAs[SessionState](data)
	case PingType:
		msg = Ping{}
	case PongType:
		msg = Pong{}
	case ErrorType:
		msg, err = decodeAs[Error](data)
	case "":
		return nil, fmt.Errorf("%w: missing type", errors.ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w %q", errors.ErrUnknownMessageType, env.Type)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeInbound parses a frame received from a client. Server-only kinds are
// rejected as malformed.
func DecodeInbound(data []byte) (Inbound, error) {
	msg, err := Decode(data)
	if err != nil {
		return nil, err
	}
	in, ok := msg.(Inbound)
	if !ok {
		return nil, fmt.Errorf("%w: %q cannot be sent by a client", errors.ErrMalformedMessage, msg.Type())
	}
	return in, nil
}

func decodeAs[T Message](data []byte) (T, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: %v", errors.ErrMalformedMessage, err)
	}
	if err := validate.Struct(m); err != nil {
		return m, fmt.Errorf("%w: %v", errors.ErrMalformedMessage, err)
	}
	return m, nil
}
