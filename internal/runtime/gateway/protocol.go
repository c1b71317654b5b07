package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/drblury/botcore/internal/runtime/event"
)

// Op codes of the gateway wire protocol.
const (
	OpIdentify       = "identify"
	OpReady          = "ready"
	OpInvalidSession = "invalid_session"
	OpDispatch       = "dispatch"
	OpChannelCreate  = "channel_create"
	OpChannelUpdate  = "channel_update"
	OpChannelDelete  = "channel_delete"
	OpSend           = "send"
)

// Frame is one JSON message on the gateway socket. T carries the event type
// of dispatch frames.
type Frame struct {
	Op string          `json:"op"`
	T  string          `json:"t,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

type identifyPayload struct {
	Token string `json:"token"`
}

type readyPayload struct {
	Channels []event.Channel `json:"channels"`
}

type sendPayload struct {
	ChannelID string `json:"channelId"`
	Content   string `json:"content"`
}

func encodeFrame(op, t string, payload any) ([]byte, error) {
	var d json.RawMessage
	if payload != nil {
		raw, err := sonic.ConfigStd.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", op, err)
		}
		d = raw
	}
	return sonic.ConfigStd.Marshal(Frame{Op: op, T: t, D: d})
}

func decodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := sonic.ConfigStd.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Op == "" {
		return Frame{}, fmt.Errorf("decode frame: missing op")
	}
	return f, nil
}

func decodePayload(f Frame, v any) error {
	if len(f.D) == 0 {
		return fmt.Errorf("%s frame has no payload", f.Op)
	}
	if err := sonic.ConfigStd.Unmarshal(f.D, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", f.Op, err)
	}
	return nil
}
