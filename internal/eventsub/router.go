package eventsub

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errUnknownMessageType = errors.New("unknown message type")

// decodeFrame turns one raw text frame into its typed message: one of
// welcomeMessage, keepaliveMessage, Notification, reconnectMessage or
// Revocation.
func decodeFrame(raw []byte) (Metadata, any, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Metadata{}, nil, fmt.Errorf("decode frame: %w", err)
	}
	meta := frame.Metadata

	switch meta.MessageType {
	case MessageTypeWelcome:
		session, err := decodeSession(frame.Payload)
		if err != nil {
			return meta, nil, err
		}
		if session.ID == "" {
			return meta, nil, errors.New("welcome without session id")
		}
		return meta, welcomeMessage{Session: session}, nil
	case MessageTypeKeepalive:
		return meta, keepaliveMessage{}, nil
	case MessageTypeReconnect:
		session, err := decodeSession(frame.Payload)
		if err != nil {
			return meta, nil, err
		}
		return meta, reconnectMessage{Session: session}, nil
	case MessageTypeNotification:
		var payload struct {
			Subscription subscriptionPayload `json:"subscription"`
			Event        json.RawMessage     `json:"event"`
		}
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return meta, nil, fmt.Errorf("decode notification payload: %w", err)
		}
		return meta, Notification{
			MessageID:    meta.MessageID,
			Timestamp:    meta.MessageTimestamp,
			Subscription: payload.Subscription.toDomain(),
			Event:        payload.Event,
		}, nil
	case MessageTypeRevocation:
		var payload struct {
			Subscription subscriptionPayload `json:"subscription"`
		}
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return meta, nil, fmt.Errorf("decode revocation payload: %w", err)
		}
		return meta, Revocation{Subscription: payload.Subscription.toDomain()}, nil
	default:
		return meta, nil, fmt.Errorf("%w %q", errUnknownMessageType, meta.MessageType)
	}
}

func decodeSession(payload json.RawMessage) (Session, error) {
	var body struct {
		Session Session `json:"session"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return Session{}, fmt.Errorf("decode session payload: %w", err)
	}
	return body.Session, nil
}
