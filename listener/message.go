package listener

import (
	"encoding/json"
	"errors"
)

//Message types exchanged over the socket
const (
	//TypeWelcome is sent by the server once a client is registered
	TypeWelcome = "welcome"
	//TypeSimPhotoChanged is sent by clients when a preferred SIM icon changed
	TypeSimPhotoChanged = "sim_photo_changed"
	//TypePing asks the server for a pong
	TypePing = "ping"
	//TypePong answers a ping
	TypePong = "pong"
	//TypeAck confirms an event was delivered to the handler
	TypeAck = "ack"
	//TypeError reports a message the server could not accept
	TypeError = "error"
)

//Message is the JSON frame used in both directions
type Message struct {
	Type string `json:"type"`

	//ID is assigned by the server to every accepted event
	ID string `json:"id,omitempty"`

	//Subscription is the SIM slot of a sim_photo_changed event
	Subscription *int `json:"sim_sub,omitempty"`

	//Ping is echoed back in the pong
	Ping int `json:"ping,omitempty"`

	Error string `json:"error,omitempty"`
}

var (
	//ErrUnknownType is returned for frames with a type the server does not handle
	ErrUnknownType = errors.New("unknown message type")

	//ErrMissingSubscription is returned for events without a sim_sub field
	ErrMissingSubscription = errors.New("sim_sub is required")
)

//parseMessage decodes and validates a client frame
func parseMessage(src []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(src, &m); err != nil {
		return m, err
	}

	switch m.Type {
	case TypePing:
	case TypeSimPhotoChanged:
		if m.Subscription == nil {
			return m, ErrMissingSubscription
		}
	default:
		return m, ErrUnknownType
	}

	return m, nil
}
