package message

import (
	"encoding/json"
	"fmt"
)

// wireEnvelope mirrors the JSON document sent by wireless sensors.
// String enum fields are mapped leniently: unrecognised values leave the
// corresponding Message field at its zero value.
type wireEnvelope struct {
	Header struct {
		Version    int    `json:"ver"`
		SourceID   string `json:"src_id"`
		SourceType string `json:"src_type"`
	} `json:"header"`
	Payload struct {
		Type    string `json:"type"`
		Action  string `json:"action"`
		Value   string `json:"value"`
		Battery *int   `json:"battery"`
	} `json:"payload"`
}

// Decode parses a raw wireless frame into a Message.
//
// Only structurally invalid JSON is an error; unknown enum strings are
// ignored so that newer sensor firmware can add values without breaking
// older gateways.
//
// Parameters:
//   - data: raw frame bytes (JSON envelope, no framing)
//
// Returns:
//   - Message: decoded message (zero-valued fields for unknown enums)
//   - error: if the frame is not valid JSON
func Decode(data []byte) (Message, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("message: decoding envelope: %w", err)
	}

	var msg Message
	msg.Header.Version = env.Header.Version
	msg.Header.SourceID = truncateID(env.Header.SourceID)
	msg.Header.SourceType = parseDeviceType(env.Header.SourceType)
	msg.Payload.Type = parseType(env.Payload.Type)
	msg.Payload.Action = parseAction(env.Payload.Action)

	// Some sensor firmwares report open/closed in "value" instead of
	// "action"; accept both, with "action" taking precedence.
	if env.Payload.Action == "" && env.Payload.Value != "" {
		msg.Payload.Action = parseAction(env.Payload.Value)
	}

	if env.Payload.Battery != nil {
		msg.Payload.Value = *env.Payload.Battery
	}

	return msg, nil
}

// Encode serialises a Message into the wire envelope for downlink sends
// (gateway to sensor broadcast).
func Encode(msg Message) ([]byte, error) {
	var env wireEnvelope
	env.Header.Version = msg.Header.Version
	env.Header.SourceID = msg.Header.SourceID
	env.Header.SourceType = deviceTypeName(msg.Header.SourceType)
	env.Payload.Type = typeName(msg.Payload.Type)

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("message: encoding envelope: %w", err)
	}
	return data, nil
}

// truncateID bounds a device id to MaxDeviceIDLen characters.
// Oversized ids come from misbehaving senders; keeping a stable prefix is
// better than dropping the frame.
func truncateID(id string) string {
	if len(id) > MaxDeviceIDLen {
		return id[:MaxDeviceIDLen]
	}
	return id
}

func parseDeviceType(s string) DeviceType {
	switch s {
	case "SEC_SENSOR":
		return DeviceDoorSensor
	case "PIR_SENSOR":
		return DevicePIRSensor
	case "KEYPAD":
		return DeviceKeypad
	case "GATEWAY":
		return DeviceGateway
	default:
		return DeviceGateway
	}
}

func deviceTypeName(t DeviceType) string {
	switch t {
	case DeviceDoorSensor:
		return "SEC_SENSOR"
	case DevicePIRSensor:
		return "PIR_SENSOR"
	case DeviceKeypad:
		return "KEYPAD"
	default:
		return "GATEWAY"
	}
}

func parseType(s string) Type {
	switch s {
	case "EVENT":
		return TypeSensorEvent
	case "ARM":
		return TypeArm
	case "DISARM":
		return TypeDisarm
	case "PANIC":
		return TypePanic
	case "HEARTBEAT":
		return TypeHeartbeat
	default:
		return TypeSensorEvent
	}
}

func typeName(t Type) string {
	switch t {
	case TypeArm:
		return "ARM"
	case TypeDisarm:
		return "DISARM"
	case TypePanic:
		return "PANIC"
	case TypeHeartbeat:
		return "HEARTBEAT"
	default:
		return "EVENT"
	}
}

func actionName(a SensorAction) string {
	switch a {
	case ActionClosed:
		return "CLOSED"
	case ActionTamper:
		return "TAMPER"
	default:
		return "OPEN"
	}
}

func parseAction(s string) SensorAction {
	switch s {
	case "OPEN":
		return ActionOpen
	case "CLOSED":
		return ActionClosed
	case "TAMPER":
		return ActionTamper
	default:
		return ActionOpen
	}
}
