package message

// Protocol limits shared by all producers.
const (
	// MaxFrameLen is the maximum raw wireless frame size in bytes.
	MaxFrameLen = 250

	// MaxDeviceIDLen is the maximum length of a device identifier.
	MaxDeviceIDLen = 16
)

// SystemState is the security state of the gateway.
// Exactly one value is current at any instant; see controller.Controller.
type SystemState int

// System states. Numeric codes are part of the cloud wire format and must
// not be reordered.
const (
	StateDisarmed SystemState = 0 // no monitoring
	StateArmed    SystemState = 1 // monitoring sensors
	StateAlarm    SystemState = 2 // intrusion detected
	StateTamper   SystemState = 3 // equipment interference detected
)

// Name returns the wire name of the state as used in cloud events.
// The labels are inherited from the deployed backend schema.
func (s SystemState) Name() string {
	switch s {
	case StateDisarmed:
		return "DESARMADO"
	case StateArmed:
		return "ARMADO"
	case StateAlarm:
		return "ALARMA"
	case StateTamper:
		return "TAMPER"
	default:
		return "DESCONOCIDO"
	}
}

// Valid reports whether s is one of the defined system states.
func (s SystemState) Valid() bool {
	return s >= StateDisarmed && s <= StateTamper
}

// BootMode controls how the initial system state is resolved at startup.
type BootMode int

// Boot modes.
const (
	BootRestoreLast   BootMode = 0 // restore the persisted state
	BootForceDisarmed BootMode = 1 // always start disarmed
	BootForceArmed    BootMode = 2 // always start armed
)

// Valid reports whether m is one of the defined boot modes.
func (m BootMode) Valid() bool {
	return m >= BootRestoreLast && m <= BootForceArmed
}

// DeviceType identifies the kind of device that produced a message.
type DeviceType int

// Device types.
const (
	DeviceGateway    DeviceType = 0
	DeviceDoorSensor DeviceType = 1
	DevicePIRSensor  DeviceType = 2
	DeviceKeypad     DeviceType = 3
)

// Name returns the wire name of the device type (e.g. "SEC_SENSOR").
func (t DeviceType) Name() string {
	return deviceTypeName(t)
}

// Type is the kind of controller message.
type Type int

// Message types dispatched by the controller.
const (
	TypeSensorEvent Type = 0 // open/closed/tamper report
	TypeArm         Type = 1 // arm command
	TypeDisarm      Type = 2 // disarm command
	TypePanic       Type = 3 // panic button
	TypeHeartbeat   Type = 4 // sensor keepalive, touches last-seen only
)

// Name returns the wire name of the message type (e.g. "EVENT").
func (t Type) Name() string {
	return typeName(t)
}

// SensorAction is the action reported in a sensor event.
type SensorAction int

// Sensor actions.
const (
	ActionOpen   SensorAction = 0
	ActionClosed SensorAction = 1
	ActionTamper SensorAction = 2
)

// Name returns the wire name of the action (e.g. "OPEN").
func (a SensorAction) Name() string {
	return actionName(a)
}

// Header identifies the origin of a message.
type Header struct {
	Version    int
	SourceID   string
	SourceType DeviceType
}

// Payload carries the message body.
type Payload struct {
	Type   Type
	Action SensorAction
	Value  int // auxiliary value; battery percentage for sensor messages
}

// Message is the value passed through the controller queue.
// It is always passed by copy; producers must not retain references to it
// after enqueue.
type Message struct {
	Header  Header
	Payload Payload
	RSSI    int // received signal strength in dBm, 0 if unknown
}
