package transport

import (
	"fmt"
	"strconv"
	"strings"
)

// topicPrefix is the base for all gateway topics.
const topicPrefix = "ghost"

// Topics provides builders for the wireless link's MQTT topics.
// Using these helpers keeps topic naming consistent between the gateway
// and the radio head end.
type Topics struct{}

// Frames returns the wildcard subscription for inbound sensor frames.
//
// Example: ghost/GW-1A2B3C4D/frames/#
func (Topics) Frames(gatewayID string) string {
	return fmt.Sprintf("%s/%s/frames/#", topicPrefix, gatewayID)
}

// Frame returns the publish topic for one inbound frame. Used by the head
// end; the gateway only parses these.
//
// Example: ghost/GW-1A2B3C4D/frames/aa:bb:cc:dd:ee:ff/-62
func (Topics) Frame(gatewayID, source string, rssi int) string {
	return fmt.Sprintf("%s/%s/frames/%s/%d", topicPrefix, gatewayID, source, rssi)
}

// Downlink returns the topic for gateway-to-sensor broadcasts.
//
// Example: ghost/GW-1A2B3C4D/downlink
func (Topics) Downlink(gatewayID string) string {
	return fmt.Sprintf("%s/%s/downlink", topicPrefix, gatewayID)
}

// Status returns the retained online/offline status topic, also used as the
// Last Will topic.
//
// Example: ghost/GW-1A2B3C4D/status
func (Topics) Status(gatewayID string) string {
	return fmt.Sprintf("%s/%s/status", topicPrefix, gatewayID)
}

// State returns the retained security-state topic. Local panels and the
// radio head end subscribe here to mirror the controller state.
//
// Example: ghost/GW-1A2B3C4D/state
func (Topics) State(gatewayID string) string {
	return fmt.Sprintf("%s/%s/state", topicPrefix, gatewayID)
}

// ParseFrameTopic extracts the frame source address and signal strength from
// an inbound frame topic. The RSSI level is optional; 0 means unknown.
//
// Returns ok=false for topics that are not frame topics.
func ParseFrameTopic(topic string) (source string, rssi int, ok bool) {
	parts := strings.Split(topic, "/")
	// ghost/{gateway}/frames/{source}[/{rssi}]
	if len(parts) < 4 || parts[0] != topicPrefix || parts[2] != "frames" {
		return "", 0, false
	}

	source = parts[3]
	if source == "" {
		return "", 0, false
	}

	if len(parts) >= 5 {
		if n, err := strconv.Atoi(parts[4]); err == nil {
			rssi = n
		}
	}
	return source, rssi, true
}
