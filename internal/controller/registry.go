package controller

import (
	"time"

	"github.com/nerrad567/ghost-gateway/internal/message"
)

// SensorRecord tracks one known wireless device.
//
// Records are created on the first message from an unknown device id and
// updated in place after that. They are never removed; Unregister only
// clears the Active flag so the slot and history survive.
type SensorRecord struct {
	DeviceID   string             `json:"device_id"`
	DeviceType message.DeviceType `json:"device_type"`
	Open       bool               `json:"open"`
	Active     bool               `json:"active"`
	LastSeen   time.Time          `json:"last_seen"`
	RSSI       int                `json:"rssi"`
}

// updateSensorLocked finds the record for deviceID and updates it, creating
// it if the registry has room. The registry is small and fixed, so a linear
// scan is fine. Returns false when a new device was dropped for capacity.
// Must be called with the controller lock held.
func (c *Controller) updateSensorLocked(msg message.Message, open bool) bool {
	now := time.Now().UTC()

	for i := range c.sensors {
		if c.sensors[i].DeviceID == msg.Header.SourceID {
			c.sensors[i].Open = open
			c.sensors[i].Active = true
			c.sensors[i].LastSeen = now
			c.sensors[i].RSSI = msg.RSSI
			return true
		}
	}

	if len(c.sensors) >= c.capacity {
		c.log.Warn("sensor registry full, dropping registration",
			"device_id", msg.Header.SourceID, "capacity", c.capacity)
		return false
	}

	c.sensors = append(c.sensors, SensorRecord{
		DeviceID:   msg.Header.SourceID,
		DeviceType: msg.Header.SourceType,
		Open:       open,
		Active:     true,
		LastSeen:   now,
		RSSI:       msg.RSSI,
	})
	c.log.Info("sensor registered",
		"device_id", msg.Header.SourceID, "type", int(msg.Header.SourceType))
	return true
}

// touchSensorLocked refreshes last-seen bookkeeping for a heartbeat without
// changing open/closed state. Must be called with the controller lock held.
func (c *Controller) touchSensorLocked(msg message.Message) {
	now := time.Now().UTC()
	for i := range c.sensors {
		if c.sensors[i].DeviceID == msg.Header.SourceID {
			c.sensors[i].LastSeen = now
			c.sensors[i].RSSI = msg.RSSI
			return
		}
	}
}

// Sensors returns a snapshot of the registry.
func (c *Controller) Sensors() []SensorRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SensorRecord, len(c.sensors))
	copy(out, c.sensors)
	return out
}

// Unregister clears a sensor's active flag. The record slot is retained.
// Returns false if the device id is unknown.
func (c *Controller) Unregister(deviceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.sensors {
		if c.sensors[i].DeviceID == deviceID {
			c.sensors[i].Active = false
			return true
		}
	}
	return false
}
