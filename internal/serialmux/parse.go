package serialmux

import "strings"

// Line classes emitted by the radar and actuator firmware.
const (
	EventTypeReturns = "returns"
	EventTypeStatus  = "status"
	EventTypeUnknown = "unknown"
)

// ClassifyPayload returns the line class for a raw serial line. Any JSON
// object without a "returns" key is treated as a status/config line.
func ClassifyPayload(payload string) string {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "{") {
		return EventTypeUnknown
	}
	if strings.Contains(payload, `"returns"`) {
		return EventTypeReturns
	}
	return EventTypeStatus
}
