package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementLinkState      = "link_state"
	MeasurementLinkTransition = "link_transition"
)

// LinkStatePoint builds a link_state sample. ip is omitted when empty.
func LinkStatePoint(device string, connected bool, ip string, ts time.Time) *write.Point {
	fields := map[string]interface{}{
		"connected": boolToInt(connected),
	}
	if ip != "" {
		fields["ip"] = ip
	}
	return write.NewPoint(MeasurementLinkState, map[string]string{"device": device}, fields, ts)
}

// LinkTransitionPoint builds a link_transition point for a surfaced change
// to state.
func LinkTransitionPoint(device, state string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementLinkTransition,
		map[string]string{"device": device, "state": state},
		map[string]interface{}{"count": 1},
		ts,
	)
}

// WritePoint queues p for the next batch. Points written after Close are
// dropped.
func (c *Client) WritePoint(p *write.Point) {
	if !c.IsConnected() {
		c.dropped.Add(1)
		return
	}
	c.queued.Add(1)
	c.writeAPI.WritePoint(p)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
