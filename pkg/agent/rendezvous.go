package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/voxbridge/voxbridge/pkg/room"
)

// RequestUserLocation asks the frontend for a GPS fix and blocks until the
// reply arrives or the timeout expires. The rendezvous slot is single-use
// per cycle: state and the wake channel are re-armed before the request is
// published, so a reply that straggled in after a previous timeout can never
// satisfy this cycle.
func (c *Controller) RequestUserLocation(ctx context.Context) string {
	c.logger.Info("requesting user location from frontend")

	c.mu.Lock()
	if c.locWaiting {
		c.mu.Unlock()
		return "A location request is already waiting for the user's response. Ask the user to respond to the browser prompt."
	}
	c.locWaiting = true
	c.locStatus = ""
	c.locLat = 0
	c.locLng = 0
	c.locAccuracy = 0
	c.locHasFix = false
	c.locWake = make(chan struct{})
	c.locFired = false
	wake := c.locWake
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.locWaiting = false
		c.mu.Unlock()
	}()

	c.publish(ctx, room.TopicUILocationRequest, room.LocationRequest{Type: "location_request"})

	timer := time.NewTimer(c.cfg.LocationTimeout)
	defer timer.Stop()

	select {
	case <-wake:
	case <-timer.C:
		return "Location request timed out. The user may not have responded to the browser prompt."
	case <-ctx.Done():
		return "Location request canceled."
	}

	c.mu.Lock()
	status := c.locStatus
	lat, lng, accuracy := c.locLat, c.locLng, c.locAccuracy
	hasFix := c.locHasFix
	c.mu.Unlock()

	switch {
	case status == room.LocationStatusSuccess && hasFix:
		accuracyNote := ""
		if accuracy > 0 {
			accuracyNote = fmt.Sprintf(" (accuracy: ±%.0f m)", accuracy)
		}
		address := c.lookupAddress(ctx, lat, lng)
		return fmt.Sprintf(
			"Location obtained: lat=%v, lng=%v%s. Address of the user: %s. You can now call calculate_distance_to_destination.",
			lat, lng, accuracyNote, address,
		)
	case status == room.LocationStatusDenied:
		return "The user denied location access or the request timed out on the browser side. Cannot calculate distance without location."
	case status == room.LocationStatusUnsupported:
		return "The user's browser does not support Geolocation. Cannot calculate distance."
	default:
		return "Unknown location status received from the frontend."
	}
}

// lookupAddress reverse-geocodes the fix. Best-effort: on failure the raw
// coordinates stand in for the address.
func (c *Controller) lookupAddress(ctx context.Context, lat, lng float64) string {
	fallback := fmt.Sprintf("%v,%v", lat, lng)
	if c.maps == nil {
		return fallback
	}
	address, err := c.maps.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		c.logger.Warn("reverse geocode failed", "error", err)
		return fallback
	}
	if address == "" {
		return fallback
	}
	return address
}
