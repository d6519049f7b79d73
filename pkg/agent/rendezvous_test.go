package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/voxbridge/voxbridge/pkg/room"
)

func locationReply(status string, lat, lng, accuracy float64) room.UserLocationPayload {
	return room.UserLocationPayload{
		Status:    status,
		Latitude:  lat,
		Longitude: lng,
		Accuracy:  accuracy,
	}
}

// requestInBackground starts the rendezvous and hands back the result channel
// once the location_request packet is on the wire, so the reply cannot race
// the request's state reset.
func requestInBackground(t *testing.T, c *Controller, pub *fakePublisher) <-chan string {
	t.Helper()
	done := make(chan string, 1)
	go func() {
		done <- c.RequestUserLocation(context.Background())
	}()

	sent := pub.wait(t, time.Second)
	if sent.topic != room.TopicUILocationRequest {
		t.Fatalf("request published to %q, want %q", sent.topic, room.TopicUILocationRequest)
	}
	return done
}

func awaitResult(t *testing.T, done <-chan string) string {
	t.Helper()
	select {
	case got := <-done:
		return got
	case <-time.After(2 * time.Second):
		t.Fatalf("location request did not finish")
		return ""
	}
}

func TestRequestUserLocationSuccess(t *testing.T) {
	c, pub, _ := testController(t)
	c.cfg.LocationTimeout = time.Second
	c.maps = &fakeMaps{address: "MG Road, Bengaluru"}

	done := requestInBackground(t, c, pub)
	c.applyUserLocation(locationReply(room.LocationStatusSuccess, 12.9, 77.6, 25))

	got := awaitResult(t, done)
	want := "Location obtained: lat=12.9, lng=77.6 (accuracy: ±25 m). Address of the user: MG Road, Bengaluru. You can now call calculate_distance_to_destination."
	if got != want {
		t.Fatalf("result = %q, want %q", got, want)
	}
}

func TestRequestUserLocationSuccessWithoutAccuracy(t *testing.T) {
	c, pub, _ := testController(t)
	c.cfg.LocationTimeout = time.Second
	c.maps = &fakeMaps{}

	done := requestInBackground(t, c, pub)
	c.applyUserLocation(locationReply(room.LocationStatusSuccess, 12.9, 77.6, 0))

	got := awaitResult(t, done)
	if strings.Contains(got, "accuracy") {
		t.Fatalf("zero accuracy should be omitted: %q", got)
	}
	if !strings.Contains(got, "Address of the user: 12.9,77.6") {
		t.Fatalf("missing coordinate fallback address: %q", got)
	}
}

func TestRequestUserLocationDenied(t *testing.T) {
	c, pub, _ := testController(t)
	c.cfg.LocationTimeout = time.Second

	done := requestInBackground(t, c, pub)
	c.applyUserLocation(room.UserLocationPayload{Status: room.LocationStatusDenied, Error: "User denied Geolocation"})

	got := awaitResult(t, done)
	want := "The user denied location access or the request timed out on the browser side. Cannot calculate distance without location."
	if got != want {
		t.Fatalf("result = %q, want %q", got, want)
	}
}

func TestRequestUserLocationUnsupported(t *testing.T) {
	c, pub, _ := testController(t)
	c.cfg.LocationTimeout = time.Second

	done := requestInBackground(t, c, pub)
	c.applyUserLocation(room.UserLocationPayload{Status: room.LocationStatusUnsupported})

	got := awaitResult(t, done)
	want := "The user's browser does not support Geolocation. Cannot calculate distance."
	if got != want {
		t.Fatalf("result = %q, want %q", got, want)
	}
}

func TestRequestUserLocationTimeout(t *testing.T) {
	c, pub, _ := testController(t)
	c.cfg.LocationTimeout = 20 * time.Millisecond

	done := requestInBackground(t, c, pub)

	got := awaitResult(t, done)
	want := "Location request timed out. The user may not have responded to the browser prompt."
	if got != want {
		t.Fatalf("result = %q, want %q", got, want)
	}
}

func TestRequestUserLocationRejectsConcurrent(t *testing.T) {
	c, pub, _ := testController(t)
	c.cfg.LocationTimeout = time.Second

	done := requestInBackground(t, c, pub)

	got := c.RequestUserLocation(context.Background())
	want := "A location request is already waiting for the user's response. Ask the user to respond to the browser prompt."
	if got != want {
		t.Fatalf("concurrent result = %q, want %q", got, want)
	}

	c.applyUserLocation(locationReply(room.LocationStatusSuccess, 1, 2, 0))
	awaitResult(t, done)
}

func TestRequestUserLocationDiscardsStaleReply(t *testing.T) {
	c, pub, _ := testController(t)
	c.cfg.LocationTimeout = 20 * time.Millisecond

	// First cycle times out; the reply lands after.
	done := requestInBackground(t, c, pub)
	awaitResult(t, done)
	c.applyUserLocation(locationReply(room.LocationStatusSuccess, 1, 1, 0))

	// The second cycle must not be satisfied by the stale fix.
	c.cfg.LocationTimeout = time.Second
	done = requestInBackground(t, c, pub)
	c.applyUserLocation(locationReply(room.LocationStatusDenied, 0, 0, 0))

	got := awaitResult(t, done)
	if !strings.Contains(got, "denied location access") {
		t.Fatalf("stale success leaked into new cycle: %q", got)
	}
}

func TestLocationReplyWithoutRequestDoesNotBlock(t *testing.T) {
	c, _, _ := testController(t)

	// An unsolicited packet arms nothing and must not panic or wedge state.
	c.applyUserLocation(locationReply(room.LocationStatusSuccess, 5, 6, 0))
	c.applyUserLocation(locationReply(room.LocationStatusDenied, 0, 0, 0))

	c.mu.Lock()
	fired := c.locFired
	c.mu.Unlock()
	if !fired {
		t.Fatalf("wake channel should be closed after a reply")
	}
}
