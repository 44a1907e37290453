package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/config"
)

// fakeServer answers /ping and records line protocol posted to /api/v2/write.
type fakeServer struct {
	*httptest.Server

	mu    sync.Mutex
	lines []string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
		fs.mu.Lock()
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				fs.lines = append(fs.lines, line)
			}
		}
		fs.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) written() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.lines...)
}

// waitForLines flushes until n lines arrive or the timeout passes. Points
// travel through the write API's internal channel, so one Flush may run
// before they are buffered.
func (fs *fakeServer) waitForLines(c *Client, n int, timeout time.Duration) []string {
	deadline := time.Now().Add(timeout)
	for {
		c.Flush()
		lines := fs.written()
		if len(lines) >= n || time.Now().After(deadline) {
			return lines
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "graylogic",
		Bucket:        "bindings",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

// recordingWriter captures points without a server.
type recordingWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *recordingWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, p)
}

func (w *recordingWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

func connectedWithRecorder() (*Client, *recordingWriter) {
	w := &recordingWriter{}
	return &Client{writer: w, connected: true}, w
}

func lineOf(p *write.Point) string {
	return write.PointToLineProtocol(p, time.Nanosecond)
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(testConfig("http://127.0.0.1:1"))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_WriteRoundTrip(t *testing.T) {
	srv := newFakeServer(t)

	client, err := Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.WriteBindingEvent(BindingEvent{BindingID: "buttons", Event: "press", Channel: 2})
	client.WriteVideoTime("screen", "video1", 4.5, time.Time{})
	lines := srv.waitForLines(client, 2, 3*time.Second)
	if len(lines) != 2 {
		t.Fatalf("server received %d lines, want 2: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "binding_events,") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "video_current_time,") {
		t.Errorf("second line = %q", lines[1])
	}
}

func TestClose(t *testing.T) {
	client, w := connectedWithRecorder()
	client.client = nil

	if err := client.Close(); err != nil {
		t.Errorf("Close() without client error = %v", err)
	}

	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	if w.flushes != 0 {
		t.Errorf("flushes = %d, want 0", w.flushes)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	client := &Client{}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHandleWriteErrors(t *testing.T) {
	client := &Client{}
	got := make(chan error, 1)
	client.SetOnError(func(err error) { got <- err })

	ch := make(chan error, 1)
	ch <- errors.New("bucket not found")
	close(ch)
	client.handleWriteErrors(ch)

	select {
	case err := <-got:
		if !errors.Is(err, ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
	default:
		t.Fatal("callback not invoked")
	}
}

// =============================================================================
// Point Tests
// =============================================================================

func TestBindingEventPoint(t *testing.T) {
	at := time.Unix(1700000000, 0)

	tests := []struct {
		name     string
		ev       BindingEvent
		contains []string
		excludes []string
	}{
		{
			name: "channel event",
			ev:   BindingEvent{BindingID: "buttons", Flavor: "ibits-button", EntityID: "b1", Event: "press", Channel: 3, Time: at},
			contains: []string{
				"binding_events,",
				"binding_id=buttons",
				"entity_id=b1",
				"event=press",
				"flavor=ibits-button",
				"channel=3i",
				"count=1i",
			},
		},
		{
			name:     "channel-less event",
			ev:       BindingEvent{BindingID: "door", Event: "locked", Channel: -1, Time: at},
			contains: []string{"binding_id=door", "event=locked", "count=1i"},
			excludes: []string{"channel=", "entity_id=", "flavor="},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := lineOf(bindingEventPoint(tt.ev))
			for _, want := range tt.contains {
				if !strings.Contains(line, want) {
					t.Errorf("line %q missing %q", line, want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(line, bad) {
					t.Errorf("line %q should not contain %q", line, bad)
				}
			}
			if !strings.HasSuffix(line, " 1700000000000000000\n") && !strings.HasSuffix(line, " 1700000000000000000") {
				t.Errorf("line %q has wrong timestamp", line)
			}
		})
	}
}

func TestVideoTimePoint(t *testing.T) {
	line := lineOf(videoTimePoint("screen", "video1", 12.25, time.Unix(1, 0)))

	for _, want := range []string{"video_current_time,", "binding_id=screen", "entity_id=video1", "seconds=12.25"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWrites_Disconnected(t *testing.T) {
	client, w := connectedWithRecorder()
	client.connected = false

	client.WriteBindingEvent(BindingEvent{BindingID: "x", Event: "press"})
	client.WriteDeviceWrite("x", "/dev/x", 4, time.Now())
	client.WritePoint("custom", nil, map[string]any{"v": 1})
	client.Flush()

	if len(w.points) != 0 || w.flushes != 0 {
		t.Errorf("disconnected client wrote %d points, %d flushes", len(w.points), w.flushes)
	}
}

func TestWrites_Connected(t *testing.T) {
	client, w := connectedWithRecorder()

	client.WriteBindingEvent(BindingEvent{BindingID: "x", Event: "press", Channel: 0})
	client.WriteDeviceWrite("x", "/dev/x", 4, time.Time{})
	client.WritePoint("custom", map[string]string{"k": "v"}, map[string]any{"v": 1})

	if len(w.points) != 3 {
		t.Fatalf("points = %d, want 3", len(w.points))
	}
	if line := lineOf(w.points[1]); !strings.Contains(line, "bytes=4i") || !strings.Contains(line, "location=/dev/x") {
		t.Errorf("device write line = %q", line)
	}
}
