package influxdb_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/stalink/internal/infrastructure/config"
	"github.com/nerrad567/stalink/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "stalink-dev-token",
		Org:           "stalink",
		Bucket:        "link",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := influxdb.Connect(testConfig())
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

func TestConnect(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.WritePoint(influxdb.LinkStatePoint("stalink-test", true, "10.0.0.7", time.Now()))
	client.Flush()
	if got := client.Stats().Queued; got != 1 {
		t.Errorf("Stats().Queued = %d, want 1", got)
	}

	client.Close()
	client.WritePoint(influxdb.LinkStatePoint("stalink-test", false, "", time.Now()))
	if got := client.Stats().Dropped; got != 1 {
		t.Errorf("Stats().Dropped = %d, want 1", got)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1"

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var c influxdb.Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client = %v", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
	c.Flush()

	c.WritePoint(influxdb.LinkStatePoint("stalink-test", true, "", time.Now()))
	if got := c.Stats(); got.Dropped != 1 || got.Queued != 0 {
		t.Errorf("Stats() = %+v, want one dropped point", got)
	}
}

func TestLinkStatePoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)

	tests := []struct {
		name      string
		connected bool
		ip        string
		want      string
	}{
		{
			name:      "connected",
			connected: true,
			ip:        "10.0.0.7",
			want:      `link_state,device=stalink-01 connected=1i,ip="10.0.0.7" 1700000000000000000`,
		},
		{
			name: "disconnected",
			want: `link_state,device=stalink-01 connected=0i 1700000000000000000`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := influxdb.LinkStatePoint("stalink-01", tt.connected, tt.ip, ts)
			got := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
			if got != tt.want {
				t.Errorf("line protocol = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLinkTransitionPoint(t *testing.T) {
	p := influxdb.LinkTransitionPoint("stalink-01", "disconnected", time.Unix(1, 0))
	got := strings.TrimSpace(write.PointToLineProtocol(p, time.Second))
	want := `link_transition,device=stalink-01,state=disconnected count=1i 1`
	if got != want {
		t.Errorf("line protocol = %s, want %s", got, want)
	}
}
