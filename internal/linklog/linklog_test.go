package linklog

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/stalink/internal/station"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "data", "link.journal"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestEncodeDecode(t *testing.T) {
	rec := Record{Time: epoch, Kind: "got-ip", IP: "10.0.0.7"}
	data, err := Encode(rec)
	require.NoError(t, err)

	again, err := Encode(rec)
	require.NoError(t, err)
	assert.Equal(t, data, again, "encoding must be deterministic")

	got, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, got.Time.Equal(epoch), "nanoseconds kept: %v", got.Time)
	assert.Equal(t, "got-ip", got.Kind)
	assert.Equal(t, "10.0.0.7", got.IP)
	assert.Empty(t, got.SSID)
}

func TestRecordFromEvent(t *testing.T) {
	session := uuid.New()
	tests := []struct {
		name string
		ev   station.Event
		want Record
		ok   bool
	}{
		{
			name: "got ip",
			ev:   station.Event{Kind: station.EventGotIP, IPv4: station.IPv4FromNet(net.IPv4(10, 0, 0, 7), nil, nil)},
			want: Record{Time: epoch, Kind: "got-ip", IP: "10.0.0.7"},
			ok:   true,
		},
		{
			name: "credentials keep ssid only",
			ev: station.Event{
				Kind:        station.EventCredentialsDiscovered,
				Credentials: station.Credentials{SSID: []byte("Home"), Password: []byte("secret1")},
				Session:     session,
			},
			want: Record{Time: epoch, Kind: "credentials-discovered", SSID: "Home", Session: session.String()},
			ok:   true,
		},
		{
			name: "provisioning stopped",
			ev:   station.Event{Kind: station.EventProvisioningStopped, Reason: station.StopTimeout, Session: session},
			want: Record{Time: epoch, Kind: "provisioning-stopped", Reason: "timeout", Session: session.String()},
			ok:   true,
		},
		{
			name: "scan skipped",
			ev:   station.Event{Kind: station.EventScanComplete},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RecordFromEvent(tt.ev, epoch)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJournalRoundTrip(t *testing.T) {
	j := openTemp(t)
	j.now = func() time.Time { return epoch }

	j.Observe(station.Event{Kind: station.EventConnected})
	j.Observe(station.Event{Kind: station.EventScanComplete})
	j.Observe(station.Event{Kind: station.EventGotIP, IPv4: station.IPv4FromNet(net.IPv4(10, 0, 0, 7), nil, nil)})
	j.Observe(station.Event{Kind: station.EventDisconnected})
	require.NoError(t, j.Close())

	r, err := NewReader(j.Path())
	require.NoError(t, err)
	defer r.Close()

	var kinds []string
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, rec.Kind)
	}
	assert.Equal(t, []string{"connected", "got-ip", "disconnected"}, kinds)
}

func TestAppendAfterClose(t *testing.T) {
	j := openTemp(t)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())
	assert.ErrorIs(t, j.Append(Record{Kind: "connected"}), ErrClosed)
	j.Observe(station.Event{Kind: station.EventConnected})
}

func TestTail(t *testing.T) {
	j := openTemp(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(Record{Time: epoch.Add(time.Duration(i) * time.Second), Kind: "connected"}))
	}

	recs, err := Tail(j.Path(), 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.True(t, recs[0].Time.Equal(epoch.Add(2*time.Second)))
	assert.True(t, recs[2].Time.Equal(epoch.Add(4*time.Second)))

	recs, err = Tail(j.Path(), 10)
	require.NoError(t, err)
	assert.Len(t, recs, 5)

	recs, err = Tail(j.Path(), 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestTailMissingJournal(t *testing.T) {
	recs, err := Tail(filepath.Join(t.TempDir(), "none.journal"), 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestTailTruncatedRecord(t *testing.T) {
	j := openTemp(t)
	require.NoError(t, j.Append(Record{Time: epoch, Kind: "connected"}))
	require.NoError(t, j.Close())

	partial, err := Encode(Record{Time: epoch, Kind: "disconnected"})
	require.NoError(t, err)
	f, err := os.OpenFile(j.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(partial[:len(partial)/2])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	recs, err := Tail(j.Path(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "connected", recs[0].Kind)
}
