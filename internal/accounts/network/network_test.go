package network

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/stalink/internal/accounts/storage"
	"github.com/nerrad567/stalink/internal/kvstore"
	"github.com/nerrad567/stalink/internal/mediator"
	"github.com/nerrad567/stalink/internal/radio/sim"
	"github.com/nerrad567/stalink/internal/station"
	"github.com/nerrad567/stalink/internal/timer"
)

type env struct {
	timers  *timer.Manual
	backend *kvstore.Memory
	store   *kvstore.Store
	radio   *sim.Driver
	st      *station.Station
	network *Account
	caller  *mediator.Account
	states  *[]NetworkState
}

func homeAP(password string) sim.AccessPoint {
	return sim.AccessPoint{
		SSID:     []byte("Home"),
		Password: []byte(password),
		RSSI:     -40,
		IPv4:     station.IPv4FromNet(net.IPv4(192, 168, 1, 20), net.IPv4(192, 168, 1, 1), net.IPv4(255, 255, 255, 0)),
	}
}

func guestAP() sim.AccessPoint {
	return sim.AccessPoint{SSID: []byte("Guest"), RSSI: -70}
}

// setup wires storage, a synchronous simulated radio, the station and the
// network account. stored, when non-zero, is written to the store first.
// Driver events are not flushed.
func setup(t *testing.T, stored storage.WiFiRecord, aps ...sim.AccessPoint) *env {
	t.Helper()

	timers := timer.NewManual()
	m := mediator.New(timers)

	backend := kvstore.NewMemory()
	store := kvstore.New(backend, storage.Keys()...)
	if !stored.IsZero() {
		buf, err := stored.MarshalBinary()
		require.NoError(t, err)
		require.NoError(t, store.Set(storage.WiFiKey, buf))
	}
	_, err := storage.Register(m, store, nil)
	require.NoError(t, err)

	states := &[]NetworkState{}
	watcher, err := m.Register("watcher", mediator.HandlerFunc(func(_ *mediator.Account, ev mediator.Event) error {
		s, err := mediator.Expect[NetworkState](ev.Payload)
		if err != nil {
			return err
		}
		*states = append(*states, s)
		return nil
	}), 0)
	require.NoError(t, err)
	require.NoError(t, watcher.Subscribe(Name))

	caller, err := m.Register("caller", nil, 0)
	require.NoError(t, err)

	radio := sim.New(aps, sim.Synchronous())
	t.Cleanup(func() { radio.Close() }) //nolint:errcheck // Test cleanup
	st := station.New(radio, timers)

	acct, err := Register(m, st)
	require.NoError(t, err)
	require.NoError(t, m.Start())
	t.Cleanup(m.Stop)

	return &env{
		timers:  timers,
		backend: backend,
		store:   store,
		radio:   radio,
		st:      st,
		network: acct,
		caller:  caller,
		states:  states,
	}
}

func (e *env) stored(t *testing.T) storage.WiFiRecord {
	t.Helper()
	req := &storage.Request{Type: storage.TypeWiFi}
	require.NoError(t, e.caller.Pull(storage.Name, req))
	return req.WiFi
}

func home(password string) storage.WiFiRecord {
	return storage.WiFiRecord{SSID: []byte("Home"), Password: []byte(password)}
}

func TestRegisterStartsRadioAndScans(t *testing.T) {
	e := setup(t, storage.WiFiRecord{}, guestAP())

	assert.True(t, e.network.Ready())
	assert.Equal(t, 1, e.radio.Count("start"))
	assert.Equal(t, 1, e.radio.Count("scan"))
	assert.Equal(t, []string{storage.Name}, e.network.Mediator().Subscriptions())
	assert.True(t, e.network.Mediator().TimerEnabled())
	assert.Equal(t, DefaultRescanInterval, e.network.Mediator().TimerPeriod())
}

func TestScanFindsStoredNetwork(t *testing.T) {
	e := setup(t, home("secret1"), homeAP("secret1"), guestAP())

	e.radio.Flush()

	connects := e.radio.Connects()
	require.Len(t, connects, 1)
	assert.Equal(t, "Home", string(connects[0].SSID))
	assert.Equal(t, "secret1", string(connects[0].Password))

	require.Len(t, *e.states, 1)
	assert.Equal(t, Connected, (*e.states)[0].State)
	assert.Equal(t, "192.168.1.20", (*e.states)[0].IPv4.Addr().String())
	assert.True(t, e.network.Connected())
	assert.False(t, e.network.Mediator().TimerEnabled(), "rescans stop once connected")

	latest, ok := e.network.Mediator().Latest()
	require.True(t, ok)
	assert.Equal(t, Connected, latest.(NetworkState).State)
}

func TestScanWithoutStoredNetwork(t *testing.T) {
	t.Run("nothing stored", func(t *testing.T) {
		e := setup(t, storage.WiFiRecord{}, homeAP("secret1"), guestAP())
		e.radio.Flush()
		assert.Empty(t, e.radio.Connects())
	})

	t.Run("stored network out of range", func(t *testing.T) {
		e := setup(t, storage.WiFiRecord{SSID: []byte("Office")}, homeAP("secret1"), guestAP())
		e.radio.Flush()
		assert.Empty(t, e.radio.Connects())
	})

	t.Run("prefix is not a match", func(t *testing.T) {
		e := setup(t, storage.WiFiRecord{SSID: []byte("Hom")}, homeAP("secret1"))
		e.radio.Flush()
		assert.Empty(t, e.radio.Connects())
	})
}

func TestCredentialsDiscovered(t *testing.T) {
	// Home appears only after the initial scan so the provisioned pair is
	// the first thing the station joins.
	provision := func(t *testing.T, e *env, password string) {
		t.Helper()
		e.radio.Flush()
		e.radio.SetAccessPoints([]sim.AccessPoint{homeAP(password)})
		e.radio.ResetCalls()
		e.radio.Emit(station.DriverEvent{
			Kind:        station.DriverProvisioningCredentials,
			Credentials: station.Credentials{SSID: []byte("Home"), Password: []byte(password)},
		})
		e.radio.Flush()
	}

	t.Run("unchanged credentials are not rewritten", func(t *testing.T) {
		e := setup(t, home("secret1"), guestAP())
		saves := e.backend.Saves()

		provision(t, e, "secret1")

		assert.Equal(t, saves, e.backend.Saves(), "no storage write")
		connects := e.radio.Connects()
		require.Len(t, connects, 1)
		assert.Equal(t, "Home", string(connects[0].SSID))
		assert.Equal(t, "secret1", string(connects[0].Password))
	})

	t.Run("changed password is written once", func(t *testing.T) {
		e := setup(t, home("secret1"), guestAP())
		saves := e.backend.Saves()

		provision(t, e, "secret2")

		assert.Equal(t, saves+1, e.backend.Saves())
		assert.True(t, e.stored(t).Equal(home("secret2")))

		connects := e.radio.Connects()
		require.Len(t, connects, 1)
		assert.Equal(t, "secret2", string(connects[0].Password))
		assert.True(t, e.network.Connected())
	})
}

func TestPull(t *testing.T) {
	e := setup(t, home("secret1"), homeAP("secret1"))

	req := &Request{Type: TypeNetwork}
	require.NoError(t, e.caller.Pull(Name, req))
	assert.Equal(t, Disconnected, req.Network.State)
	assert.True(t, req.Network.IPv4.IsZero())

	e.radio.Flush()
	req = &Request{Type: TypeNetwork}
	require.NoError(t, e.caller.Pull(Name, req))
	assert.Equal(t, Connected, req.Network.State)
	assert.Equal(t, "192.168.1.1", req.Network.IPv4.GatewayAddr().String())

	req = &Request{Type: TypeMAC}
	require.NoError(t, e.caller.Pull(Name, req))
	assert.Equal(t, "02:00:00:00:00:01", req.MAC.String())
}

func TestPullWrongPayloadIsSizeMismatch(t *testing.T) {
	e := setup(t, storage.WiFiRecord{}, guestAP())

	for _, payload := range []any{
		Request{Type: TypeNetwork},
		&NetworkState{},
		&storage.Request{Type: storage.TypeWiFi},
		make([]byte, 64),
	} {
		err := e.caller.Pull(Name, payload)
		assert.ErrorIs(t, err, mediator.ErrSizeMismatch, "%T", payload)
		assert.Equal(t, mediator.StatusSizeMismatch, mediator.StatusOf(err))
	}

	e.radio.Flush()
	assert.ErrorIs(t, e.caller.Notify(Name, NetworkState{}), mediator.ErrSizeMismatch)
}

func TestUnsupportedSubTypes(t *testing.T) {
	e := setup(t, storage.WiFiRecord{}, guestAP())

	assert.ErrorIs(t, e.caller.Pull(Name, &Request{Type: TypeConnect}), mediator.ErrUnsupported)
	assert.ErrorIs(t, e.caller.Pull(Name, &Request{Type: TypeDisconnect}), mediator.ErrUnsupported)
	assert.ErrorIs(t, e.caller.Notify(Name, &Request{Type: TypeNetwork}), mediator.ErrUnsupported)
	assert.ErrorIs(t, e.caller.Notify(Name, &Request{Type: 99}), mediator.ErrUnsupported)
}

func TestNotifyMAC(t *testing.T) {
	e := setup(t, storage.WiFiRecord{}, guestAP())

	mac := net.HardwareAddr{0x02, 0x12, 0x34, 0x56, 0x78, 0x9a}
	require.NoError(t, e.caller.Notify(Name, &Request{Type: TypeMAC, MAC: mac}))

	req := &Request{Type: TypeMAC}
	require.NoError(t, e.caller.Pull(Name, req))
	assert.Equal(t, mac, req.MAC)

	err := e.caller.Notify(Name, &Request{Type: TypeMAC, MAC: net.HardwareAddr{1}})
	assert.ErrorIs(t, err, mediator.ErrParam)
}

func TestNotifyConnect(t *testing.T) {
	t.Run("nil ssid", func(t *testing.T) {
		e := setup(t, storage.WiFiRecord{}, guestAP())
		err := e.caller.Notify(Name, &Request{Type: TypeConnect})
		assert.ErrorIs(t, err, mediator.ErrParam)
		assert.Equal(t, mediator.StatusParamError, mediator.StatusOf(err))
	})

	t.Run("oversize ssid", func(t *testing.T) {
		e := setup(t, storage.WiFiRecord{}, guestAP())
		err := e.caller.Notify(Name, &Request{Type: TypeConnect, Connect: ConnectParams{SSID: make([]byte, 33)}})
		assert.ErrorIs(t, err, mediator.ErrParam)
	})

	t.Run("password with NUL byte is rejected", func(t *testing.T) {
		e := setup(t, home("secret1"), guestAP())
		saves := e.backend.Saves()

		err := e.caller.Notify(Name, &Request{
			Type:    TypeConnect,
			Connect: ConnectParams{SSID: []byte("Home"), Password: []byte("sec\x00ret")},
		})
		assert.ErrorIs(t, err, mediator.ErrParam)
		assert.ErrorIs(t, err, storage.ErrEmbeddedNUL)
		assert.Equal(t, saves, e.backend.Saves())
		assert.True(t, e.stored(t).Equal(home("secret1")))
	})

	t.Run("new credentials are stored and joined after the scan", func(t *testing.T) {
		e := setup(t, storage.WiFiRecord{}, homeAP("secret1"), guestAP())
		e.radio.Flush()
		e.radio.ResetCalls()

		require.NoError(t, e.caller.Notify(Name, &Request{
			Type:    TypeConnect,
			Connect: ConnectParams{SSID: []byte("Home"), Password: []byte("secret1")},
		}))
		assert.True(t, e.stored(t).Equal(home("secret1")))
		assert.Equal(t, 1, e.radio.Count("scan"))
		assert.True(t, e.network.Mediator().TimerEnabled())

		e.radio.Flush()
		require.Len(t, e.radio.Connects(), 1)
		assert.True(t, e.network.Connected())
	})

	t.Run("same credentials are not rewritten", func(t *testing.T) {
		e := setup(t, home("secret1"), guestAP())
		saves := e.backend.Saves()

		require.NoError(t, e.caller.Notify(Name, &Request{
			Type:    TypeConnect,
			Connect: ConnectParams{SSID: []byte("Home"), Password: []byte("secret1")},
		}))
		assert.Equal(t, saves, e.backend.Saves())
	})

	t.Run("nil password clears a stored one", func(t *testing.T) {
		e := setup(t, home("secret1"), guestAP())

		require.NoError(t, e.caller.Notify(Name, &Request{
			Type:    TypeConnect,
			Connect: ConnectParams{SSID: []byte("Home")},
		}))
		rec := e.stored(t)
		assert.Equal(t, "Home", string(rec.SSID))
		assert.Empty(t, rec.Password)
	})
}

func TestNotifyDisconnectPublishes(t *testing.T) {
	e := setup(t, home("secret1"), homeAP("secret1"))
	e.radio.Flush()
	require.True(t, e.network.Connected())

	require.NoError(t, e.caller.Notify(Name, &Request{Type: TypeDisconnect}))
	e.radio.Flush()

	require.Len(t, *e.states, 2)
	assert.Equal(t, Disconnected, (*e.states)[1].State)
	assert.False(t, e.network.Connected())
	assert.Len(t, e.radio.Connects(), 1, "operator disconnect is not retried")
}

func TestUnexpectedDropReconnectsSilently(t *testing.T) {
	e := setup(t, home("secret1"), homeAP("secret1"))
	e.radio.Flush()
	e.radio.ResetCalls()
	published := len(*e.states)

	e.radio.DropLink()
	e.radio.Flush()

	connects := e.radio.Connects()
	require.Len(t, connects, 1)
	assert.Equal(t, "Home", string(connects[0].SSID))
	for _, s := range (*e.states)[published:] {
		assert.NotEqual(t, Disconnected, s.State, "drop must not be published")
	}
}

func TestProvisioningTimeoutAfterDroppingLink(t *testing.T) {
	e := setup(t, home("secret1"), homeAP("secret1"))
	e.radio.Flush()
	require.True(t, e.network.Connected())
	require.False(t, e.network.Mediator().TimerEnabled())
	e.radio.ResetCalls()
	published := len(*e.states)

	require.NoError(t, e.st.StartProvisioning())
	e.radio.Flush()
	assert.Len(t, *e.states, published, "link-down is swallowed while provisioning")

	e.timers.Advance(station.DefaultProvisioningTimeout + time.Second)

	require.Len(t, *e.states, published+1)
	assert.Equal(t, Disconnected, (*e.states)[published].State)
	assert.False(t, e.network.Connected())
	assert.True(t, e.network.Mediator().TimerEnabled())

	req := &Request{Type: TypeNetwork}
	require.NoError(t, e.caller.Pull(Name, req))
	assert.Equal(t, Disconnected, req.Network.State)

	e.radio.Flush()
	connects := e.radio.Connects()
	require.Len(t, connects, 1)
	assert.Equal(t, "Home", string(connects[0].SSID))
	assert.True(t, e.network.Connected())
	assert.Equal(t, Connected, (*e.states)[len(*e.states)-1].State)
}

func TestProvisioningAbortWhileDisconnectedPublishesNothing(t *testing.T) {
	e := setup(t, storage.WiFiRecord{}, guestAP())
	e.radio.Flush()
	published := len(*e.states)

	require.NoError(t, e.st.StartProvisioning())
	e.st.StopProvisioning()
	e.radio.Flush()

	assert.Len(t, *e.states, published)
	assert.False(t, e.network.Connected())
}

func TestTimerRescansWhileReady(t *testing.T) {
	e := setup(t, storage.WiFiRecord{}, guestAP())
	e.radio.Flush()
	e.radio.ResetCalls()

	e.timers.Advance(DefaultRescanInterval)
	assert.Equal(t, 1, e.radio.Count("scan"))

	e.timers.Advance(2 * DefaultRescanInterval)
	assert.Equal(t, 3, e.radio.Count("scan"))
}

func TestWithRescanInterval(t *testing.T) {
	m := mediator.New(timer.NewManual())
	radio := sim.New(nil, sim.Synchronous())
	defer radio.Close() //nolint:errcheck // Test cleanup

	acct, err := Register(m, station.New(radio, timer.NewManual()), WithRescanInterval(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, acct.Mediator().TimerPeriod())
}

func TestObserverSeesStationEvents(t *testing.T) {
	m := mediator.New(timer.NewManual())
	radio := sim.New(nil, sim.Synchronous())
	defer radio.Close() //nolint:errcheck // Test cleanup

	var seen []station.EventKind
	_, err := Register(m, station.New(radio, timer.NewManual()),
		WithObserver(func(ev station.Event) { seen = append(seen, ev.Kind) }))
	require.NoError(t, err)
	radio.Flush()

	require.NotEmpty(t, seen)
	assert.Equal(t, station.EventReady, seen[0])
	assert.Contains(t, seen, station.EventStarted)
}
