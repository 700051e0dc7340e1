package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/stalink/internal/kvstore"
	"github.com/nerrad567/stalink/internal/mediator"
	"github.com/nerrad567/stalink/internal/timer"
)

type fixture struct {
	backend *kvstore.Memory
	store   *kvstore.Store
	caller  *mediator.Account
}

func setup(t *testing.T) fixture {
	t.Helper()
	m := mediator.New(timer.NewManual())
	backend := kvstore.NewMemory()
	store := kvstore.New(backend, Keys()...)

	_, err := Register(m, store, nil)
	require.NoError(t, err)
	caller, err := m.Register("caller", nil, 0)
	require.NoError(t, err)

	return fixture{backend: backend, store: store, caller: caller}
}

func TestPullDefaultsToEmpty(t *testing.T) {
	f := setup(t)

	req := &Request{Type: TypeWiFi}
	require.NoError(t, f.caller.Pull(Name, req))
	assert.True(t, req.WiFi.IsZero())
	assert.Nil(t, req.WiFi.Password)
}

func TestNotifyThenPull(t *testing.T) {
	f := setup(t)

	err := f.caller.Notify(Name, &Request{
		Type: TypeWiFi,
		WiFi: WiFiRecord{SSID: []byte("Home"), Password: []byte("secret1")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.Saves())

	req := &Request{Type: TypeWiFi}
	require.NoError(t, f.caller.Pull(Name, req))
	assert.Equal(t, "Home", string(req.WiFi.SSID))
	assert.Equal(t, "secret1", string(req.WiFi.Password))
}

func TestNotifyOpenNetworkClearsPassword(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.caller.Notify(Name, &Request{
		Type: TypeWiFi,
		WiFi: WiFiRecord{SSID: []byte("Home"), Password: []byte("a-long-passphrase")},
	}))
	require.NoError(t, f.caller.Notify(Name, &Request{
		Type: TypeWiFi,
		WiFi: WiFiRecord{SSID: []byte("Cafe")},
	}))

	req := &Request{Type: TypeWiFi}
	require.NoError(t, f.caller.Pull(Name, req))
	assert.Equal(t, "Cafe", string(req.WiFi.SSID))
	assert.Empty(t, req.WiFi.Password)
}

func TestRestore(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.caller.Notify(Name, &Request{
		Type: TypeWiFi,
		WiFi: WiFiRecord{SSID: []byte("Home"), Password: []byte("secret1")},
	}))
	require.NoError(t, f.caller.Notify(Name, &Request{Type: TypeRestore}))

	req := &Request{Type: TypeWiFi}
	require.NoError(t, f.caller.Pull(Name, req))
	assert.True(t, req.WiFi.IsZero())
}

func TestErrors(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{
			name:    "pull wrong payload type",
			call:    func() error { return f.caller.Pull(Name, &WiFiRecord{}) },
			wantErr: mediator.ErrSizeMismatch,
		},
		{
			name:    "pull value instead of pointer",
			call:    func() error { return f.caller.Pull(Name, Request{Type: TypeWiFi}) },
			wantErr: mediator.ErrSizeMismatch,
		},
		{
			name:    "pull nil request",
			call:    func() error { return f.caller.Pull(Name, (*Request)(nil)) },
			wantErr: mediator.ErrParam,
		},
		{
			name:    "pull restore",
			call:    func() error { return f.caller.Pull(Name, &Request{Type: TypeRestore}) },
			wantErr: mediator.ErrUnsupported,
		},
		{
			name:    "notify unknown type",
			call:    func() error { return f.caller.Notify(Name, &Request{Type: 42}) },
			wantErr: mediator.ErrUnsupported,
		},
		{
			name: "notify oversize ssid",
			call: func() error {
				return f.caller.Notify(Name, &Request{
					Type: TypeWiFi,
					WiFi: WiFiRecord{SSID: make([]byte, 33)},
				})
			},
			wantErr: mediator.ErrParam,
		},
		{
			name: "notify ssid with NUL byte",
			call: func() error {
				return f.caller.Notify(Name, &Request{
					Type: TypeWiFi,
					WiFi: WiFiRecord{SSID: []byte("Ho\x00me")},
				})
			},
			wantErr: ErrEmbeddedNUL,
		},
		{
			name:    "unknown account",
			call:    func() error { return f.caller.Notify("missing", &Request{}) },
			wantErr: mediator.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.wantErr)
		})
	}
}

func TestStoreFailureIsHandlerError(t *testing.T) {
	f := setup(t)
	f.backend.Err = errors.New("flash write failed")

	err := f.caller.Notify(Name, &Request{
		Type: TypeWiFi,
		WiFi: WiFiRecord{SSID: []byte("Home")},
	})
	require.Error(t, err)
	assert.Equal(t, mediator.StatusHandlerError, mediator.StatusOf(err))

	err = f.caller.Notify(Name, &Request{Type: TypeRestore})
	assert.Equal(t, mediator.StatusHandlerError, mediator.StatusOf(err))
}

func TestWiFiRecordBinary(t *testing.T) {
	rec := WiFiRecord{SSID: []byte("Home"), Password: []byte("secret1")}
	buf, err := rec.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, RecordSize)
	assert.Equal(t, byte(0), buf[SSIDFieldSize-1])
	assert.Equal(t, "secret1", string(buf[SSIDFieldSize:SSIDFieldSize+7]))

	var back WiFiRecord
	require.NoError(t, back.UnmarshalBinary(buf))
	assert.True(t, rec.Equal(back))

	assert.Error(t, back.UnmarshalBinary(buf[:10]))

	_, err = WiFiRecord{SSID: []byte("x"), Password: make([]byte, 65)}.MarshalBinary()
	assert.Error(t, err)

	_, err = WiFiRecord{SSID: []byte("Home"), Password: []byte("sec\x00ret")}.MarshalBinary()
	assert.ErrorIs(t, err, ErrEmbeddedNUL)
}

func TestWiFiRecordEqualIsExact(t *testing.T) {
	a := WiFiRecord{SSID: []byte("Home"), Password: []byte("secret1")}
	assert.False(t, a.Equal(WiFiRecord{SSID: []byte("Home"), Password: []byte("secret")}))
	assert.False(t, a.Equal(WiFiRecord{SSID: []byte("Home2"), Password: []byte("secret1")}))
	assert.True(t, a.Equal(RecordFrom(a.Credentials())))
}
