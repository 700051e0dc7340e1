// Package linklog keeps an append-only journal of link events.
//
// Each entry is one CBOR-encoded Record written back to back with no framing,
// so a journal can be replayed with a streaming decoder. Encoding is
// deterministic (canonical map order, definite lengths) and timestamps keep
// nanosecond precision.
//
// The journal is fed by a station event tap:
//
//	j, err := linklog.Open(cfg.Journal.Path)
//	if err != nil {
//	    return err
//	}
//	defer j.Close()
//
//	network.Register(m, st, network.WithObserver(j.Observe))
//
// Credentials never reach the journal; only the SSID is kept.
package linklog
