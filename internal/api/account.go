package api

import (
	"github.com/nerrad567/stalink/internal/accounts/network"
	"github.com/nerrad567/stalink/internal/mediator"
)

// AccountName is the mediator account the server registers.
const AccountName = "api"

// ChannelNetworkState is the WebSocket channel carrying published link states.
const ChannelNetworkState = "network.state"

func (s *Server) registerAccount() error {
	acct, err := s.m.Register(AccountName, mediator.Routes{mediator.EventNotify: s.onNotify}, 0)
	if err != nil {
		return err
	}
	s.acct = acct
	return acct.Subscribe(network.Name)
}

func (s *Server) onNotify(_ *mediator.Account, ev mediator.Event) error {
	state, err := mediator.Expect[network.NetworkState](ev.Payload)
	if err != nil {
		return err
	}
	s.hub.Broadcast(ChannelNetworkState, networkView(state))
	return nil
}

// snapshot returns the last state published by the network account.
func (s *Server) snapshot(channel string) (any, bool) {
	if channel != ChannelNetworkState {
		return nil, false
	}
	acct, ok := s.m.Account(network.Name)
	if !ok {
		return nil, false
	}
	latest, ok := acct.Latest()
	if !ok {
		return nil, false
	}
	state, err := mediator.Expect[network.NetworkState](latest)
	if err != nil {
		return nil, false
	}
	return networkView(state), true
}
