package station

import (
	"time"

	"github.com/google/uuid"
)

// StartProvisioning opens a provisioning window.
//
// A running session is stopped and restarted, so repeated calls leave exactly
// one session with a full deadline. An established link is dropped first.
func (s *Station) StartProvisioning() error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}

	if s.Flags().Has(FlagProvisioningRunning) {
		s.stopProvisioning(StopRestarted)
	}

	resume := s.State()
	// Set before the disconnect so the resulting link-down is swallowed.
	s.setFlags(FlagProvisioningRunning)

	if s.Flags().Has(FlagNetworkConnected) {
		if err := s.driver.Disconnect(); err != nil {
			s.clearFlags(FlagProvisioningRunning)
			return driverErr("disconnect", err)
		}
		s.clearFlags(FlagNetworkConnected)
		resume = StateDisconnected
	}

	if err := s.driver.StartProvisioning(s.variant); err != nil {
		s.clearFlags(FlagProvisioningRunning)
		return driverErr("provisioning start", err)
	}

	session := ProvisioningSession{
		ID:      uuid.New(),
		Variant: s.variant,
		Started: time.Now(),
	}

	s.provMu.Lock()
	s.session = session
	s.resume = resume
	deadline := s.deadline
	s.provMu.Unlock()

	deadline.Start()
	s.setState(StateProvisioning)

	s.logger.Info("provisioning started",
		"session", session.ID.String(),
		"variant", session.Variant.String(),
		"timeout", s.provisioningTimeout.String())
	s.emit(Event{Kind: EventProvisioningStarted, Session: session.ID})
	return nil
}

// StopProvisioning closes the provisioning window. It is idempotent and safe
// to call from any goroutine.
func (s *Station) StopProvisioning() {
	s.stopProvisioning(StopAborted)
}

// Session returns the running provisioning session.
func (s *Station) Session() (ProvisioningSession, bool) {
	if !s.Flags().Has(FlagProvisioningRunning) {
		return ProvisioningSession{}, false
	}
	s.provMu.Lock()
	defer s.provMu.Unlock()
	return s.session, true
}

func (s *Station) stopProvisioning(reason StopReason) {
	wasRunning := s.testAndClear(FlagProvisioningRunning)
	if wasRunning {
		if err := s.driver.StopProvisioning(); err != nil {
			s.logger.Warn("stopping provisioning listener failed", "error", err)
		}
	}

	s.provMu.Lock()
	deadline := s.deadline
	session := s.session
	resume := s.resume
	if wasRunning {
		s.session = ProvisioningSession{}
	}
	s.provMu.Unlock()

	if deadline != nil {
		deadline.Stop()
	}
	if !wasRunning {
		return
	}

	if s.Flags().Has(FlagNetworkConnected) {
		resume = StateConnected
	}
	s.state.CompareAndSwap(uint32(StateProvisioning), uint32(resume))

	s.logger.Info("provisioning stopped", "session", session.ID.String(), "reason", reason.String())
	s.emit(Event{Kind: EventProvisioningStopped, Session: session.ID, Reason: reason})
}

func (s *Station) onFoundChannel() {
	if !s.Flags().Has(FlagProvisioningRunning) {
		return
	}
	s.provMu.Lock()
	s.session.Locks++
	deadline := s.deadline
	s.provMu.Unlock()

	deadline.Restart()
	s.logger.Debug("provisioning channel locked, deadline re-armed")
}

// onDeadline runs on the timer service context.
func (s *Station) onDeadline() {
	s.logger.Info("provisioning window expired")
	s.stopProvisioning(StopTimeout)
}
