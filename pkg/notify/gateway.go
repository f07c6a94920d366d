package notify

// Gateway defines the interface for dispatching booking confirmation
// notifications. Dispatch is best-effort: failures are reported to the
// caller for logging and retry-on-next-observation, never surfaced as a
// booking failure.
type Gateway interface {
	// SendConfirmation delivers the ticket summary to the given address.
	SendConfirmation(to string, ticketInfo string) error

	// GetName returns the name of the gateway implementation
	GetName() string
}
