// Package payment defines the payment collaborator consumed by the
// settlement flow.  Gateway specifics stay behind the Charger
// interface; the core never branches on real-versus-simulated payment.
package payment

import "context"

// Receipt is the outcome of a charge attempt.  Success=false with a
// nil error means the gateway processed the request and declined it
// (insufficient funds, expired card); Decline carries the gateway's
// reason for the client UI.
type Receipt struct {
	PaymentRef string `json:"payment_ref"`
	Success    bool   `json:"success"`
	Decline    string `json:"decline,omitempty"`
}

// Charger charges the payable total of a session.  Implementations
// must honour ctx cancellation; infrastructure failures are returned
// as errors and treated as retryable by callers.
type Charger interface {
	Charge(ctx context.Context, sessionID string, amountCents int64, method string) (Receipt, error)
}
