package types

const (
	ReceiptStatusSuccess = "success"
	ReceiptStatusFailed  = "failed"
)

// Receipt reflects the outcome of an applied transaction. Failed receipts carry
// the error message and no events.
type Receipt struct {
	TxHash    string  `json:"txHash"`
	Type      string  `json:"type"`
	Sender    string  `json:"sender"`
	Nonce     uint64  `json:"nonce"`
	Sequence  uint64  `json:"sequence"`
	Status    string  `json:"status"`
	Error     string  `json:"error,omitempty"`
	Events    []Event `json:"events"`
	Timestamp int64   `json:"timestamp"`
}

// Succeeded reports whether the transaction committed.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptStatusSuccess
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return Event{Type: e.Type, Attributes: attrs}
}
