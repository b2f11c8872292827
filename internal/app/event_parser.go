package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/suipay/payment-service/internal/domain"
	"github.com/suipay/payment-service/pkg/suiclient"
)

// paymentEventPayload mirrors the parsedJson body of the on-chain
// PaymentReceived event. Unknown sibling fields are ignored by design; one
// event carrying extra data must not break the page it arrived in.
type paymentEventPayload struct {
	RefID json.RawMessage `json:"ref_id"`
}

// ParsePaymentEvent decodes one raw event into a typed PaymentEvent, or
// declines with an error. The ref_id field arrives in two encodings depending
// on how the Move contract emitted it: a plain JSON string, or a JSON array of
// bytes spelling the same string. Both are normalized to the same identifier
// before matching against orders.
func ParsePaymentEvent(event suiclient.Event) (*domain.PaymentEvent, error) {
	if len(event.ParsedJSON) == 0 {
		return nil, fmt.Errorf("event %s/%s has no parsed payload", event.ID.TxDigest, event.ID.EventSeq)
	}

	var payload paymentEventPayload
	if err := json.Unmarshal(event.ParsedJSON, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if len(payload.RefID) == 0 {
		return nil, fmt.Errorf("event %s/%s has no ref_id", event.ID.TxDigest, event.ID.EventSeq)
	}

	refString, err := normalizeRefID(payload.RefID)
	if err != nil {
		return nil, err
	}

	refID, err := uuid.Parse(refString)
	if err != nil {
		return nil, fmt.Errorf("ref_id %q is not an order id: %w", refString, err)
	}

	return &domain.PaymentEvent{
		RefID:    refID,
		TxDigest: event.ID.TxDigest,
		EventSeq: event.ID.EventSeq,
	}, nil
}

// normalizeRefID accepts the two wire encodings of ref_id and returns the
// underlying string.
func normalizeRefID(raw json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return strings.TrimSpace(asString), nil
	}

	// A Move vector<u8> surfaces as a JSON array of numbers. encoding/json
	// would read []byte as base64, so decode explicitly.
	var asInts []int
	if err := json.Unmarshal(raw, &asInts); err == nil {
		buf := make([]byte, 0, len(asInts))
		for _, b := range asInts {
			if b < 0 || b > 255 {
				return "", fmt.Errorf("ref_id byte out of range: %d", b)
			}
			buf = append(buf, byte(b))
		}
		return strings.TrimSpace(string(buf)), nil
	}

	return "", fmt.Errorf("ref_id has unsupported encoding: %s", string(raw))
}
