package audit

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Operation names a cart or session operation.
type Operation string

// Recorded operations.
const (
	OpGetOrCreateCart     Operation = "get_or_create_cart"
	OpUpdateCart          Operation = "update_cart"
	OpAddLineItem         Operation = "add_line_item"
	OpUpdateLineItem      Operation = "update_line_item"
	OpDeleteLineItem      Operation = "delete_line_item"
	OpSetShippingMethod   Operation = "set_shipping_method"
	OpApplyPromotions     Operation = "apply_promotions"
	OpSetAddresses        Operation = "set_addresses"
	OpInitiatePayment     Operation = "initiate_payment_session"
	OpCompleteOrder       Operation = "complete_order"
	OpUpdateRegion        Operation = "update_region"
	OpCustomerAuthCleanup Operation = "customer_auth_cleanup"
)

// Valid reports whether o is a recorded operation.
func (o Operation) Valid() bool {
	switch o {
	case OpGetOrCreateCart, OpUpdateCart, OpAddLineItem, OpUpdateLineItem,
		OpDeleteLineItem, OpSetShippingMethod, OpApplyPromotions, OpSetAddresses,
		OpInitiatePayment, OpCompleteOrder, OpUpdateRegion, OpCustomerAuthCleanup:
		return true
	default:
		return false
	}
}

// NewEvent creates a new audit event.
func NewEvent(op Operation) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Operation: op,
	}
}

// WithSession adds the session and customer identifiers.
func (e *Event) WithSession(sessionID, customerID string) *Event {
	e.SessionID = sessionID
	e.CustomerID = customerID
	return e
}

// WithCart adds the cart the operation acted on.
func (e *Event) WithCart(cartID string) *Event {
	e.CartID = cartID
	return e
}

// WithRegion adds the requested country and resolved region.
func (e *Event) WithRegion(countryCode, regionID string) *Event {
	e.CountryCode = countryCode
	e.RegionID = regionID
	return e
}

// WithTags adds the cache tags the operation invalidated.
func (e *Event) WithTags(tags []string) *Event {
	e.Tags = tags
	return e
}

// WithParameters adds parameters to the event.
func (e *Event) WithParameters(params map[string]any) *Event {
	e.Parameters = params
	return e
}

// WithResult adds result information to the event.
func (e *Event) WithResult(success bool, errorMsg string, durationMS int64) *Event {
	e.Success = success
	e.ErrorMessage = errorMsg
	e.DurationMS = durationMS
	return e
}

// WithRequestID adds a request ID to the event.
func (e *Event) WithRequestID(requestID string) *Event {
	e.RequestID = requestID
	return e
}

// Redacted replaces sensitive parameter values.
const Redacted = "[REDACTED]"

// sensitiveKeys are parameter names whose values never reach the audit log.
// Address and payment payloads carry most of them.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"auth_token":    {},
	"authorization": {},
	"email":         {},
	"phone":         {},
	"address_1":     {},
	"address_2":     {},
	"postal_code":   {},
	"provider_data": {},
}

// SanitizeParameters returns a copy of params with sensitive values
// replaced by Redacted. Keys match case-insensitively and nested objects,
// such as shipping and billing addresses, are sanitized too.
func SanitizeParameters(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if _, hit := sensitiveKeys[strings.ToLower(k)]; hit {
			out[k] = Redacted
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			v = SanitizeParameters(nested)
		}
		out[k] = v
	}
	return out
}
