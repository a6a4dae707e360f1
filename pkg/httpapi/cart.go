package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/txn2/storefront/pkg/cart"
	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/session"
)

// cartResponse is the body of the cart read routes. Cart is null when the
// session has none.
type cartResponse struct {
	Cart *commerce.Cart `json:"cart"`
}

// actionResponse is the body of every mutation route.
type actionResponse struct {
	cart.ActionResult
	Cart              *commerce.Cart              `json:"cart,omitempty"`
	Redirect          string                      `json:"redirect,omitempty"`
	PaymentCollection *commerce.PaymentCollection `json:"payment_collection,omitempty"`
}

type shippingOptionsResponse struct {
	ShippingOptions []commerce.ShippingOption `json:"shipping_options"`
}

type addLineItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type updateLineItemRequest struct {
	Quantity int `json:"quantity"`
}

type shippingMethodRequest struct {
	OptionID string `json:"option_id"`
}

type promotionsRequest struct {
	Codes []string `json:"codes"`
}

type addressesRequest struct {
	Email           string           `json:"email"`
	ShippingAddress commerce.Address `json:"shipping_address"`
	BillingAddress  commerce.Address `json:"billing_address"`
	SameAsBilling   bool             `json:"same_as_billing"`
}

type regionRequest struct {
	CurrentPath string `json:"current_path"`
}

func (h *Handler) getOrCreateCart(w http.ResponseWriter, r *http.Request, sess session.Identity) {
	c, err := h.deps.Engine.GetOrCreate(r.Context(), sess, r.PathValue("countryCode"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Cart: c})
}

// retrieveCart degrades to a null cart on any failure.
func (h *Handler) retrieveCart(w http.ResponseWriter, r *http.Request, sess session.Identity) {
	c, err := h.deps.Engine.Retrieve(r.Context(), sess)
	if err != nil {
		if !errors.Is(err, cart.ErrNoActiveCart) {
			slog.Debug("httpapi: cart retrieval failed", "error", err)
		}
		writeJSON(w, http.StatusOK, cartResponse{})
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Cart: c})
}

func (h *Handler) addLineItem(w http.ResponseWriter, r *http.Request, sess session.Identity) {
	var req addLineItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.deps.Engine.AddLineItem(r.Context(), sess, r.PathValue("countryCode"), req.VariantID, req.Quantity)
	writeAction(w, err, actionResponse{Cart: c})
}

func (h *Handler) updateLineItem(w http.ResponseWriter, r *http.Request, sess session.Identity) {
	var req updateLineItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.deps.Engine.UpdateLineItem(r.Context(), sess, r.PathValue("lineID"), req.Quantity)
	writeAction(w, err, actionResponse{Cart: c})
}

func (h *Handler) deleteLineItem(w http.ResponseWriter, r *http.Request, sess session.Identity) {
	c, err := h.deps.Engine.DeleteLineItem(r.Context(), sess, r.PathValue("lineID"))
	writeAction(w, err, actionResponse{Cart: c})
}

func (h *Handler) setShippingMethod(w http.ResponseWriter, r *http.Request, sess session.Identity) {
	var req shippingMethodRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.deps.Engine.SetShippingMethod(r.Context(), sess, req.OptionID)
	writeAction(w, err, actionResponse{Cart: c})
}

// listShippingOptions degrades to an empty list on failure.
func (h *Handler) listShippingOptions(w http.ResponseWriter, r *http.Request, sess session.Identity) {
	opts, err := h.deps.Engine.ListShippingOptions(r.Context(), sess)
	if err != nil {
		slog.Debug("httpapi: listing shipping options failed", "error", err)
		opts = []commerce.ShippingOption{}
	}
	writeJSON(w, http.StatusOK, shippingOptionsResponse{ShippingOptions: opts})
}

func (h *Handler) applyPromotions(w http.ResponseWriter, r *http.Request, sess session.Identity) {
	var req promotionsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.deps.Engine.ApplyPromotions(r.Context(), sess, req.Codes)
	writeAction(w, err, actionResponse{Cart: c})
}

func (h *Handler) setAddresses(w http.ResponseWriter, r *http.Request, sess session.Identity) {
	var req addressesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.deps.Engine.SetAddresses(r.Context(), sess, cart.AddressInput{
		Email:           req.Email,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		SameAsBilling:   req.SameAsBilling,
	})
	resp := actionResponse{}
	if out != nil {
		resp.Cart = out.Cart
		resp.Redirect = out.RedirectPath
	}
	writeAction(w, err, resp)
}

func (h *Handler) initiatePayment(w http.ResponseWriter, r *http.Request, sess session.Identity) {
	var req commerce.InitiatePaymentInput
	if !decodeBody(w, r, &req) {
		return
	}
	pc, err := h.deps.Engine.InitiatePaymentSession(r.Context(), sess, req)
	writeAction(w, err, actionResponse{PaymentCollection: pc})
}

// completeOrder surfaces failures verbatim. A completion that returns the
// cart instead of an order is reported as unsuccessful with the backend's
// reason.
func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request, sess session.Identity) {
	out, err := h.deps.Engine.CompleteOrder(r.Context(), sess)
	if err != nil {
		writeAction(w, err, actionResponse{})
		return
	}
	if out.Type != commerce.CompletionOrder {
		msg := out.Message
		if msg == "" {
			msg = "order could not be completed"
		}
		writeJSON(w, http.StatusOK, completionResponse{
			ActionResult: cart.ActionResult{Error: &msg},
			Completion:   out,
		})
		return
	}
	writeJSON(w, http.StatusOK, completionResponse{
		ActionResult: cart.Result(nil),
		Completion:   out,
	})
}

type completionResponse struct {
	cart.ActionResult
	*cart.Completion
}

func (h *Handler) updateRegion(w http.ResponseWriter, r *http.Request, sess session.Identity) {
	var req regionRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	out, err := h.deps.Engine.UpdateRegion(r.Context(), sess, r.PathValue("countryCode"), req.CurrentPath)
	resp := actionResponse{}
	if out != nil {
		resp.Cart = out.Cart
		resp.Redirect = out.RedirectPath
	}
	writeAction(w, err, resp)
}

// writeAction renders a mutation outcome.
func writeAction(w http.ResponseWriter, err error, resp actionResponse) {
	resp.ActionResult = cart.Result(err)
	if err != nil {
		resp.Cart = nil
		resp.Redirect = ""
		resp.PaymentCollection = nil
	}
	writeJSON(w, statusFor(err), resp)
}
