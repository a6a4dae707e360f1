package commerce

import (
	"context"
	"net/http"
)

// ListRegions returns every region configured in the backend.
func (c *Client) ListRegions(ctx context.Context) ([]Region, error) {
	path, err := expand(routeRegions)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Regions []Region `json:"regions"`
	}
	if err := c.do(ctx, request{op: "list regions", method: http.MethodGet, path: path, noStore: true}, &resp); err != nil {
		return nil, err
	}
	return resp.Regions, nil
}

// RetrieveRegion returns a region by ID.
func (c *Client) RetrieveRegion(ctx context.Context, id string) (*Region, error) {
	path, err := expand(routeRegion, "id", id)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Region *Region `json:"region"`
	}
	if err := c.do(ctx, request{op: "retrieve region", method: http.MethodGet, path: path, noStore: true}, &resp); err != nil {
		return nil, err
	}
	return resp.Region, nil
}

// RetrieveCart reads a cart bypassing any cache, with the relations the
// storefront renders expanded.
func (c *Client) RetrieveCart(ctx context.Context, id string, headers http.Header) (*Cart, error) {
	path, err := expand(routeCart, "id", id, "fields", cartFields)
	if err != nil {
		return nil, err
	}
	return c.cartCall(ctx, request{op: "retrieve cart", method: http.MethodGet, path: path, headers: headers, noStore: true})
}

// CreateCart creates a cart.
func (c *Client) CreateCart(ctx context.Context, in CreateCartInput, headers http.Header) (*Cart, error) {
	path, err := expand(routeCarts)
	if err != nil {
		return nil, err
	}
	return c.cartCall(ctx, request{op: "create cart", method: http.MethodPost, path: path, headers: headers, body: in})
}

// UpdateCart applies a partial update to a cart.
func (c *Client) UpdateCart(ctx context.Context, id string, in UpdateCartInput, headers http.Header) (*Cart, error) {
	path, err := expand(routeCart, "id", id)
	if err != nil {
		return nil, err
	}
	return c.cartCall(ctx, request{op: "update cart", method: http.MethodPost, path: path, headers: headers, body: in})
}

// AddLineItem adds a variant to a cart.
func (c *Client) AddLineItem(ctx context.Context, cartID string, in AddLineItemInput, headers http.Header) (*Cart, error) {
	path, err := expand(routeLineItems, "id", cartID)
	if err != nil {
		return nil, err
	}
	return c.cartCall(ctx, request{op: "add line item", method: http.MethodPost, path: path, headers: headers, body: in})
}

// UpdateLineItem sets the quantity of a line item.
func (c *Client) UpdateLineItem(ctx context.Context, cartID, lineID string, quantity int, headers http.Header) (*Cart, error) {
	path, err := expand(routeLineItem, "id", cartID, "line_id", lineID)
	if err != nil {
		return nil, err
	}
	body := struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity}
	return c.cartCall(ctx, request{op: "update line item", method: http.MethodPost, path: path, headers: headers, body: body})
}

// DeleteLineItem removes a line item and returns the updated cart.
func (c *Client) DeleteLineItem(ctx context.Context, cartID, lineID string, headers http.Header) (*Cart, error) {
	path, err := expand(routeLineItem, "id", cartID, "line_id", lineID)
	if err != nil {
		return nil, err
	}
	var resp struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
		Parent  *Cart  `json:"parent"`
	}
	if err := c.do(ctx, request{op: "delete line item", method: http.MethodDelete, path: path, headers: headers}, &resp); err != nil {
		return nil, err
	}
	if resp.Parent == nil {
		return nil, &Error{Op: "delete line item", Message: "response has no cart"}
	}
	return resp.Parent, nil
}

// AddShippingMethod selects a shipping option for a cart.
func (c *Client) AddShippingMethod(ctx context.Context, cartID, optionID string, headers http.Header) (*Cart, error) {
	path, err := expand(routeShippingMethods, "id", cartID)
	if err != nil {
		return nil, err
	}
	body := struct {
		OptionID string `json:"option_id"`
	}{OptionID: optionID}
	return c.cartCall(ctx, request{op: "add shipping method", method: http.MethodPost, path: path, headers: headers, body: body})
}

// ListShippingOptions returns the shipping options available for a cart.
func (c *Client) ListShippingOptions(ctx context.Context, cartID string, headers http.Header) ([]ShippingOption, error) {
	path, err := expand(routeShippingOptions, "cart_id", cartID)
	if err != nil {
		return nil, err
	}
	var resp struct {
		ShippingOptions []ShippingOption `json:"shipping_options"`
	}
	if err := c.do(ctx, request{op: "list shipping options", method: http.MethodGet, path: path, headers: headers}, &resp); err != nil {
		return nil, err
	}
	return resp.ShippingOptions, nil
}

// InitiatePaymentSession starts a payment session for the cart, creating its
// payment collection first when it has none.
func (c *Client) InitiatePaymentSession(ctx context.Context, cart *Cart, in InitiatePaymentInput, headers http.Header) (*PaymentCollection, error) {
	collectionID := ""
	if cart.PaymentCollection != nil {
		collectionID = cart.PaymentCollection.ID
	}

	if collectionID == "" {
		path, err := expand(routePaymentCollections)
		if err != nil {
			return nil, err
		}
		body := struct {
			CartID string `json:"cart_id"`
		}{CartID: cart.ID}
		var created struct {
			PaymentCollection *PaymentCollection `json:"payment_collection"`
		}
		if err := c.do(ctx, request{op: "create payment collection", method: http.MethodPost, path: path, headers: headers, body: body}, &created); err != nil {
			return nil, err
		}
		if created.PaymentCollection == nil {
			return nil, &Error{Op: "create payment collection", Message: "empty payment collection"}
		}
		collectionID = created.PaymentCollection.ID
	}

	path, err := expand(routePaymentSessions, "id", collectionID)
	if err != nil {
		return nil, err
	}
	var resp struct {
		PaymentCollection *PaymentCollection `json:"payment_collection"`
	}
	if err := c.do(ctx, request{op: "initiate payment session", method: http.MethodPost, path: path, headers: headers, body: in}, &resp); err != nil {
		return nil, err
	}
	return resp.PaymentCollection, nil
}

// CompleteCart attempts to place an order for the cart.
func (c *Client) CompleteCart(ctx context.Context, cartID string, headers http.Header) (*CompleteResult, error) {
	path, err := expand(routeCompleteCart, "id", cartID)
	if err != nil {
		return nil, err
	}
	var resp CompleteResult
	if err := c.do(ctx, request{op: "complete cart", method: http.MethodPost, path: path, headers: headers}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetrieveCustomer returns the customer the auth headers identify.
func (c *Client) RetrieveCustomer(ctx context.Context, headers http.Header) (*Customer, error) {
	path, err := expand(routeCustomerMe)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Customer *Customer `json:"customer"`
	}
	if err := c.do(ctx, request{op: "retrieve customer", method: http.MethodGet, path: path, headers: headers, noStore: true}, &resp); err != nil {
		return nil, err
	}
	return resp.Customer, nil
}

// cartCall executes a request whose response wraps a cart.
func (c *Client) cartCall(ctx context.Context, r request) (*Cart, error) {
	var resp struct {
		Cart *Cart `json:"cart"`
	}
	if err := c.do(ctx, r, &resp); err != nil {
		return nil, err
	}
	if resp.Cart == nil {
		return nil, &Error{Op: r.op, Message: "response has no cart"}
	}
	return resp.Cart, nil
}
