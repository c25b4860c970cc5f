package kc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Order varieties.
const (
	VarietyRegular = "regular"
	VarietyAMO     = "amo"
	VarietyCO      = "co"
	VarietyIceberg = "iceberg"
)

func (p OrderParams) values() url.Values {
	params := url.Values{}
	params.Set("exchange", p.Exchange)
	params.Set("tradingsymbol", p.Tradingsymbol)
	params.Set("transaction_type", p.TransactionType)
	params.Set("order_type", p.OrderType)
	params.Set("product", p.Product)
	params.Set("quantity", strconv.Itoa(p.Quantity))
	if p.Validity != "" {
		params.Set("validity", p.Validity)
	}
	if p.DisclosedQuantity > 0 {
		params.Set("disclosed_quantity", strconv.Itoa(p.DisclosedQuantity))
	}
	if p.Price > 0 {
		params.Set("price", strconv.FormatFloat(p.Price, 'f', -1, 64))
	}
	if p.TriggerPrice > 0 {
		params.Set("trigger_price", strconv.FormatFloat(p.TriggerPrice, 'f', -1, 64))
	}
	if p.Tag != "" {
		params.Set("tag", p.Tag)
	}
	return params
}

// orderIDResponse is the data payload of order mutation endpoints.
type orderIDResponse struct {
	OrderID string `json:"order_id"`
}

// PlaceOrder places an order and returns the broker-assigned order ID.
func (c *Client) PlaceOrder(ctx context.Context, variety string, params OrderParams) (string, error) {
	var resp orderIDResponse
	if err := c.do(ctx, http.MethodPost, "/orders/"+variety, params.values(), &resp); err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}
	return resp.OrderID, nil
}

// ModifyOrder modifies a pending order.
func (c *Client) ModifyOrder(ctx context.Context, variety, orderID string, params OrderParams) (string, error) {
	var resp orderIDResponse
	if err := c.do(ctx, http.MethodPut, "/orders/"+variety+"/"+orderID, params.values(), &resp); err != nil {
		return "", fmt.Errorf("modify order %s: %w", orderID, err)
	}
	return resp.OrderID, nil
}

// CancelOrder cancels a pending order.
func (c *Client) CancelOrder(ctx context.Context, variety, orderID string) (string, error) {
	var resp orderIDResponse
	if err := c.do(ctx, http.MethodDelete, "/orders/"+variety+"/"+orderID, nil, &resp); err != nil {
		return "", fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return resp.OrderID, nil
}

// Orders fetches the order book for the day.
func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.do(ctx, http.MethodGet, "/orders", nil, &orders); err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}
	return orders, nil
}

// OrderHistory fetches the state transitions of one order.
func (c *Client) OrderHistory(ctx context.Context, orderID string) ([]Order, error) {
	var history []Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+orderID, nil, &history); err != nil {
		return nil, fmt.Errorf("get order history %s: %w", orderID, err)
	}
	return history, nil
}
