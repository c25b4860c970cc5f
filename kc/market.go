package kc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// instrumentParams renders instrument identifiers ("NSE:INFY", ...) as
// repeated i= query values.
func instrumentParams(instruments []string) url.Values {
	params := url.Values{}
	for _, instrument := range instruments {
		params.Add("i", instrument)
	}
	return params
}

// Quote fetches full quotes for up to 500 instruments, keyed by
// "EXCHANGE:SYMBOL".
func (c *Client) Quote(ctx context.Context, instruments ...string) (map[string]Quote, error) {
	var quotes map[string]Quote
	if err := c.do(ctx, http.MethodGet, "/quote", instrumentParams(instruments), &quotes); err != nil {
		return nil, fmt.Errorf("get quotes: %w", err)
	}
	return quotes, nil
}

// LTP fetches last-traded prices for up to 1000 instruments.
func (c *Client) LTP(ctx context.Context, instruments ...string) (map[string]LTPQuote, error) {
	var quotes map[string]LTPQuote
	if err := c.do(ctx, http.MethodGet, "/quote/ltp", instrumentParams(instruments), &quotes); err != nil {
		return nil, fmt.Errorf("get ltp: %w", err)
	}
	return quotes, nil
}

// OHLC fetches OHLC snapshots for up to 1000 instruments.
func (c *Client) OHLC(ctx context.Context, instruments ...string) (map[string]OHLCQuote, error) {
	var quotes map[string]OHLCQuote
	if err := c.do(ctx, http.MethodGet, "/quote/ohlc", instrumentParams(instruments), &quotes); err != nil {
		return nil, fmt.Errorf("get ohlc: %w", err)
	}
	return quotes, nil
}
