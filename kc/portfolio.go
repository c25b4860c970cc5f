package kc

import (
	"context"
	"fmt"
	"net/http"
)

// Holdings fetches the user's long-term holdings.
func (c *Client) Holdings(ctx context.Context) ([]Holding, error) {
	var holdings []Holding
	if err := c.do(ctx, http.MethodGet, "/portfolio/holdings", nil, &holdings); err != nil {
		return nil, fmt.Errorf("get holdings: %w", err)
	}
	return holdings, nil
}

// Positions fetches the day and net position books.
func (c *Client) Positions(ctx context.Context) (*Positions, error) {
	var positions Positions
	if err := c.do(ctx, http.MethodGet, "/portfolio/positions", nil, &positions); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	return &positions, nil
}
