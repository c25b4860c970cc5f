package kc

import (
	"context"
	"fmt"
	"net/http"
)

// Profile fetches the user's account profile.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.do(ctx, http.MethodGet, "/user/profile", nil, &profile); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &profile, nil
}

// Margins fetches funds and margins for all enabled segments.
func (c *Client) Margins(ctx context.Context) (*Margins, error) {
	var margins Margins
	if err := c.do(ctx, http.MethodGet, "/user/margins", nil, &margins); err != nil {
		return nil, fmt.Errorf("get margins: %w", err)
	}
	return &margins, nil
}

// MarginsSegment fetches funds and margins for one segment ("equity" or
// "commodity").
func (c *Client) MarginsSegment(ctx context.Context, segment string) (*SegmentMargins, error) {
	var margins SegmentMargins
	if err := c.do(ctx, http.MethodGet, "/user/margins/"+segment, nil, &margins); err != nil {
		return nil, fmt.Errorf("get %s margins: %w", segment, err)
	}
	return &margins, nil
}
