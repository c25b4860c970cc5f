// Package instruments parses the Kite instrument CSV dump and provides
// fast in-memory lookup by token or trading symbol.
package instruments

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// Instrument is one row of the exchange instrument dump.
type Instrument struct {
	InstrumentToken uint32  `csv:"instrument_token" json:"instrument_token"`
	ExchangeToken   uint32  `csv:"exchange_token" json:"exchange_token"`
	Tradingsymbol   string  `csv:"tradingsymbol" json:"tradingsymbol"`
	Name            string  `csv:"name" json:"name"`
	LastPrice       float64 `csv:"last_price" json:"last_price"`
	Expiry          string  `csv:"expiry" json:"expiry"`
	Strike          float64 `csv:"strike" json:"strike"`
	TickSize        float64 `csv:"tick_size" json:"tick_size"`
	LotSize         int     `csv:"lot_size" json:"lot_size"`
	InstrumentType  string  `csv:"instrument_type" json:"instrument_type"`
	Segment         string  `csv:"segment" json:"segment"`
	Exchange        string  `csv:"exchange" json:"exchange"`
}

// ID returns the canonical "EXCHANGE:TRADINGSYMBOL" identifier.
func (i Instrument) ID() string {
	return i.Exchange + ":" + i.Tradingsymbol
}

// ParseCSV decodes an instrument dump from r.
func ParseCSV(r io.Reader) ([]*Instrument, error) {
	var out []*Instrument
	if err := gocsv.Unmarshal(r, &out); err != nil {
		return nil, fmt.Errorf("parse instruments csv: %w", err)
	}
	return out, nil
}
