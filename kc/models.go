package kc

// UserSession is the response of a successful request-token exchange. The
// AccessToken is valid until the daily expiry (around 6 AM IST the next
// trading day).
type UserSession struct {
	UserID        string   `json:"user_id"`
	UserName      string   `json:"user_name"`
	UserShortname string   `json:"user_shortname"`
	Email         string   `json:"email"`
	UserType      string   `json:"user_type"`
	Broker        string   `json:"broker"`
	Exchanges     []string `json:"exchanges"`
	Products      []string `json:"products"`
	OrderTypes    []string `json:"order_types"`
	APIKey        string   `json:"api_key"`
	AccessToken   string   `json:"access_token"`
	RefreshToken  string   `json:"refresh_token"`
	PublicToken   string   `json:"public_token"`
	LoginTime     string   `json:"login_time"`
}

// Profile is the user's account profile.
type Profile struct {
	UserID        string   `json:"user_id"`
	UserName      string   `json:"user_name"`
	UserShortname string   `json:"user_shortname"`
	Email         string   `json:"email"`
	UserType      string   `json:"user_type"`
	Broker        string   `json:"broker"`
	Exchanges     []string `json:"exchanges"`
	Products      []string `json:"products"`
	OrderTypes    []string `json:"order_types"`
	AvatarURL     string   `json:"avatar_url"`
}

// AvailableMargins is the cash breakdown inside a margin segment.
type AvailableMargins struct {
	AdhocMargin    float64 `json:"adhoc_margin"`
	Cash           float64 `json:"cash"`
	OpeningBalance float64 `json:"opening_balance"`
	LiveBalance    float64 `json:"live_balance"`
	Collateral     float64 `json:"collateral"`
	IntradayPayin  float64 `json:"intraday_payin"`
}

// SegmentMargins is one segment (equity or commodity) of the funds view.
type SegmentMargins struct {
	Enabled   bool               `json:"enabled"`
	Net       float64            `json:"net"`
	Available AvailableMargins   `json:"available"`
	Utilised  map[string]float64 `json:"utilised"`
}

// Margins is the full funds and margins view.
type Margins struct {
	Equity    SegmentMargins `json:"equity"`
	Commodity SegmentMargins `json:"commodity"`
}

// OHLC is an open-high-low-close snapshot.
type OHLC struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Quote is a full market quote for one instrument.
type Quote struct {
	InstrumentToken   uint32  `json:"instrument_token"`
	Timestamp         string  `json:"timestamp"`
	LastPrice         float64 `json:"last_price"`
	LastQuantity      int     `json:"last_quantity"`
	AveragePrice      float64 `json:"average_price"`
	Volume            int64   `json:"volume"`
	BuyQuantity       int64   `json:"buy_quantity"`
	SellQuantity      int64   `json:"sell_quantity"`
	OHLC              OHLC    `json:"ohlc"`
	NetChange         float64 `json:"net_change"`
	OpenInterest      float64 `json:"oi"`
	LowerCircuitLimit float64 `json:"lower_circuit_limit"`
	UpperCircuitLimit float64 `json:"upper_circuit_limit"`
}

// LTPQuote is the minimal last-traded-price quote.
type LTPQuote struct {
	InstrumentToken uint32  `json:"instrument_token"`
	LastPrice       float64 `json:"last_price"`
}

// OHLCQuote is an LTP quote plus the OHLC snapshot.
type OHLCQuote struct {
	InstrumentToken uint32  `json:"instrument_token"`
	LastPrice       float64 `json:"last_price"`
	OHLC            OHLC    `json:"ohlc"`
}

// Order is one entry of the order book.
type Order struct {
	OrderID           string  `json:"order_id"`
	ExchangeOrderID   string  `json:"exchange_order_id"`
	ParentOrderID     string  `json:"parent_order_id"`
	Status            string  `json:"status"`
	StatusMessage     string  `json:"status_message"`
	OrderTimestamp    string  `json:"order_timestamp"`
	Variety           string  `json:"variety"`
	Exchange          string  `json:"exchange"`
	Tradingsymbol     string  `json:"tradingsymbol"`
	InstrumentToken   uint32  `json:"instrument_token"`
	OrderType         string  `json:"order_type"`
	TransactionType   string  `json:"transaction_type"`
	Validity          string  `json:"validity"`
	Product           string  `json:"product"`
	Quantity          int     `json:"quantity"`
	DisclosedQuantity int     `json:"disclosed_quantity"`
	Price             float64 `json:"price"`
	TriggerPrice      float64 `json:"trigger_price"`
	AveragePrice      float64 `json:"average_price"`
	FilledQuantity    int     `json:"filled_quantity"`
	PendingQuantity   int     `json:"pending_quantity"`
	CancelledQuantity int     `json:"cancelled_quantity"`
	Tag               string  `json:"tag"`
}

// OrderParams are the writable fields for placing or modifying an order.
type OrderParams struct {
	Exchange          string
	Tradingsymbol     string
	TransactionType   string
	OrderType         string
	Product           string
	Validity          string
	Quantity          int
	DisclosedQuantity int
	Price             float64
	TriggerPrice      float64
	Tag               string
}

// Holding is one long-term holding in the portfolio.
type Holding struct {
	Tradingsymbol   string  `json:"tradingsymbol"`
	Exchange        string  `json:"exchange"`
	InstrumentToken uint32  `json:"instrument_token"`
	ISIN            string  `json:"isin"`
	Product         string  `json:"product"`
	Quantity        int     `json:"quantity"`
	T1Quantity      int     `json:"t1_quantity"`
	AveragePrice    float64 `json:"average_price"`
	LastPrice       float64 `json:"last_price"`
	ClosePrice      float64 `json:"close_price"`
	PnL             float64 `json:"pnl"`
	DayChange       float64 `json:"day_change"`
}

// Position is one open position.
type Position struct {
	Tradingsymbol   string  `json:"tradingsymbol"`
	Exchange        string  `json:"exchange"`
	InstrumentToken uint32  `json:"instrument_token"`
	Product         string  `json:"product"`
	Quantity        int     `json:"quantity"`
	AveragePrice    float64 `json:"average_price"`
	LastPrice       float64 `json:"last_price"`
	ClosePrice      float64 `json:"close_price"`
	PnL             float64 `json:"pnl"`
	Realised        float64 `json:"realised"`
	Unrealised      float64 `json:"unrealised"`
	BuyQuantity     int     `json:"buy_quantity"`
	BuyPrice        float64 `json:"buy_price"`
	SellQuantity    int     `json:"sell_quantity"`
	SellPrice       float64 `json:"sell_price"`
}

// Positions is the day and net position books.
type Positions struct {
	Net []Position `json:"net"`
	Day []Position `json:"day"`
}
