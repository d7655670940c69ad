package bitget

// envelope is the common Bitget V2 response wrapper.
type envelope struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

type assetsResponse struct {
	envelope
	Data []struct {
		Coin      string `json:"coin"`
		Available string `json:"available"`
		Frozen    string `json:"frozen"`
		Locked    string `json:"locked"`
	} `json:"data"`
}

// candlesResponse data rows: [ts, open, high, low, close, baseVol, usdtVol, quoteVol]
type candlesResponse struct {
	envelope
	Data [][]string `json:"data"`
}

type placeOrderRequest struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`      // "buy" / "sell"
	OrderType string `json:"orderType"` // "limit" / "market"
	Force     string `json:"force"`     // "gtc"
	Price     string `json:"price,omitempty"`
	Size      string `json:"size"`
	ClientOid string `json:"clientOid,omitempty"`
}

type placeOrderResponse struct {
	envelope
	Data struct {
		OrderID   string `json:"orderId"`
		ClientOid string `json:"clientOid"`
	} `json:"data"`
}

type cancelOrderRequest struct {
	Symbol  string `json:"symbol"`
	OrderID string `json:"orderId"`
}

type orderInfoResponse struct {
	envelope
	Data []struct {
		OrderID   string `json:"orderId"`
		ClientOid string `json:"clientOid"`
		Symbol    string `json:"symbol"`
		Side      string `json:"side"`
		OrderType string `json:"orderType"`
		Status    string `json:"status"` // live, partially_filled, filled, cancelled
		Size      string `json:"size"`
		Price     string `json:"price"`
		BaseVol   string `json:"baseVolume"`
		PriceAvg  string `json:"priceAvg"`
	} `json:"data"`
}

type symbolsResponse struct {
	envelope
	Data []struct {
		Symbol         string `json:"symbol"`
		BaseCoin       string `json:"baseCoin"`
		QuoteCoin      string `json:"quoteCoin"`
		PricePrecision string `json:"pricePrecision"`
		QtyPrecision   string `json:"quantityPrecision"`
		MinTradeAmount string `json:"minTradeAmount"`
		MinTradeUSDT   string `json:"minTradeUSDT"`
		Status         string `json:"status"`
	} `json:"data"`
}
