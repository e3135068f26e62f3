package models

// KlinesRequest selects candles for one exchange. Start and End accept unix
// seconds, unix milliseconds, RFC3339 or YYYY-MM-DD.
type KlinesRequest struct {
	Exchange  string `query:"exchange" json:"exchange"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1D"`
	Start     string `query:"start" json:"start"`
	End       string `query:"end" json:"end"`
	Limit     int    `query:"limit" json:"limit" validate:"gte=0,lte=100000"`
}

type PredictRequest struct {
	Exchange string `query:"exchange" json:"exchange" validate:"required"`
}

type CompareRequest struct {
	Exchanges string `query:"exchanges" json:"exchanges" validate:"required"`
	Date      string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type StatsRequest struct {
	Exchange string `query:"exchange" json:"exchange" validate:"required"`
	Period   string `query:"period" json:"period" default:"1M" validate:"oneof=1M 3M 6M 1Y"`
}

// PriceSubscription is the websocket client message.
type PriceSubscription struct {
	Type     string `json:"type"`
	Channel  string `json:"channel"`
	Exchange string `json:"exchange"`
}

// PriceMessage is pushed to subscribed websocket clients.
type PriceMessage struct {
	Type     string     `json:"type"`
	Exchange string     `json:"exchange,omitempty"`
	Data     *PriceTick `json:"data,omitempty"`
	Message  string     `json:"message,omitempty"`
}

type PriceTick struct {
	Price     float64 `json:"price"`
	Date      string  `json:"date"`
	Timestamp int64   `json:"timestamp"`
}
