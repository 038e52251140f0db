package models

import "github.com/shopspring/decimal"

// Request bodies accepted by the HTTP API. Numbers may be sent either as JSON
// numbers or as strings.

type BuyRequest struct {
	Symbol         string          `json:"symbol"`
	Quantity       decimal.Decimal `json:"quantity"`
	Rate           decimal.Decimal `json:"rate"`
	Date           string          `json:"date"`
	IsDpCharged    *bool           `json:"is_dp_charged"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type SellRequest struct {
	Symbol             string          `json:"symbol"`
	SellQuantity       decimal.Decimal `json:"sell_quantity"`
	SellRate           decimal.Decimal `json:"sell_rate"`
	Date               string          `json:"date"`
	IsDpCharged        *bool           `json:"is_dp_charged"`
	IsHeldUnderOneYear bool            `json:"is_held_under_one_year"`
	IdempotencyKey     string          `json:"idempotency_key"`
}

type WatchRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}
