package polymarket

import "encoding/json"

// DTOs crudos de las APIs. Los numéricos llegan como string o number según
// el endpoint; json.Number absorbe ambos.

// rawTrade es una fila de /trades de la Data API. Un self-fill del wallet
// aparece como dos filas: una con traderSide TAKER y otra MAKER.
type rawTrade struct {
	TransactionHash string      `json:"transactionHash"`
	Asset           string      `json:"asset"`
	ConditionID     string      `json:"conditionId"`
	Side            string      `json:"side"`
	TraderSide      string      `json:"traderSide"` // TAKER | MAKER
	Price           json.Number `json:"price"`
	Size            json.Number `json:"size"`
	Timestamp       json.Number `json:"timestamp"`
	LogIndex        json.Number `json:"logIndex"`
}

// rawActivity es una fila de /activity de la Data API; solo se consumen las
// de type REDEEM (payout logs).
type rawActivity struct {
	Type            string      `json:"type"`
	TransactionHash string      `json:"transactionHash"`
	Asset           string      `json:"asset"`
	Size            json.Number `json:"size"`
	USDCSize        json.Number `json:"usdcSize"`
	Timestamp       json.Number `json:"timestamp"`
	LogIndex        json.Number `json:"logIndex"`
}

// gammaTokenMarket es la respuesta de Gamma /markets?clob_token_ids=...,
// usada para resolver token IDs opacos a (condition, outcome).
type gammaTokenMarket struct {
	ConditionID string `json:"conditionId"`
	// ClobTokenIDs llega como string JSON-encoded: "[\"123\",\"456\"]".
	ClobTokenIDs string `json:"clobTokenIds"`
}

// clobMarket es la respuesta del CLOB GET /markets/{condition_id}.
type clobMarket struct {
	ConditionID string      `json:"condition_id"`
	Closed      bool        `json:"closed"`
	Tokens      []clobToken `json:"tokens"`
}

type clobToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}

// midpointRequest es una entrada del body del batch POST /midpoints del
// CLOB; la respuesta se decodifica como mapa token_id → precio string.
type midpointRequest struct {
	TokenID string `json:"token_id"`
}

// pnlPoint es un punto de la serie de P&L de la Data API (/user-pnl).
type pnlPoint struct {
	Timestamp json.Number `json:"t"`
	Pnl       json.Number `json:"p"`
}
