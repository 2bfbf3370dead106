package services

// Result is the success triple of a wallet operation.
type Result struct {
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Data    BalanceData `json:"data"`
}

type BalanceData struct {
	Balance int64 `json:"balance"`
}
