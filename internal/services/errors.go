package services

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Machine codes surfaced to API clients.
const (
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeWalletNotFound      = "WALLET_NOT_FOUND"
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeSelfTransfer        = "SELF_TRANSFER_NOT_ALLOWED"
	CodeAlreadyProcessed    = "ALREADY_PROCESSED"
	CodeItemSold            = "ITEM_SOLD"
	CodePaymentFailed       = "PAYMENT_FAILED"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeItemNotFound        = "ITEM_NOT_FOUND"
	CodeSelfPurchase        = "SELF_PURCHASE_NOT_ALLOWED"
	CodePriceMissing        = "PRICE_MISSING"
	CodeInvalidAuthority    = "INVALID_AUTHORITY"
	CodeServerError         = "SERVER_ERROR"

	CodeDepositSuccess  = "DEPOSIT_SUCCESS"
	CodeWithdrawSuccess = "WITHDRAW_SUCCESS"
	CodeTransferSuccess = "TRANSFER_SUCCESS"
	CodePurchaseSuccess = "PURCHASE_SUCCESS"
	CodeSessionCreated  = "PAYMENT_SESSION_CREATED"
)

// Error is the single error type returned by the wallet services. Two Errors
// match under errors.Is when their codes are equal.
type Error struct {
	Code    string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidAmount       = &Error{Code: CodeInvalidAmount, Kind: KindValidation, Message: "amount is not valid"}
	ErrSelfTransfer        = &Error{Code: CodeSelfTransfer, Kind: KindValidation, Message: "cannot transfer to yourself"}
	ErrSelfPurchase        = &Error{Code: CodeSelfPurchase, Kind: KindValidation, Message: "cannot purchase your own item"}
	ErrPriceMissing        = &Error{Code: CodePriceMissing, Kind: KindValidation, Message: "item has no valid price"}
	ErrInsufficientBalance = &Error{Code: CodeInsufficientBalance, Kind: KindConflict, Message: "insufficient balance"}
	ErrItemSold            = &Error{Code: CodeItemSold, Kind: KindConflict, Message: "item is already sold"}
	ErrAlreadyProcessed    = &Error{Code: CodeAlreadyProcessed, Kind: KindConflict, Message: "payment is already processed"}
	ErrWalletNotFound      = &Error{Code: CodeWalletNotFound, Kind: KindNotFound, Message: "wallet not found"}
	ErrUserNotFound        = &Error{Code: CodeUserNotFound, Kind: KindNotFound, Message: "user not found"}
	ErrItemNotFound        = &Error{Code: CodeItemNotFound, Kind: KindNotFound, Message: "item not found"}
	ErrInvalidAuthority    = &Error{Code: CodeInvalidAuthority, Kind: KindNotFound, Message: "payment authority not found"}
)

// walletError wraps an unexpected failure. The cause is kept for logs and
// never rendered to clients.
func walletError(op string, err error) *Error {
	return &Error{Code: CodeServerError, Kind: KindInternal, Message: op + " failed", Err: err}
}

// AsError returns err as an *Error, wrapping anything unknown as SERVER_ERROR.
func AsError(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return walletError(op, err)
}
