package memory

import "errors"

// errNegativeBalance mirrors the wallets.balance CHECK constraint.
var errNegativeBalance = errors.New("memory: balance must not be negative")
