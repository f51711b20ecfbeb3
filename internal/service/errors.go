package service

import "errors"

// ErrPriceUnavailable rejects a trade when the quote source cannot supply a
// usable price for the traded ticker.
var ErrPriceUnavailable = errors.New("no price available for ticker")
