package bank

import "errors"

var (
	ErrNilState         = errors.New("bank: state unavailable")
	ErrMintExists       = errors.New("bank: mint already exists")
	ErrMintNotFound     = errors.New("bank: mint not found")
	ErrMintUnauthorized = errors.New("bank: signer is not the mint authority")
	ErrBalanceOverflow  = errors.New("bank: balance overflow")
	ErrInvalidRecipient = errors.New("bank: invalid recipient")
)
