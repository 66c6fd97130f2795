package service

import "errors"

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
	ErrPaymentLinkFailed    = errors.New("payment link could not be created")
	ErrCallbackRejected     = errors.New("callback rejected")
)
