package billing

import "errors"

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrNoSubscription     = errors.New("no active subscription")
	ErrInvalidCaller      = errors.New("token does not identify a user")
	ErrProvider           = errors.New("payment provider error")
	ErrInvalidWebhook     = errors.New("invalid webhook")
	ErrUnknownSubscriber  = errors.New("webhook does not match a subscriber")
)
