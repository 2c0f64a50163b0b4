package notifications

import "errors"

// Repository and configuration errors.
var (
	ErrChannelNotFound        = errors.New("notification channel not found")
	ErrUnsupportedChannelType = errors.New("unsupported channel type")
)
