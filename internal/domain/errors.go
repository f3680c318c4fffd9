package domain

import "errors"

var (
	ErrChannelNotFound    = errors.New("channel not found")
	ErrCredentialNotFound = errors.New("credential not found")
	ErrSecretNotFound     = errors.New("secret not found")
	ErrMissingScopes      = errors.New("token is missing required scopes")
	ErrRefreshRejected    = errors.New("refresh token rejected")
)
