package service

import "errors"

var (
	ErrPhoneTaken           = errors.New("phone number already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("user is not a participant of the conversation")
	ErrEmptyMessage         = errors.New("message text must not be empty")
	ErrMessageTooLarge      = errors.New("message text exceeds the size limit")
	ErrStoreUnavailable     = errors.New("message store unavailable")
)
