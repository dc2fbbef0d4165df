package apperr

var (
	ErrMissingCredential    = Unauthorized("missing credential")
	ErrInvalidCredential    = Unauthorized("invalid or expired credential")
	ErrSecondFactorPending  = Unauthorized("second factor required")
	ErrNotParticipant       = Forbidden("not a participant of this conversation")
	ErrConversationBlocked  = Forbidden("conversation is blocked")
	ErrNotMessageAuthor     = Forbidden("only the sender can edit a message")
	ErrConversationNotFound = NotFound("conversation not found")
	ErrMessageNotFound      = NotFound("message not found")
	ErrSelfConversation     = InvalidArg("cannot start a conversation with yourself")
	ErrEmptyMessage         = InvalidArg("message must have text or attachments")
	ErrMessageTooLong       = InvalidArg("message text is too long")
	ErrEditWindowExpired    = FailedPrecondition("edit window has expired")
	ErrRateLimited          = New(CodeRateLimited, "too many messages, slow down")
	ErrConnectionNotActive  = FailedPrecondition("connection is not active")
	ErrUnknownEvent         = InvalidArg("unknown event")
	ErrMalformedPayload     = InvalidArg("malformed payload")
)

func ErrStoreUnavailable(cause error) error {
	return Unavailable("store unavailable, please retry", cause)
}

func ErrPresenceUnavailable(cause error) error {
	return Unavailable("presence registry unavailable, please retry", cause)
}
