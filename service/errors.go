package service

import "errors"

// 业务错误集合：全部属于调用方可恢复的状态，返回错误时不落任何状态变更
var (
	ErrNotFound            = errors.New("user not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAlreadyInSession    = errors.New("already in a chat session")
	ErrNotInSession        = errors.New("not in a chat session")
	ErrBlocked             = errors.New("blocked relationship")
	ErrRateLimited         = errors.New("too many actions, temporarily muted")
	ErrBanned              = errors.New("account banned")
	ErrUnauthorized        = errors.New("administrator privileges required")
	ErrContentRejected     = errors.New("message content not allowed")
	ErrSelfTarget          = errors.New("operation cannot target yourself")
	ErrAlreadyVoted        = errors.New("already voted for this user")
	ErrInvalidSearch       = errors.New("invalid search tier or filters")
	ErrInvalidVote         = errors.New("vote value must be like or dislike")
)
