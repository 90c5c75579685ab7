package service

import "errors"

// 服务层统一错误定义（API 层映射为响应错误码）
var (
	ErrSessionNotFound  = errors.New("game session not found")
	ErrInvalidState     = errors.New("operation not allowed in current state")
	ErrNotEnoughPlayers = errors.New("not enough registered players to start")
	ErrNumberExhausted  = errors.New("all 75 numbers have been called")
	ErrWinNotVerified   = errors.New("claimed cartela does not hold a winning pattern")
	ErrLateRegistration = errors.New("registration closed after first win check")
	ErrNotRegistered    = errors.New("cartela not registered in this session")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrSelfTransfer     = errors.New("cannot transfer to self")
	ErrNotOwner         = errors.New("resource does not belong to requester")
)
