package service

import (
	"bingo-server/internal/notify"
	"bingo-server/internal/store"
)

// 进程级默认服务实例（main 启动时装配，controller 层按需取用）
var (
	defaultBooking BookingService
	defaultSession SessionService
	defaultLedger  LedgerService
	defaultAuto    *AutoCaller
)

// InitDefaults 装配默认服务实例
func InitDefaults(st store.Store, nt notify.Notifier) {
	defaultBooking = NewBookingService(st, nt)
	ses := NewSessionService(st, nt)
	defaultAuto = NewAutoCaller(ses, nt)
	defaultSession = ses
	defaultLedger = NewLedgerService(st)
}

func Booking() BookingService { return defaultBooking }
func Session() SessionService { return defaultSession }
func Ledger() LedgerService   { return defaultLedger }
func Auto() *AutoCaller       { return defaultAuto }
