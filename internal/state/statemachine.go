package state

import "fmt"

// State 场次状态（单调推进，终态不可离开）
const (
	StateCreated   = "created"   // 已创建
	StateWaiting   = "waiting"   // 等待玩家登记
	StateActive    = "active"    // 叫号中
	StateCompleted = "completed" // 已完成(有无赢家均可)
	StateCancelled = "cancelled" // 已取消
)

// Event 场次事件
const (
	EvtOpen     = "open"     // created -> waiting
	EvtStart    = "start"    // waiting -> active
	EvtComplete = "complete" // active -> completed
	EvtCancel   = "cancel"   // 任意非终态 -> cancelled
)

// 状态码（持久化用，字符串为冗余双写）
const (
	CodeCreated   int8 = 1
	CodeWaiting   int8 = 2
	CodeActive    int8 = 3
	CodeCompleted int8 = 4
	CodeCancelled int8 = 5
)

// NextState 根据当前状态与事件计算下一个状态，非法转换报错
func NextState(cur, evt string) (string, error) {
	if evt == EvtCancel {
		if IsTerminal(cur) {
			return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
		}
		return StateCancelled, nil
	}
	switch cur {
	case StateCreated:
		if evt == EvtOpen {
			return StateWaiting, nil
		}
	case StateWaiting:
		if evt == EvtStart {
			return StateActive, nil
		}
	case StateActive:
		if evt == EvtComplete {
			return StateCompleted, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}

// IsTerminal 终态判断：completed/cancelled 不再接受任何事件
func IsTerminal(s string) bool {
	return s == StateCompleted || s == StateCancelled
}

// ToCode 状态字符串转状态码
func ToCode(s string) int8 {
	switch s {
	case StateCreated:
		return CodeCreated
	case StateWaiting:
		return CodeWaiting
	case StateActive:
		return CodeActive
	case StateCompleted:
		return CodeCompleted
	case StateCancelled:
		return CodeCancelled
	}
	return 0
}

// FromCode 状态码转状态字符串
func FromCode(c int8) string {
	switch c {
	case CodeCreated:
		return StateCreated
	case CodeWaiting:
		return StateWaiting
	case CodeActive:
		return StateActive
	case CodeCompleted:
		return StateCompleted
	case CodeCancelled:
		return StateCancelled
	}
	return ""
}
