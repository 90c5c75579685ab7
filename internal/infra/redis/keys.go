package redis

// Redis Key 定义与构造器
// 统一管理业务使用的 Redis Key，避免散落的魔法字符串，便于统一维护与变更。

import "strconv"

const (
	// PrefixSessionSnapshot：场次实时快照缓存 Key 的前缀。
	// 作用：缓存场次当前状态与已叫号序列（JSON），观战端轮询时免查数据库。
	PrefixSessionSnapshot = "bingo:session:"

	// PrefixShopAvailable：店铺可预订彩票卡列表缓存
	PrefixShopAvailable = "bingo:shop:available:"

	// ChannelSessionEvents：场次事件广播频道的前缀。
	// 叫号、开始、胜者宣告等事件 PUBLISH 到该频道，大厅端 SUBSCRIBE 实时刷新。
	ChannelSessionEvents = "bingo:events:"

	// PrefixTokenBlacklist：已注销 JWT 的黑名单，TTL 对齐令牌剩余有效期
	PrefixTokenBlacklist = "bingo:token:blacklist:"
)

// SessionSnapshotKey：构造场次快照缓存 Key。形如：bingo:session:{session_id}
func SessionSnapshotKey(sessionID string) string { return PrefixSessionSnapshot + sessionID }

// ShopAvailableKey：构造店铺可预订列表缓存 Key。形如：bingo:shop:available:{shop_id}
func ShopAvailableKey(shopID int64) string {
	return PrefixShopAvailable + strconv.FormatInt(shopID, 10)
}

// SessionEventsChannel：构造场次事件广播频道名。形如：bingo:events:{session_id}
func SessionEventsChannel(sessionID string) string { return ChannelSessionEvents + sessionID }

// TokenBlacklistKey：构造注销令牌黑名单 Key。形如：bingo:token:blacklist:{token}
func TokenBlacklistKey(token string) string { return PrefixTokenBlacklist + token }
