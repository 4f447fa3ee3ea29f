package aggregator

import "strings"

// diamondOverrides is the authoritative gift-name → true-diamond-price map,
// carried over verbatim from the reference implementation's economics
// table (the platform under-reports these in the wire protocol).
var diamondOverrides = map[string]int64{
	"钻石火箭":  12001,
	"钻石嘉年华": 36000,
	"钻石兔兔":  360,
	"钻石飞艇":  23333,
	"钻石秘境":  16000,
	"钻石游轮":  7200,
	"钻石飞机":  3600,
	"钻石跑车":  1500,
	"钻石热气球": 620,
	"钻石邮轮":  7200,
}

const (
	sportsCarName     = "跑车"
	sportsCarIconHint = "diamond_paoche_icon.png"
	sportsCarPrice    = 1500

	badgeGiftID   = "685"
	badgeNameHint = "灯牌"

	smallGiftThreshold = 60
)

// correctPrice applies the override table, then the sports-car ad-hoc
// special case, returning the corrected diamond price.
func correctPrice(giftName, iconURL string, reported int64) int64 {
	if price, ok := diamondOverrides[giftName]; ok {
		reported = price
	}
	if giftName == sportsCarName && strings.Contains(iconURL, sportsCarIconHint) {
		reported = sportsCarPrice
	}
	return reported
}

// isBadgeGift reports whether a gift is the fan-badge special case, which
// never persists a detail record.
func isBadgeGift(giftID, giftName string) bool {
	return giftID == badgeGiftID || strings.Contains(giftName, badgeNameHint)
}

// isSmallGift reports whether a (corrected) diamond price routes a gift
// through the small-gift terminal-frame-only path instead of the combo
// buffer.
func isSmallGift(diamondCount int64) bool {
	return diamondCount < smallGiftThreshold
}
