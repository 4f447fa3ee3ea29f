package aggregator

import "testing"

func TestCorrectPriceAppliesOverrideTable(t *testing.T) {
	got := correctPrice("钻石火箭", "", 1)
	if got != 12001 {
		t.Fatalf("correctPrice() = %d, want 12001", got)
	}
}

func TestCorrectPriceSportsCarSpecialCase(t *testing.T) {
	got := correctPrice("跑车", "https://cdn.example.com/diamond_paoche_icon.png", 1)
	if got != sportsCarPrice {
		t.Fatalf("correctPrice() = %d, want %d", got, sportsCarPrice)
	}
}

func TestCorrectPriceSportsCarNameWithoutIconHintPassesThrough(t *testing.T) {
	got := correctPrice("跑车", "https://cdn.example.com/other_icon.png", 77)
	if got != 77 {
		t.Fatalf("correctPrice() = %d, want unmodified 77", got)
	}
}

func TestCorrectPriceUnknownGiftPassesThrough(t *testing.T) {
	got := correctPrice("rose", "", 5)
	if got != 5 {
		t.Fatalf("correctPrice() = %d, want unmodified 5", got)
	}
}

func TestIsBadgeGiftByID(t *testing.T) {
	if !isBadgeGift(badgeGiftID, "anything") {
		t.Fatal("expected badge gift ID to be classified as badge gift")
	}
}

func TestIsBadgeGiftByName(t *testing.T) {
	if !isBadgeGift("999", "超级灯牌") {
		t.Fatal("expected name containing badge hint to be classified as badge gift")
	}
}

func TestIsBadgeGiftFalseForOrdinaryGift(t *testing.T) {
	if isBadgeGift("1", "玫瑰") {
		t.Fatal("did not expect ordinary gift to classify as badge gift")
	}
}

func TestIsSmallGiftThreshold(t *testing.T) {
	if !isSmallGift(smallGiftThreshold - 1) {
		t.Fatalf("expected %d to be a small gift", smallGiftThreshold-1)
	}
	if isSmallGift(smallGiftThreshold) {
		t.Fatalf("expected %d to not be a small gift (boundary is exclusive)", smallGiftThreshold)
	}
	if isSmallGift(smallGiftThreshold + 1) {
		t.Fatalf("expected %d to not be a small gift", smallGiftThreshold+1)
	}
}
