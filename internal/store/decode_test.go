package store

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestDecodeGiftBatchDropsMalformedRecords(t *testing.T) {
	raw := [][]byte{
		[]byte(`{"room_id":"r1","gift_id":"g1","diamond_count":10,"combo_count":2,"group_count":1}`),
		[]byte(`not json`),
	}
	docs := decodeGiftBatch(raw, zerolog.Nop())
	if len(docs) != 1 {
		t.Fatalf("expected 1 surviving record, got %d", len(docs))
	}
	if docs[0].RoomID != "r1" {
		t.Fatalf("RoomID = %q, want %q", docs[0].RoomID, "r1")
	}
}

func TestDecodeGiftBatchFillsMissingTotalDiamondCount(t *testing.T) {
	raw := [][]byte{
		[]byte(`{"room_id":"r1","diamond_count":10,"combo_count":3,"group_count":2,"total_diamond_count":0}`),
	}
	docs := decodeGiftBatch(raw, zerolog.Nop())
	if len(docs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(docs))
	}
	if docs[0].TotalDiamondCount != 60 {
		t.Fatalf("TotalDiamondCount = %d, want 60 (10*3*2)", docs[0].TotalDiamondCount)
	}
}

func TestDecodeGiftBatchTreatsZeroComboAndGroupAsOne(t *testing.T) {
	raw := [][]byte{
		[]byte(`{"room_id":"r1","diamond_count":10,"combo_count":0,"group_count":0}`),
	}
	docs := decodeGiftBatch(raw, zerolog.Nop())
	if docs[0].TotalDiamondCount != 10 {
		t.Fatalf("TotalDiamondCount = %d, want 10 (missing combo/group treated as 1)", docs[0].TotalDiamondCount)
	}
}

func TestDecodeGiftBatchPreservesAlreadyComputedTotal(t *testing.T) {
	raw := [][]byte{
		[]byte(`{"room_id":"r1","diamond_count":10,"combo_count":1,"group_count":1,"total_diamond_count":999}`),
	}
	docs := decodeGiftBatch(raw, zerolog.Nop())
	if docs[0].TotalDiamondCount != 999 {
		t.Fatalf("TotalDiamondCount = %d, want preserved 999", docs[0].TotalDiamondCount)
	}
}

func TestDecodeChatBatchDropsMalformedRecords(t *testing.T) {
	raw := [][]byte{
		[]byte(`{"room_id":"r1","user_id":"u1","content":"hi"}`),
		[]byte(`{malformed`),
	}
	docs := decodeChatBatch(raw, zerolog.Nop())
	if len(docs) != 1 {
		t.Fatalf("expected 1 surviving record, got %d", len(docs))
	}
	if docs[0].Content != "hi" {
		t.Fatalf("Content = %q, want %q", docs[0].Content, "hi")
	}
}

func TestDecodeStatBatchPreservesPayload(t *testing.T) {
	raw := [][]byte{
		[]byte(`{"room_id":"r1","kind":"like","payload":{"total":42}}`),
	}
	docs := decodeStatBatch(raw, zerolog.Nop())
	if len(docs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(docs))
	}
	if docs[0].Kind != "like" {
		t.Fatalf("Kind = %q, want %q", docs[0].Kind, "like")
	}
	total, ok := docs[0].Payload["total"].(float64)
	if !ok || total != 42 {
		t.Fatalf("unexpected payload: %+v", docs[0].Payload)
	}
}

func TestDecodeBatchesEmptyInput(t *testing.T) {
	if docs := decodeGiftBatch(nil, zerolog.Nop()); len(docs) != 0 {
		t.Fatalf("expected empty slice for nil input, got %d", len(docs))
	}
	if docs := decodeChatBatch(nil, zerolog.Nop()); len(docs) != 0 {
		t.Fatalf("expected empty slice for nil input, got %d", len(docs))
	}
	if docs := decodeStatBatch(nil, zerolog.Nop()); len(docs) != 0 {
		t.Fatalf("expected empty slice for nil input, got %d", len(docs))
	}
}
