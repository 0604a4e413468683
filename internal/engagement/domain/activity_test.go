package domain

import (
	"testing"
)

func TestEncodeMetadataNilIsEmptyObject(t *testing.T) {
	data, err := EncodeMetadata(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "{}" {
		t.Fatalf("expected empty object, got %s", data)
	}
}

func TestDecodeMetadataRoundTrip(t *testing.T) {
	original := &EmailOpenedMetadata{
		OpenToken: "tok-123",
		UserAgent: "Mozilla/5.0",
		ClientIP:  "10.0.0.1",
	}

	data, err := EncodeMetadata(original)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := DecodeMetadata(ActivityEmailOpened, data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	opened, ok := decoded.(*EmailOpenedMetadata)
	if !ok {
		t.Fatalf("expected *EmailOpenedMetadata, got %T", decoded)
	}
	if opened.OpenToken != original.OpenToken || opened.UserAgent != original.UserAgent || opened.ClientIP != original.ClientIP {
		t.Fatalf("round trip mismatch: %+v", opened)
	}
}

func TestDecodeMetadataStatusChanged(t *testing.T) {
	decoded, err := DecodeMetadata(ActivityStatusChanged, []byte(`{"from":"SENT","to":"CLOSED","reason":"won"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	changed, ok := decoded.(*StatusChangedMetadata)
	if !ok {
		t.Fatalf("expected *StatusChangedMetadata, got %T", decoded)
	}
	if changed.From != OutreachSent || changed.To != OutreachClosed || changed.Reason != "won" {
		t.Fatalf("unexpected payload: %+v", changed)
	}
}

func TestDecodeMetadataEmptyPayload(t *testing.T) {
	decoded, err := DecodeMetadata(ActivityEmailReset, nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, ok := decoded.(*EmailResetMetadata); !ok {
		t.Fatalf("expected *EmailResetMetadata, got %T", decoded)
	}
}

func TestDecodeMetadataUnknownType(t *testing.T) {
	if _, err := DecodeMetadata(ActivityType("bogus"), []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown activity type")
	}
}
