package notifications

import (
	"testing"
)

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusQueued, false},
		{StatusProcessing, false},
		{StatusRetry, false},
		{StatusSent, true},
		{StatusDeadLetter, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusQueued, true},
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusDeadLetter, true},
		{StatusQueued, StatusProcessing, true},
		{StatusRetry, StatusProcessing, true},
		{StatusProcessing, StatusSent, true},
		{StatusProcessing, StatusRetry, true},
		{StatusProcessing, StatusDeadLetter, true},

		{StatusSent, StatusProcessing, false},
		{StatusSent, StatusRetry, false},
		{StatusDeadLetter, StatusProcessing, false},
		{StatusDeadLetter, StatusRetry, false},
		{StatusFailed, StatusProcessing, false},
		{StatusQueued, StatusSent, false},
		{StatusPending, StatusSent, false},
		{StatusRetry, StatusSent, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestValidPriority(t *testing.T) {
	for p := 1; p <= 4; p++ {
		if !ValidPriority(p) {
			t.Errorf("ValidPriority(%d) = false, want true", p)
		}
	}
	for _, p := range []int{0, -1, 5, 100} {
		if ValidPriority(p) {
			t.Errorf("ValidPriority(%d) = true, want false", p)
		}
	}
}

func TestAllChannelsOrder(t *testing.T) {
	want := []Channel{ChannelEmail, ChannelSMS, ChannelWhatsApp, ChannelPush}
	got := AllChannels()
	if len(got) != len(want) {
		t.Fatalf("AllChannels() returned %d channels, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AllChannels()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestChannelAndTypeValidation(t *testing.T) {
	if !ChannelWhatsApp.Valid() {
		t.Error("Expected WHATSAPP to be a valid channel")
	}
	if Channel("TELEGRAM").Valid() {
		t.Error("Expected TELEGRAM to be rejected")
	}
	if !TypeAlert.Valid() {
		t.Error("Expected ALERT to be a valid type")
	}
	if Type("BULK").Valid() {
		t.Error("Expected BULK to be rejected")
	}
}

func TestMetadataScanValue(t *testing.T) {
	m := Metadata{"orderId": "o-42", "amount": 12.5}

	v, err := m.Value()
	if err != nil {
		t.Fatalf("Value() returned error: %v", err)
	}

	var out Metadata
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan() returned error: %v", err)
	}
	if out["orderId"] != "o-42" {
		t.Errorf("Expected orderId o-42, got %v", out["orderId"])
	}

	var empty Metadata
	if err := empty.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) returned error: %v", err)
	}
	if empty == nil {
		t.Error("Expected Scan(nil) to produce an empty map")
	}
}
