package domain

import (
	"testing"
	"time"
)

func TestIdempotencyStatusValid(t *testing.T) {
	tests := []struct {
		name   string
		status IdempotencyStatus
		want   bool
	}{
		{name: "processing", status: IdempotencyStatusProcessing, want: true},
		{name: "done", status: IdempotencyStatusDone, want: true},
		{name: "failed", status: IdempotencyStatusFailed, want: true},
		{name: "invalid", status: IdempotencyStatus("broken"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.Valid(); got != tc.want {
				t.Fatalf("status %q valid=%v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestIdempotencyRecordCompletedAndExpired(t *testing.T) {
	now := time.Now().UTC()

	processing := IdempotencyRecord{Status: IdempotencyStatusProcessing, TTLAt: now.Add(time.Minute)}
	if processing.Completed() {
		t.Fatal("processing record must not be completed")
	}
	if processing.Expired(now) {
		t.Fatal("record with future ttl must not be expired")
	}

	failed := IdempotencyRecord{Status: IdempotencyStatusFailed, TTLAt: now.Add(-time.Second)}
	if !failed.Completed() {
		t.Fatal("failed record carries a stored response and counts as completed")
	}
	if !failed.Expired(now) {
		t.Fatal("record with past ttl must be expired")
	}

	if (IdempotencyRecord{}).Expired(now) {
		t.Fatal("record without ttl never expires")
	}
}
