package queue

import (
	"testing"

	"github.com/nytron88/streamix-sub000/internal/domain"
)

func TestPendingMemberRoundTrip(t *testing.T) {
	id := PendingID{Kind: domain.KindTip, ID: "evt-42"}

	parsed, err := ParsePendingMember(id.Member())
	if err != nil {
		t.Fatalf("ParsePendingMember: %v", err)
	}
	if parsed != id {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, id)
	}
}

func TestParsePendingMemberPreservesColonsInID(t *testing.T) {
	parsed, err := ParsePendingMember("SUBSCRIPTION:sub:2024:01")
	if err != nil {
		t.Fatalf("ParsePendingMember: %v", err)
	}
	if parsed.Kind != domain.KindSubscription {
		t.Errorf("kind = %q, want SUBSCRIPTION", parsed.Kind)
	}
	if parsed.ID != "sub:2024:01" {
		t.Errorf("id = %q, want sub:2024:01", parsed.ID)
	}
}

func TestParsePendingMemberRejectsMalformed(t *testing.T) {
	for _, member := range []string{"", "TIP", ":abc", "TIP:"} {
		if _, err := ParsePendingMember(member); err == nil {
			t.Errorf("ParsePendingMember(%q) = nil error, want error", member)
		}
	}
}
