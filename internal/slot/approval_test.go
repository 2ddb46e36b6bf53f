package slot

import (
	"context"
	"strconv"
	"strings"
	"testing"
)

func proposeCustom(t *testing.T, svc *Service, store *memStore, settings *fakeSettings, amount int) (*Correlation, PendingApproval) {
	t.Helper()
	c := dispatchOne(t, svc, store, 10, 25)
	settings.operators["room-b1/op-1"] = true
	err := svc.HandleFulfillment(context.Background(), FulfillmentEvent{
		Room: "room-b1", MessageID: "op-msg-1", ReplyToID: c.TargetMessageID,
		UserID: "op-1", UserName: "operator", Text: strconv.Itoa(amount),
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	appr, _ := store.Approvals(context.Background())
	if len(appr) != 1 {
		t.Fatalf("approvals = %d, want 1", len(appr))
	}
	return c, appr[0]
}

func TestIsAffirmation(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"同意", true},
		{"确认", true},
		{" 同意 ", true},
		{"同意了", false},
		{"ok", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsAffirmation(tt.text); got != tt.want {
			t.Errorf("IsAffirmation(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestPrivateAffirmationResolvesLatest(t *testing.T) {
	svc, store, settings, msgr := newTestService("room-b1")
	c, _ := proposeCustom(t, svc, store, settings, 99)

	err := svc.ResolveAffirmation(context.Background(), ApprovalContext{
		Private: true, ApproverID: "admin-1", ApproverName: "root",
	})
	if err != nil {
		t.Fatalf("ResolveAffirmation: %v", err)
	}

	if appr, _ := store.Approvals(context.Background()); len(appr) != 0 {
		t.Errorf("approvals left = %d, want 0", len(appr))
	}
	sl, _ := store.SlotByID(context.Background(), c.SlotID)
	if sl.Status != StatusOpen {
		t.Errorf("slot status = %q, want reopened", sl.Status)
	}

	var relay, note *sentMsg
	for i := range msgr.sent {
		switch msgr.sent[i].room {
		case "room-a":
			relay = &msgr.sent[i]
		case "room-b1":
			if strings.Contains(msgr.sent[i].text, "✅") {
				note = &msgr.sent[i]
			}
		}
	}
	if relay == nil || relay.text != "+99" {
		t.Errorf("relay = %+v, want +99 to the source room", relay)
	}
	if note == nil || !strings.Contains(note.text, "+99") || !strings.Contains(note.text, "root") {
		t.Errorf("confirmation note = %+v, want amount and approver name", note)
	}
}

func TestRoomAffirmationByQuotedMessage(t *testing.T) {
	svc, store, settings, _ := newTestService("room-b1")
	c, _ := proposeCustom(t, svc, store, settings, 99)

	err := svc.ResolveAffirmation(context.Background(), ApprovalContext{
		Room: "room-b1", ReplyToID: "op-msg-1", ApproverID: "admin-1", ApproverName: "root",
	})
	if err != nil {
		t.Fatalf("ResolveAffirmation: %v", err)
	}

	sl, _ := store.SlotByID(context.Background(), c.SlotID)
	if sl.Status != StatusOpen {
		t.Errorf("slot status = %q, want reopened", sl.Status)
	}
}

func TestRoomAffirmationByNoticeText(t *testing.T) {
	svc, store, settings, _ := newTestService("room-b1")
	c, _ := proposeCustom(t, svc, store, settings, 99)

	// Quoting the bot's own notice: matched through the +amount in the
	// quoted text, not the message id.
	err := svc.ResolveAffirmation(context.Background(), ApprovalContext{
		Room: "room-b1", ReplyToID: "bot-notice-1", ReplyToText: "👤 用户 operator 提交的自定义金额 +99 需要全局管理员确认",
		ApproverID: "admin-1", ApproverName: "root",
	})
	if err != nil {
		t.Fatalf("ResolveAffirmation: %v", err)
	}

	sl, _ := store.SlotByID(context.Background(), c.SlotID)
	if sl.Status != StatusOpen {
		t.Errorf("slot status = %q, want reopened", sl.Status)
	}
}

func TestRoomAffirmationUnmatched(t *testing.T) {
	svc, store, settings, msgr := newTestService("room-b1")
	proposeCustom(t, svc, store, settings, 99)

	err := svc.ResolveAffirmation(context.Background(), ApprovalContext{
		Room: "room-b1", ReplyToID: "unrelated", ReplyToText: "随便聊聊",
		ApproverID: "admin-1", ApproverName: "root",
	})
	if err != nil {
		t.Fatalf("ResolveAffirmation: %v", err)
	}

	if appr, _ := store.Approvals(context.Background()); len(appr) != 1 {
		t.Errorf("approvals = %d, want the pending one untouched", len(appr))
	}
	if miss := msgr.lastSent(); miss.text != msgApprovalNotFound {
		t.Errorf("last message = %+v, want the not-found notice", miss)
	}
}

func TestAffirmationSingleWinner(t *testing.T) {
	svc, store, settings, msgr := newTestService("room-b1")
	_, p := proposeCustom(t, svc, store, settings, 99)

	if _, err := store.TakeApproval(context.Background(), p.ID); err != nil {
		t.Fatalf("first take: %v", err)
	}
	if _, err := store.TakeApproval(context.Background(), p.ID); err != ErrNotFound {
		t.Fatalf("second take error = %v, want ErrNotFound", err)
	}

	// A later affirmation for the settled approval must not resolve
	// anything; at most it reports the miss.
	before := len(msgr.sent)
	err := svc.ResolveAffirmation(context.Background(), ApprovalContext{
		Room: "room-b1", ReplyToID: "op-msg-1", ApproverID: "admin-1", ApproverName: "root",
	})
	if err != nil {
		t.Fatalf("ResolveAffirmation: %v", err)
	}
	if miss := msgr.lastSent(); len(msgr.sent) != before && miss.text != msgApprovalNotFound {
		t.Errorf("unexpected output after lost race: %+v", miss)
	}
}

func TestAffirmationFromNonApproverRejected(t *testing.T) {
	svc, store, settings, _ := newTestService("room-b1")
	proposeCustom(t, svc, store, settings, 99)

	err := svc.ResolveAffirmation(context.Background(), ApprovalContext{
		Room: "room-b1", ReplyToID: "op-msg-1", ApproverID: "stranger", ApproverName: "stranger",
	})
	if err != ErrUnauthorized {
		t.Fatalf("ResolveAffirmation error = %v, want ErrUnauthorized", err)
	}
	if appr, _ := store.Approvals(context.Background()); len(appr) != 1 {
		t.Errorf("approvals = %d, want the pending one untouched", len(appr))
	}
}

func TestPrivateAffirmationNothingPending(t *testing.T) {
	svc, _, _, msgr := newTestService("room-b1")

	err := svc.ResolveAffirmation(context.Background(), ApprovalContext{
		Private: true, ApproverID: "admin-1", ApproverName: "root",
	})
	if err != nil {
		t.Fatalf("ResolveAffirmation: %v", err)
	}
	if len(msgr.directs) != 1 || msgr.directs[0].text != msgNoPendingApproval {
		t.Errorf("directs = %+v, want the nothing-pending notice", msgr.directs)
	}
}
