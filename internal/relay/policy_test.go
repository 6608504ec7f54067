package relay

import (
	"testing"

	"github.com/topicgate/topicgate/internal/bus"
)

func TestAdmit(t *testing.T) {
	p := NewPolicy([]int64{777000, -100999}, nil, false)

	cases := []struct {
		name string
		msg  bus.InboundMessage
		want bool
	}{
		{"plain group message", bus.InboundMessage{ChatID: 100, SenderID: 7}, true},
		{"system sender", bus.InboundMessage{ChatID: 100, SenderID: 777000}, false},
		{"destination chat echo", bus.InboundMessage{ChatID: -100999, SenderID: 7}, false},
		{"service notification", bus.InboundMessage{ChatID: 100, SenderID: 7, System: true}, false},
	}
	for _, c := range cases {
		if got := p.Admit(&c.msg); got != c.want {
			t.Errorf("%s: Admit = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestAdmitAllowList(t *testing.T) {
	p := NewPolicy(nil, []int64{100}, true)

	if !p.Admit(&bus.InboundMessage{ChatID: 100, SenderID: 7}) {
		t.Fatalf("allow-listed chat rejected")
	}
	if p.Admit(&bus.InboundMessage{ChatID: 200, SenderID: 7}) {
		t.Fatalf("non-listed chat admitted under enforcement")
	}

	open := NewPolicy(nil, []int64{100}, false)
	if !open.Admit(&bus.InboundMessage{ChatID: 200, SenderID: 7}) {
		t.Fatalf("allow-list should be inert when enforcement is off")
	}
}

func TestDefaultEnabled(t *testing.T) {
	if !DefaultEnabled(bus.ChatGroup) || !DefaultEnabled(bus.ChatChannel) {
		t.Fatalf("groups and channels should relay by default")
	}
	if DefaultEnabled(bus.ChatPrivate) {
		t.Fatalf("private chats must start paused")
	}
}
