package relay

import "github.com/topicgate/topicgate/internal/bus"

// Policy is the pure source admission predicate consulted before any
// resolution work. It never touches the network or the stores.
type Policy struct {
	excludedSenders map[int64]struct{}
	allowedSources  map[int64]struct{}
	onlyAllowList   bool
}

// NewPolicy builds the predicate. excluded should already contain the
// relay's own identity and the destination chat id; platform system
// senders come from configuration.
func NewPolicy(excluded, allowed []int64, onlyAllowList bool) *Policy {
	p := &Policy{
		excludedSenders: make(map[int64]struct{}, len(excluded)),
		allowedSources:  make(map[int64]struct{}, len(allowed)),
		onlyAllowList:   onlyAllowList,
	}
	for _, id := range excluded {
		p.excludedSenders[id] = struct{}{}
	}
	for _, id := range allowed {
		p.allowedSources[id] = struct{}{}
	}
	return p
}

// Admit reports whether msg may proceed to resolution. The per-key
// Enabled flag is a separate gate checked against the mapping store.
func (p *Policy) Admit(msg *bus.InboundMessage) bool {
	if msg.System {
		return false
	}
	if _, excluded := p.excludedSenders[msg.SenderID]; excluded {
		return false
	}
	if _, excluded := p.excludedSenders[msg.ChatID]; excluded {
		return false
	}
	if p.onlyAllowList {
		if _, ok := p.allowedSources[msg.ChatID]; !ok {
			return false
		}
	}
	return true
}

// DefaultEnabled returns the initial Enabled flag for a first-seen
// source: groups and channels relay immediately, private chats stay
// paused until an administrator enables them.
func DefaultEnabled(kind bus.ChatKind) bool {
	return kind != bus.ChatPrivate
}
