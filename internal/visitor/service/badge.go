package service

import (
	"fmt"
	"sync"
)

// BadgeIssuer hands out badge numbers unique among currently-issued badges.
// Issuance is a critical section: the candidate is checked and reserved under
// one lock, and a collision regenerates rather than fails.
type BadgeIssuer struct {
	mu     sync.Mutex
	seq    int
	issued map[string]struct{}
}

func NewBadgeIssuer() *BadgeIssuer {
	return &BadgeIssuer{issued: make(map[string]struct{})}
}

// Issue reserves and returns the next free badge number.
func (b *BadgeIssuer) Issue() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		b.seq++
		badge := fmt.Sprintf("VMS%03d", b.seq)
		if _, taken := b.issued[badge]; taken {
			continue
		}
		b.issued[badge] = struct{}{}
		return badge
	}
}

// Claim reserves an externally-chosen badge number. Returns false when the
// number is already issued.
func (b *BadgeIssuer) Claim(badge string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.issued[badge]; taken {
		return false
	}
	b.issued[badge] = struct{}{}
	return true
}

// Release frees a badge number once its visit ends.
func (b *BadgeIssuer) Release(badge string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.issued, badge)
}

// QRPayload derives the QR code payload for a badge.
func QRPayload(badge string) string { return "QR_" + badge }
