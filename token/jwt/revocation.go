package jwt

import (
	"sync"
	"time"
)

// Denylist holds the ids of access tokens revoked before their expiry. An entry is only
// needed until the token would have expired anyway, so Sweep drops it after that.
type Denylist struct {
	mu    sync.Mutex
	until map[string]time.Time
}

func NewDenylist() *Denylist {
	return &Denylist{until: make(map[string]time.Time)}
}

// Revoke denies jti until exp. Tokens without an id cannot be denied.
func (d *Denylist) Revoke(jti string, exp time.Time) {
	if jti == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.until[jti] = exp
}

func (d *Denylist) IsRevoked(jti string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.until[jti]
	return ok
}

// Sweep forgets tokens that have expired and returns how many went.
func (d *Denylist) Sweep() int {
	now := NowTimeFunc()
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for jti, exp := range d.until {
		if now.After(exp) {
			delete(d.until, jti)
			n++
		}
	}
	return n
}
