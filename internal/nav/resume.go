package nav

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Resume parks a character's menu position when the session ends, so a
// reconnect within the TTL lands where the player left off. Entries expire
// on their own; nothing grows with player churn.
type Resume struct {
	c *gocache.Cache
}

func NewResume(ttl time.Duration) *Resume {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resume{c: gocache.New(ttl, 2*ttl)}
}

func resumeKey(character uint64) string {
	return strconv.FormatUint(character, 10)
}

func (r *Resume) Park(character uint64, s State) {
	if s.View == MainMenu {
		r.c.Delete(resumeKey(character))
		return
	}
	r.c.SetDefault(resumeKey(character), s)
}

// Take returns and forgets the parked state.
func (r *Resume) Take(character uint64) (State, bool) {
	k := resumeKey(character)
	v, ok := r.c.Get(k)
	if !ok {
		return State{}, false
	}
	r.c.Delete(k)
	return v.(State), true
}

func (r *Resume) Len() int { return r.c.ItemCount() }
