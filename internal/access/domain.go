package access

import "time"

// Effect is the polarity of a direct grant.
type Effect string

const (
	EffectAllow Effect = "ALLOW"
	EffectDeny  Effect = "DENY"
)

// Valid reports whether e is a known effect.
func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// Grant is a per-user permission override, independent of roles.
type Grant struct {
	UserID    int64
	Key       string
	Effect    Effect
	CreatedAt time.Time
}
