package signal

import (
	"golang.org/x/time/rate"
)

const (
	defaultMessageRate  = 20
	defaultMessageBurst = 40
)

// MessageRateLimiter caps inbound renderer messages on one socket.
type MessageRateLimiter struct {
	lim *rate.Limiter
}

func NewMessageRateLimiter(perSecond float64, burst int) *MessageRateLimiter {
	if perSecond <= 0 {
		perSecond = defaultMessageRate
	}
	if burst <= 0 {
		burst = defaultMessageBurst
	}
	return &MessageRateLimiter{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (rl *MessageRateLimiter) Allow() bool {
	return rl.lim.Allow()
}
