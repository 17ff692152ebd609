package advice

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

type advisorChain struct {
	primary  Advisor
	fallback Advisor
}

// WithFallback returns an advisor that first tries the primary implementation and
// falls back to the provided advisor when the primary is unavailable or produces
// an unusable response.
func WithFallback(primary, fallback Advisor) Advisor {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &advisorChain{primary: primary, fallback: fallback}
}

func (c *advisorChain) Enabled() bool {
	if c == nil {
		return false
	}
	if c.primary != nil && c.primary.Enabled() {
		return true
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return true
	}
	return false
}

func (c *advisorChain) Advise(ctx context.Context, input Input) (Advice, error) {
	if c == nil {
		return Advice{}, ErrDisabled
	}
	if c.primary != nil && c.primary.Enabled() {
		advice, err := c.primary.Advise(ctx, input)
		if err == nil && strings.TrimSpace(advice.Recommendation) != "" {
			return advice, nil
		}
		if err != nil {
			logrus.WithError(err).Warn("primary advisor failed, using fallback")
		}
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return c.fallback.Advise(ctx, input)
	}
	return Advice{}, ErrDisabled
}
