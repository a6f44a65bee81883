package sessions

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envconfigPrefix = "SESSIONS"

// Config represents session lifecycle configuration options
type Config interface {
	// SessionTTL returns how long a newly created Session lives.
	SessionTTL() time.Duration
	// FlowStateTTL returns how long an unconsumed login flow state lives.
	FlowStateTTL() time.Duration
	// IdentityProviderTimeout returns the per-call deadline on outbound
	// requests to the identity provider.
	IdentityProviderTimeout() time.Duration
}

type config struct {
	SessionTTLAttr              time.Duration `envconfig:"TTL"`
	FlowStateTTLAttr            time.Duration `envconfig:"FLOW_STATE_TTL"`
	IdentityProviderTimeoutAttr time.Duration `envconfig:"IDENTITY_PROVIDER_TIMEOUT"` // nolint: lll
}

// NewConfigWithDefaults returns a Config object with default values already
// applied. Callers are then free to set custom values for the remaining fields
// and/or override default values.
func NewConfigWithDefaults() Config {
	return &config{
		SessionTTLAttr:              7 * 24 * time.Hour,
		FlowStateTTLAttr:            10 * time.Minute,
		IdentityProviderTimeoutAttr: 30 * time.Second,
	}
}

// GetConfigFromEnvironment returns session lifecycle configuration derived
// from environment variables
func GetConfigFromEnvironment() (Config, error) {
	c := NewConfigWithDefaults().(*config)
	return c, envconfig.Process(envconfigPrefix, c)
}

func (c *config) SessionTTL() time.Duration {
	return c.SessionTTLAttr
}

func (c *config) FlowStateTTL() time.Duration {
	return c.FlowStateTTLAttr
}

func (c *config) IdentityProviderTimeout() time.Duration {
	return c.IdentityProviderTimeoutAttr
}
