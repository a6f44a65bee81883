package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/trackdle/trackdle/apiserver/internal/authn"
	"github.com/trackdle/trackdle/apiserver/internal/authn/flowstates"
	"github.com/trackdle/trackdle/apiserver/internal/meta"
)

// consumeScript atomically retrieves and deletes a flow state. Doing the GET
// and DEL as a single server-side script closes the window in which two
// concurrent callbacks carrying the same state could both observe the value.
//
// KEYS[1]: the flow state key
//
// Returns: the flow state value, or nil if absent
var consumeScript = redis.NewScript(`
local value = redis.call("GET", KEYS[1])
if value then
  redis.call("DEL", KEYS[1])
end
return value
`)

type store struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewStore returns a Redis-based implementation of the flowstates.Store
// interface. Entries expire ttl after creation, whether or not they are
// ever consumed.
func NewStore(redisClient *redis.Client, ttl time.Duration) flowstates.Store {
	return &store{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

func (s *store) Create(
	ctx context.Context,
	flowState authn.FlowState,
) error {
	flowStateJSON, err := json.Marshal(flowState)
	if err != nil {
		return errors.Wrapf(
			err,
			"error marshaling flow state %q",
			flowState.State,
		)
	}
	if err := s.redisClient.Set(
		flowStateKey(flowState.State),
		flowStateJSON,
		s.ttl,
	).Err(); err != nil {
		return errors.Wrapf(
			err,
			"error storing flow state %q",
			flowState.State,
		)
	}
	return nil
}

func (s *store) Consume(
	ctx context.Context,
	state string,
) (authn.FlowState, error) {
	flowState := authn.FlowState{}
	res, err := consumeScript.Run(
		s.redisClient,
		[]string{flowStateKey(state)},
	).Result()
	if err == redis.Nil {
		return flowState, &meta.ErrNotFound{
			Type: "FlowState",
		}
	}
	if err != nil {
		return flowState, errors.Wrapf(
			err,
			"error consuming flow state %q",
			state,
		)
	}
	flowStateJSON, ok := res.(string)
	if !ok {
		return flowState, errors.Errorf(
			"flow state %q had an unexpected value type",
			state,
		)
	}
	if err := json.Unmarshal([]byte(flowStateJSON), &flowState); err != nil {
		return flowState, errors.Wrapf(
			err,
			"error unmarshaling flow state %q",
			state,
		)
	}
	flowState.State = state
	return flowState, nil
}

func flowStateKey(state string) string {
	return fmt.Sprintf("flowstates:%s", state)
}
