package timer

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/novaquark/actor-framework/internal/baselib/actor"
	"github.com/stretchr/testify/require"
)

// TestTimeoutMessagesSatisfyActorMessage verifies the ready-made timeout
// messages can be delivered through a typed mailbox reference.
func TestTimeoutMessagesSatisfyActorMessage(t *testing.T) {
	t.Parallel()

	var _ actor.Message = OrdinaryTimeoutMsg{}
	var _ actor.Message = MultiTimeoutMsg{}

	ref := actor.NewChannelTellOnlyRef[OrdinaryTimeoutMsg]("sink", 1)
	rec := NewActorReceiver[OrdinaryTimeoutMsg](
		ref,
		func(typeTag string, ordinalID uint64) OrdinaryTimeoutMsg {
			return OrdinaryTimeoutMsg{
				Type: typeTag, OrdinalID: ordinalID,
			}
		},
		nil, nil,
	)

	rec.DeliverOrdinaryTimeout(t.Context(), "tick", 3)

	msg, ok := ref.AwaitMessage(time.Second)
	require.True(t, ok)
	require.Equal(t, "tick", msg.Type)
	require.Equal(t, uint64(3), msg.OrdinalID)
}

// TestRequestTimeoutErrUnpacksFromResult verifies the request-timeout error
// value surfaces through the Err branch of an fn.Result the way behaviors
// report it.
func TestRequestTimeoutErrUnpacksFromResult(t *testing.T) {
	t.Parallel()

	reqID := uuid.New()
	result := fn.Err[string](RequestTimeoutErr{RequestID: reqID})

	_, err := result.Unpack()
	require.Error(t, err)

	var timeoutErr RequestTimeoutErr
	require.True(t, errors.As(err, &timeoutErr))
	require.Equal(t, reqID, timeoutErr.RequestID)
	require.Contains(t, timeoutErr.Error(), reqID.String())
}
