package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haakonmt/girobatch/internal/models"
)

type recordingNotifier struct {
	dueNotices int
	receipts   int
	err        error
}

func (r *recordingNotifier) SendDueNotice(context.Context, models.Agreement) error {
	r.dueNotices++
	return r.err
}

func (r *recordingNotifier) SendReceipt(context.Context, uuid.UUID) error {
	r.receipts++
	return r.err
}

func TestRegistryFansOut(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	reg := NewRegistry()
	reg.Register("first", first)
	reg.Register("second", second)

	require.NoError(t, reg.SendDueNotice(context.Background(), models.Agreement{ID: uuid.New()}))
	require.NoError(t, reg.SendReceipt(context.Background(), uuid.New()))

	assert.Equal(t, 1, first.dueNotices)
	assert.Equal(t, 1, second.dueNotices)
	assert.Equal(t, 1, first.receipts)
	assert.Equal(t, 1, second.receipts)
}

func TestRegistryChannelFailureDoesNotPropagate(t *testing.T) {
	broken := &recordingNotifier{err: errors.New("smtp down")}
	healthy := &recordingNotifier{}
	reg := NewRegistry()
	reg.Register("broken", broken)
	reg.Register("healthy", healthy)

	require.NoError(t, reg.SendDueNotice(context.Background(), models.Agreement{ID: uuid.New()}))
	assert.Equal(t, 1, healthy.dueNotices)
}

func TestEmptyRegistryIsNoop(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.SendReceipt(context.Background(), uuid.New()))
}
