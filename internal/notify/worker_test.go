package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"securevms/internal/audit"
	auditmemory "securevms/internal/audit/store/memory"
	"securevms/internal/notify"
	"securevms/internal/notify/mocks"
)

func runWorker(t *testing.T, outbox *notify.Outbox, dispatcher notify.Dispatcher, auditor notify.AuditPublisher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := notify.NewWorker(outbox, dispatcher, notify.WithAuditPublisher(auditor))
	go func() { _ = w.Run(ctx) }()
	return cancel
}

func TestWorker_DeliveryConfirmationRunsCallbackAndAudits(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockDispatcher(ctrl)
	store := auditmemory.NewInMemoryStore()
	outbox := notify.NewOutbox(4, nil)

	delivered := make(chan struct{})
	dispatcher.EXPECT().
		Send(gomock.Any(), notify.ChannelEmail, "sam@visitors.example", "your code is PA-1").
		Return(nil)

	cancel := runWorker(t, outbox, dispatcher, audit.NewPublisher(store))
	defer cancel()

	outbox.Enqueue(notify.Intent{
		Channel:     notify.ChannelEmail,
		Recipient:   "sam@visitors.example",
		Message:     "your code is PA-1",
		OnDelivered: func(context.Context) { close(delivered) },
	})

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery callback never ran")
	}

	require.Eventually(t, func() bool { return store.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	entries, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, audit.ActionNotificationSentEmail, entries[0].Action)
}

func TestWorker_FailedDeliverySkipsCallbackAndAudit(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockDispatcher(ctrl)
	store := auditmemory.NewInMemoryStore()
	outbox := notify.NewOutbox(4, nil)

	sent := make(chan struct{})
	dispatcher.EXPECT().
		Send(gomock.Any(), notify.ChannelSMS, gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, notify.Channel, string, string) error {
			close(sent)
			return errors.New("gateway unavailable")
		})

	cancel := runWorker(t, outbox, dispatcher, audit.NewPublisher(store))
	defer cancel()

	callbackRan := false
	outbox.Enqueue(notify.Intent{
		Channel:     notify.ChannelSMS,
		Recipient:   "+1 555 0100",
		Message:     "code",
		OnDelivered: func(context.Context) { callbackRan = true },
	})

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never called")
	}
	time.Sleep(50 * time.Millisecond)

	// No retry, no sent flag, no audit entry: the caller may re-enqueue.
	assert.False(t, callbackRan)
	assert.Equal(t, 0, store.Len())
}

func TestOutbox_DropsWhenFull(t *testing.T) {
	var dropped []notify.Intent
	outbox := notify.NewOutbox(1, func(i notify.Intent) { dropped = append(dropped, i) })

	outbox.Enqueue(notify.Intent{Channel: notify.ChannelEmail, Recipient: "a@example.com"})
	outbox.Enqueue(notify.Intent{Channel: notify.ChannelEmail, Recipient: "b@example.com"})

	require.Len(t, dropped, 1)
	assert.Equal(t, "b@example.com", dropped[0].Recipient)
}
