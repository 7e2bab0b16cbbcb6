package consumer

import (
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-toolkit/internal/logger"
)

type fakeChannel struct {
	mu        sync.Mutex
	cancelled []string
	closed    bool
}

func (f *fakeChannel) Cancel(tag string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, tag)
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestConsumer_DeliversUntilStopped(t *testing.T) {
	msgs := make(chan amqp.Delivery)
	got := make(chan string, 2)
	ch := &fakeChannel{}

	c := Start(ch, msgs, "maintenance_jobs", "worker-0", func(d amqp.Delivery) {
		got <- string(d.Body)
	}, logger.NewNop())

	msgs <- amqp.Delivery{Body: []byte("one")}
	msgs <- amqp.Delivery{Body: []byte("two")}
	assert.Equal(t, "one", <-got)
	assert.Equal(t, "two", <-got)

	c.Stop()
	assert.Equal(t, []string{"worker-0"}, ch.cancelled)
	assert.True(t, ch.closed)

	// a second Stop is a no-op
	c.Stop()
}

func TestConsumer_ExitsWhenDeliveriesClose(t *testing.T) {
	msgs := make(chan amqp.Delivery)
	c := Start(&fakeChannel{}, msgs, "q", "tag", func(amqp.Delivery) {}, logger.NewNop())

	close(msgs)
	select {
	case <-c.DoneChan:
	case <-time.After(time.Second):
		require.Fail(t, "consumer did not exit")
	}
}
