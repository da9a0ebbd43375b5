package integrationtests

import (
	"context"
	"encoding/json"
	"model-release/internal/messaging"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRabbitMQ(t *testing.T) {
	skipShort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	publisher, receiver, url := setupRabbitMQContainer(t, ctx)

	t.Run("Publish and Receive PromotionTask", func(t *testing.T) {
		batch := 4
		payload := messaging.PromotionTaskPayload{
			TaskId:          uuid.New(),
			ModelName:       "iris",
			Version:         "3",
			Alias:           "prod",
			ArchivePrevious: true,
			ArchivedAlias:   "archived",
			BatchHint:       &batch,
			CleanVersionDir: true,
		}
		require.NoError(t, publisher.PublishPromotionTask(ctx, payload))

		select {
		case task := <-receiver.Tasks():
			assert.Equal(t, messaging.PromotionQueue, task.Type())

			var receivedPayload messaging.PromotionTaskPayload
			require.NoError(t, json.Unmarshal(task.Payload(), &receivedPayload))
			assert.Equal(t, payload, receivedPayload)

			require.NoError(t, task.Ack())
		case <-time.After(4 * time.Second):
			t.Fatal("Timed out waiting for task")
		}
	})

	t.Run("Nacked tasks are not redelivered", func(t *testing.T) {
		payload := messaging.PromotionTaskPayload{TaskId: uuid.New(), ModelName: "iris", Version: "4", Alias: "prod"}
		require.NoError(t, publisher.PublishPromotionTask(ctx, payload))

		select {
		case task := <-receiver.Tasks():
			require.NoError(t, task.Nack())
		case <-time.After(4 * time.Second):
			t.Fatal("Timed out waiting for task")
		}

		select {
		case task := <-receiver.Tasks():
			t.Fatalf("unexpected redelivery of %s", string(task.Payload()))
		case <-time.After(time.Second):
		}
	})

	t.Run("Publish and Receive PromotionEvent", func(t *testing.T) {
		events, err := messaging.NewRabbitMQEventReceiver(url)
		require.NoError(t, err)
		defer events.Close()

		event := messaging.PromotionEvent{
			TaskId:    uuid.New(),
			Status:    messaging.EventCommitted,
			Timestamp: time.Now().UTC().Truncate(time.Second),
			ModelName: "iris",
			Version:   "3",
			Alias:     "prod",
		}
		require.NoError(t, publisher.PublishPromotionEvent(ctx, event))

		select {
		case task := <-events.Tasks():
			assert.Equal(t, messaging.EventsQueue, task.Type())

			var received messaging.PromotionEvent
			require.NoError(t, json.Unmarshal(task.Payload(), &received))
			assert.Equal(t, event.TaskId, received.TaskId)
			assert.Equal(t, messaging.EventCommitted, received.Status)
			assert.True(t, event.Timestamp.Equal(received.Timestamp))

			require.NoError(t, task.Ack())
		case <-time.After(4 * time.Second):
			t.Fatal("Timed out waiting for event")
		}
	})
}
