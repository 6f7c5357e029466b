package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/challenge-api/internal/models"
)

func TestBusIsolatesHandlerFailures(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var delivered []string
	bus.Subscribe("panics", func(context.Context, LifecycleEvent) error { panic("boom") })
	bus.Subscribe("fails", func(context.Context, LifecycleEvent) error { return errors.New("sink down") })
	bus.Subscribe("records", func(_ context.Context, e LifecycleEvent) error {
		delivered = append(delivered, string(e.Next))
		return nil
	})

	event := NewLifecycleEvent(7, models.ChallengeTypeCode, models.ChallengeStatusOpen, models.ChallengeStatusEnded, time.Now())
	require.NotPanics(t, func() { bus.Dispatch(context.Background(), event) })
	require.Equal(t, []string{"ENDED"}, delivered)
}

func TestRedisPublisherSendsEnvelope(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	ctx := context.Background()

	sub := client.Subscribe(ctx, "challenge:lifecycle")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	bus := NewBus(zerolog.Nop())
	bus.AddPublisher(NewRedisPublisher(client, "challenge:lifecycle", "node-a"))

	event := NewLifecycleEvent(3, models.ChallengeTypePortfolio, models.ChallengeStatusOpen, models.ChallengeStatusVoting, time.Now())
	bus.Dispatch(ctx, event)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &envelope))
	require.Equal(t, "node-a", envelope.Source)
	require.Equal(t, KindVoteOpened, envelope.Kind)
	require.Equal(t, uint(3), envelope.Event.ChallengeID)
	require.Equal(t, event.ID, envelope.Event.ID)
}

func TestNotificationKind(t *testing.T) {
	open := LifecycleEvent{Type: models.ChallengeTypeCode, Next: models.ChallengeStatusOpen}
	require.Equal(t, KindChallengeOpened, open.NotificationKind())

	codeVoting := LifecycleEvent{Type: models.ChallengeTypeCode, Next: models.ChallengeStatusVoting}
	require.Empty(t, codeVoting.NotificationKind())

	ended := LifecycleEvent{Type: models.ChallengeTypePortfolio, Next: models.ChallengeStatusEnded}
	require.Equal(t, KindChallengeEnded, ended.NotificationKind())
}
