// internal/notify/notifier_test.go
package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifyInRegistrationOrder(t *testing.T) {
	n := NewNotifier(slog.Default())

	var calls []string
	n.Register(EntityWallet, func(ctx context.Context, e Event) error {
		calls = append(calls, "first")
		return nil
	})
	n.Register(EntityWallet, func(ctx context.Context, e Event) error {
		calls = append(calls, "second")
		return nil
	})

	n.Notify(context.Background(), Event{Entity: EntityWallet, Kind: EventUpdate})

	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestNotifyOnlyMatchingEntity(t *testing.T) {
	n := NewNotifier(slog.Default())

	walletCalls, txCalls := 0, 0
	n.Register(EntityWallet, func(ctx context.Context, e Event) error {
		walletCalls++
		return nil
	})
	n.Register(EntityTransaction, func(ctx context.Context, e Event) error {
		txCalls++
		return nil
	})

	n.Notify(context.Background(), Event{Entity: EntityTransaction, Kind: EventInsert})

	assert.Equal(t, 0, walletCalls)
	assert.Equal(t, 1, txCalls)
}

func TestFailingListenerDoesNotBlockOthers(t *testing.T) {
	n := NewNotifier(slog.Default())

	called := false
	n.Register(EntityWallet, func(ctx context.Context, e Event) error {
		return errors.New("listener down")
	})
	n.Register(EntityWallet, func(ctx context.Context, e Event) error {
		called = true
		return nil
	})

	n.Notify(context.Background(), Event{Entity: EntityWallet, Kind: EventUpdate})

	assert.True(t, called)
}
