package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	chatsvc "github.com/zhouzirui/z-tavern/local/internal/service/chat"
	"github.com/zhouzirui/z-tavern/local/internal/service/history"
)

func TestLoopRunsClosuresInOrder(t *testing.T) {
	loop := chatsvc.NewLoop(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan error, 1)
	go func() { stopped <- loop.Run(ctx) }()

	got := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		loop.Post(func() { got <- i })
	}

	for want := 0; want < 3; want++ {
		select {
		case v := <-got:
			assert.Equal(t, want, v)
		case <-time.After(time.Second):
			t.Fatal("closure not run")
		}
	}

	cancel()
	assert.ErrorIs(t, <-stopped, context.Canceled)

	// posting after shutdown must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			loop.Post(func() {})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Post blocked after Run returned")
	}
}

func TestSessionOnLoop(t *testing.T) {
	loop := chatsvc.NewLoop(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	dir := t.TempDir()
	chats, err := history.NewChatStore(dir, zap.NewNop())
	require.NoError(t, err)
	memories, err := history.NewMemoryStore(dir, zap.NewNop())
	require.NoError(t, err)

	session := chatsvc.NewSession(&fakeGateway{}, chats, memories, loop, zap.NewNop())
	events := make(chan chatsvc.Event, 8)
	session.Subscribe(func(ev chatsvc.Event) { events <- ev })
	require.NoError(t, session.Start(ivan))

	// a caller context that is cancelled right away does not abort the reply
	callCtx, callCancel := context.WithCancel(context.Background())
	task, err := session.Submit(callCtx, "hello")
	callCancel()
	require.NoError(t, err)

	reply, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "re: hello", reply.Content)

	for _, want := range []chatsvc.EventKind{chatsvc.EventReset, chatsvc.EventMessage, chatsvc.EventMessage} {
		select {
		case ev := <-events:
			assert.Equal(t, want, ev.Kind)
		case <-time.After(time.Second):
			t.Fatalf("missing %s event", want)
		}
	}
}
