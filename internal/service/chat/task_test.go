package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	chatsvc "github.com/zhouzirui/z-tavern/local/internal/service/chat"
)

func TestResolvedTask(t *testing.T) {
	task := chatsvc.Resolved("chat-1", nil)

	select {
	case <-task.Done():
	default:
		t.Fatal("resolved task should be done")
	}

	v, err := task.Result()
	assert.NoError(t, err)
	assert.Equal(t, "chat-1", v)
}

func TestTaskWaitHonoursContext(t *testing.T) {
	f := newFixture(t)
	f.gateway.gate = make(chan struct{})
	defer close(f.gateway.gate)

	task, err := f.session.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	_, err = task.Result()
	assert.ErrorIs(t, err, chatsvc.ErrPending)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = task.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
