package driver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeoutError(t *testing.T) {
	engineErr := errors.New("Timeout 10000ms exceeded.")
	err := fmt.Errorf("login: %w", &TimeoutError{Op: "click #submit", Err: engineErr})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, engineErr)
	assert.True(t, IsTimeout(err))
	assert.Contains(t, err.Error(), "click #submit")
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.False(t, IsTimeout(context.Canceled))
	assert.False(t, IsTimeout(errors.New("element not found")))
	assert.False(t, IsTimeout(nil))
}

func TestDeadline(t *testing.T) {
	assert.Equal(t, 5*time.Second, Deadline(context.Background(), 5*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	assert.Equal(t, 5*time.Second, Deadline(ctx, 5*time.Second))
	assert.Greater(t, Deadline(ctx, 0), 59*time.Minute)

	short, cancel3 := context.WithTimeout(context.Background(), time.Second)
	defer cancel3()
	assert.LessOrEqual(t, Deadline(short, time.Minute), time.Second)

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	assert.Equal(t, time.Millisecond, Deadline(expired, 5*time.Second))
}

func TestCapabilitiesSupports(t *testing.T) {
	c := Capabilities{Browsers: []string{"chromium"}}
	assert.True(t, c.Supports("chromium"))
	assert.False(t, c.Supports("webkit"))
}

func TestViewportString(t *testing.T) {
	assert.Equal(t, "375x667", Viewport{Width: 375, Height: 667}.String())
}
