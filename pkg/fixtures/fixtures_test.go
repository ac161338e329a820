package fixtures

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

func TestViewport(t *testing.T) {
	tests := []struct {
		device string
		want   driver.Viewport
	}{
		{"mobile", driver.Viewport{Width: 375, Height: 667}},
		{"Tablet", driver.Viewport{Width: 768, Height: 1024}},
		{"4k", driver.Viewport{Width: 3840, Height: 2160}},
		{"smartwatch", driver.Viewport{Width: 1920, Height: 1080}},
		{"", driver.Viewport{Width: 1920, Height: 1080}},
	}
	for _, tt := range tests {
		t.Run(tt.device, func(t *testing.T) {
			assert.Equal(t, tt.want, Viewport(tt.device))
		})
	}

	_, ok := LookupViewport("smartwatch")
	assert.False(t, ok)
}

func TestLookups(t *testing.T) {
	assert.Equal(t, "testuser1@example.com", TestUser(0).Email)
	assert.Equal(t, "testuser2@example.com", TestUser(3).Email)
	assert.Equal(t, "Email is required", InvalidCredential(-1).ExpectedError)
	assert.Equal(t, "/login", URL("login"))
	assert.Equal(t, "/", URL("nowhere"))
	assert.Len(t, LongQuery, 200)
}

func TestRandomEmail(t *testing.T) {
	re := regexp.MustCompile(`^test_[a-z0-9]{10}@test\.com$`)
	a, b := RandomEmail(""), RandomEmail("")
	assert.Regexp(t, re, a)
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `@shop\.local$`, RandomEmail("shop.local"))
}

func TestRandomString(t *testing.T) {
	assert.Regexp(t, `^[a-zA-Z0-9]{16}$`, RandomString(16))
	assert.Empty(t, RandomString(0))
}

func TestTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "20240102_030405", Timestamp(ts))
}
