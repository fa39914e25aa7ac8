package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicFromChannel(t *testing.T) {
	tests := []struct {
		channel string
		want    string
	}{
		{"assetx:pass.completed", "pass.completed"},
		{"assetx:project.discovered", "project.discovered"},
		{"assetx:refresh.completed", "refresh.completed"},
		{"other:pass.completed", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TopicFromChannel(tt.channel), "channel %q", tt.channel)
	}
}

func TestTopicSubscriptions(t *testing.T) {
	subs := newTopicSubscriptions()

	assert.False(t, subs.IsSubscribed("pass.completed"))

	subs.Subscribe("pass.completed")
	assert.True(t, subs.IsSubscribed("pass.completed"))
	assert.False(t, subs.IsSubscribed("refresh.completed"))

	subs.Unsubscribe("pass.completed")
	assert.False(t, subs.IsSubscribed("pass.completed"))
}

func TestWildcardSubscriptionMatchesEverything(t *testing.T) {
	subs := newTopicSubscriptions()
	subs.Subscribe("*")

	assert.True(t, subs.IsSubscribed("pass.completed"))
	assert.True(t, subs.IsSubscribed("project.discovered"))
}
