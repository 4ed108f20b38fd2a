package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReplyTopicWithRealTopic(t *testing.T) {
	s := newTestServer(t)
	c, r := newTestConnection(t)
	defer func() { _ = c.Close() }()

	ch := newTestChannel(t, "#users")
	ch.setTopic("hello world", "alice")

	go s.replyTopic(c, ch)

	line := readLineWithTimeout(t, r)
	assert.Contains(t, line, " 332 ")
	assert.Contains(t, line, "hello world")
}

func TestReplyTopicWithMetaAndNoTopicUses332(t *testing.T) {
	s := newTestServer(t)
	c, r := newTestConnection(t)
	defer func() { _ = c.Close() }()

	ch := newTestChannel(t, "#users")
	ch.Meta = &ChannelMeta{RecordCount: 3, MaxUpdated: time.Now()}

	go s.replyTopic(c, ch)

	line := readLineWithTimeout(t, r)
	assert.Contains(t, line, " 332 ", "a schema channel with cached metadata must reply RPL_TOPIC, not RPL_NOTOPIC")
	assert.Contains(t, line, "3 records")
}

func TestReplyTopicWithNoTopicAndNoMetaUses331(t *testing.T) {
	s := newTestServer(t)
	c, r := newTestConnection(t)
	defer func() { _ = c.Close() }()

	ch := newTestChannel(t, "#users/42")

	go s.replyTopic(c, ch)

	line := readLineWithTimeout(t, r)
	assert.Contains(t, line, " 331 ")
	assert.Contains(t, line, "No topic is set")
}

func TestSetTopicTruncatesToMaxLength(t *testing.T) {
	ch := newTestChannel(t, "#users")
	long := make([]byte, maxTopicLength+50)
	for i := range long {
		long[i] = 'x'
	}

	ch.setTopic(string(long), "alice")

	topic, _, _ := ch.topicSnapshot()
	assert.Len(t, topic, maxTopicLength)
}
