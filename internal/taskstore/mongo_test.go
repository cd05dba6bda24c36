package taskstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsFoldDropsQueuedNoiseCaseInsensitively(t *testing.T) {
	assert.True(t, containsFold("Task is queued for processing", droppedProgressSubstring))
	assert.True(t, containsFold("QUEUED", droppedProgressSubstring))
	assert.False(t, containsFold("page 3/10 done", droppedProgressSubstring))
	assert.False(t, containsFold("", droppedProgressSubstring))
}
