package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueForPriority(t *testing.T) {
	cases := map[int]string{
		PriorityCritical: "critical",
		PriorityDefault:  "default",
		PriorityLow:      "low",
		0:                "default",
		99:               "default",
	}
	for priority, want := range cases {
		assert.Equal(t, want, queueForPriority(priority), "priority %d", priority)
	}
}

func TestStatusKey(t *testing.T) {
	assert.Equal(t, "task_status:abc", statusKey("abc"))
}
