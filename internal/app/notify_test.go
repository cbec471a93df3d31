package app

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifier_DropsOldestWhenFull(t *testing.T) {
	n := newNotifier()
	for i := 0; i < notificationBuffer+3; i++ {
		n.push(Notification{Level: LevelInfo, Title: fmt.Sprint(i)})
	}

	assert.Len(t, n.ch, notificationBuffer)
	first := <-n.ch
	assert.Equal(t, "3", first.Title)
}
