package app

import "time"

// Level 通知级别
type Level string

// 通知级别
const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// notificationBuffer 通知通道容量，满了丢弃最旧的一条
const notificationBuffer = 64

// Notification 给用户看的提示
type Notification struct {
	Level   Level
	Title   string
	Message string
	Time    time.Time
}

// notifier 非阻塞的通知队列
type notifier struct {
	ch chan Notification
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan Notification, notificationBuffer)}
}

func (n *notifier) push(note Notification) {
	for {
		select {
		case n.ch <- note:
			return
		default:
		}
		// 队列已满，丢弃最旧的一条
		select {
		case <-n.ch:
		default:
		}
	}
}
