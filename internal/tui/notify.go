package tui

import tea "github.com/charmbracelet/bubbletea"

// Notifier 把编排层的状态变化转成 bubbletea 消息。
//
// 只传递“有变化”的信号，不传状态本身：模型收到 changedMsg 后再去拉取最新快照。
// 信号通道容量为 1，连续变化会合并，但不会丢掉最后一次。
// Notify 可能在 Update 所在的 goroutine 内被同步调用（SetQuery 的监听器），所以必须非阻塞。
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

type changedMsg struct{}

func (n *Notifier) wait() tea.Cmd {
	return func() tea.Msg {
		<-n.ch
		return changedMsg{}
	}
}
