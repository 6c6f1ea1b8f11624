package log

import "go.uber.org/atomic"

// Binder 供长期存活的组件嵌入，保存组件自己的 Logger。
//
// 未调用 SetLogger 时 Logger 返回全局 Logger。
type Binder struct {
	logger atomic.Pointer[MLogger]
}

// SetLogger 替换组件的 Logger。
func (w *Binder) SetLogger(logger *MLogger) {
	w.logger.Store(logger)
}

// Logger 返回组件的 Logger。
func (w *Binder) Logger() *MLogger {
	if l := w.logger.Load(); l != nil {
		return l
	}
	return With()
}
