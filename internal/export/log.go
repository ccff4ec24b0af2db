package export

import "go.uber.org/zap"

var exportLog = zap.NewNop()

// SetLogger routes exporter warnings to l. A nil logger disables them.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	exportLog = l
}
