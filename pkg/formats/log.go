package formats

import "go.uber.org/zap"

var decodeLog = zap.NewNop()

// SetLogger routes decoder diagnostics to l. A nil logger disables them.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	decodeLog = l
}
