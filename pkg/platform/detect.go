// pkg/platform/detect.go
package platform

import (
	"github.com/arc-language/uvenv/pkg/host"
	"github.com/arc-language/uvenv/pkg/modules"
)

// Select picks the strategy for h. It is called once per build; shared code
// never branches on the host type afterwards.
func Select(h host.Host) Strategy {
	switch h.Variant() {
	case modules.Jython:
		return NewJython(h)
	case modules.PyPy:
		return NewPyPy(h)
	case modules.Windows:
		return NewWindows(h)
	}
	if h.IsDarwin() {
		return NewDarwin(h)
	}
	return NewPosix(h)
}
