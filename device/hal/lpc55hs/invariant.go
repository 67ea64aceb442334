package lpc55hs

import (
	"fmt"
	"strings"

	"github.com/ardnew/usbhs/pkg"
)

// invariant reports a broken controller invariant. Debug builds
// (-tags usbhsdebug) panic; release builds log and carry on.
func invariant(ok bool, msg string, args ...any) {
	if ok {
		return
	}
	if debugInvariants {
		panic(invariantMessage(msg, args...))
	}
	pkg.LogError(pkg.ComponentBus, "invariant violated: "+msg, args...)
}

// invariantMessage formats msg and its key/value args the way slog's text
// handler would, minus quoting.
func invariantMessage(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString("lpc55hs: ")
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			fmt.Fprintf(&b, " !BADKEY=%v", args[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}
