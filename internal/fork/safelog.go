package fork

import (
	"os"
	"strconv"
)

// safeLog writes a fixed-shape diagnostic directly via write(2), with no
// allocation beyond the strings the caller passes in (integers are
// formatted beforehand with strconv.Itoa via itoa), mirroring the dedicated formatter the post-fork region uses
// instead of the ambient logger (spec §4.3; grounded on
// original_source/src/fork_exec/flog_safe.rs's FLOG_SAFE!). Go cannot
// guarantee a hand-rolled string-builder is allocation-free, so this is a
// best-effort analogue: it exists to keep
// the *call sites* that need it free of the ambient logrus logger, which
// does lock and allocate.
func safeLog(parts ...string) {
	var buf [256]byte
	n := 0

	for _, p := range parts {
		n += copy(buf[n:], p)
		if n >= len(buf)-1 {
			break
		}
	}

	buf[n] = '\n'
	n++

	_, _ = os.Stderr.Write(buf[:n])
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
