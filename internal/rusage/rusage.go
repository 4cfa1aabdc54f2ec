// Package rusage implements the timing sample used by the `time` prefix
// (SPEC_FULL.md §4: "time prefix timing report"), a feature present in
// original_source/src/parse_execution.rs but only mentioned in passing by
// the distilled spec. Grounded on the standard library's
// syscall.Getrusage, the closest Go analogue to the original's platform
// timing call.
package rusage

import (
	"syscall"
	"time"
)

// Sample is a point-in-time reading of wall-clock and CPU time.
type Sample struct {
	Wall time.Time
	User time.Duration
	Sys  time.Duration
}

// Now takes a Sample of the calling process's own usage (RUSAGE_SELF) plus
// its already-reaped children (RUSAGE_CHILDREN combined in), matching how
// the original accounts for a job's forked children.
func Now() Sample {
	var self, children syscall.Rusage

	_ = syscall.Getrusage(syscall.RUSAGE_SELF, &self)
	_ = syscall.Getrusage(syscall.RUSAGE_CHILDREN, &children)

	return Sample{
		Wall: time.Now(),
		User: timevalToDuration(self.Utime) + timevalToDuration(children.Utime),
		Sys:  timevalToDuration(self.Stime) + timevalToDuration(children.Stime),
	}
}

func timevalToDuration(tv syscall.Timeval) time.Duration {
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}

// Report is the fixed-column report printed to stderr after a `time`d job
// completes.
type Report struct {
	Wall time.Duration
	User time.Duration
	Sys  time.Duration
}

// Since computes a Report from a Sample taken before the job ran to one
// taken after.
func Since(start, end Sample) Report {
	return Report{
		Wall: end.Wall.Sub(start.Wall),
		User: end.User - start.User,
		Sys:  end.Sys - start.Sys,
	}
}
