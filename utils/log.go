package utils

import (
	"fmt"
	"time"
)

// Logf writes a timestamped line to Output when Verbose is set.
func Logf(format string, args ...any) {
	if !Verbose {
		return
	}
	fmt.Fprintf(Output, "%s %s\n", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
}
