package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/markdave123-py/Stratus/internal/upload"
)

// progressStep is the percentage granularity of printed progress lines.
const progressStep = 10

// console serializes output from concurrent attempts.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

var stateMessages = map[upload.State]string{
	upload.StateRequestingTarget: "requesting upload URL",
	upload.StateTransferring:     "uploading",
	upload.StateConfirming:       "registering upload",
	upload.StateSucceeded:        "upload complete",
	upload.StateFailed:           "upload failed",
}

// stateHook prints one status line per transition of an attempt for file.
func (c *console) stateHook(file string) upload.StateHook {
	return func(attemptID string, _, to upload.State) {
		if msg, ok := stateMessages[to]; ok {
			c.printf("[%s] %s (attempt %s)\n", file, msg, shortID(attemptID))
		}
	}
}

// progress prints a line each time an attempt crosses another progressStep percent.
func (c *console) progress(file string) upload.ProgressListener {
	last := -1
	return upload.ProgressFunc(func(e upload.ProgressEvent) {
		step := int(e.Percent) / progressStep
		if step == last {
			return
		}
		last = step
		c.printf("[%s] %5.1f%% %s / %s\n", file, e.Percent,
			humanize.IBytes(uint64(e.Progress.BytesSent)),
			humanize.IBytes(uint64(e.Progress.BytesTotal)))
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
