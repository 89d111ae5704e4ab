package upload

import (
	"io"
)

// TransferProgress is a snapshot of the byte transfer for one attempt.
type TransferProgress struct {
	BytesSent  int64
	BytesTotal int64
}

// Report converts progress into a percentage clamped to [0,100].
func Report(p TransferProgress) float64 {
	if p.BytesTotal <= 0 {
		return 0
	}
	pct := float64(p.BytesSent) / float64(p.BytesTotal) * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// Percent is shorthand for Report(p).
func (p TransferProgress) Percent() float64 {
	return Report(p)
}

// ProgressEvent is delivered to listeners while an attempt is transferring.
type ProgressEvent struct {
	AttemptID string
	Progress  TransferProgress
	Percent   float64
}

// ProgressListener receives progress events. It may be called any number of times,
// including zero, and always from the goroutine running the attempt.
type ProgressListener interface {
	OnProgress(ProgressEvent)
}

// ProgressFunc adapts a function to ProgressListener.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) OnProgress(e ProgressEvent) {
	f(e)
}

// progressReader reports cumulative bytes as the transport consumes the body.
type progressReader struct {
	reader   io.Reader
	total    int64
	sent     int64
	onUpdate func(TransferProgress)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.sent += int64(n)
		if pr.onUpdate != nil {
			pr.onUpdate(TransferProgress{BytesSent: pr.sent, BytesTotal: pr.total})
		}
	}
	return n, err
}
