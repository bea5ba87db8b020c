// Package subprocess wires an exec.Cmd's stdout/stderr into streamwatch's
// structured logger and keeps a bounded tail of stderr for error reporting.
package subprocess

import (
	"bufio"
	"container/ring"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/streamwatch/streamwatch/log"
)

const stderrTailLines = 20

// TailBuffer keeps the last N lines written to it, safe for concurrent reads
// while the owning process is still writing.
type TailBuffer struct {
	mu   sync.Mutex
	ring *ring.Ring
}

func newTailBuffer(n int) *TailBuffer {
	return &TailBuffer{ring: ring.New(n)}
}

func (t *TailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ring.Value = line
	t.ring = t.ring.Next()
}

// String returns the captured lines in order, oldest first.
func (t *TailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var lines []string
	t.ring.Do(func(v any) {
		if v != nil {
			lines = append(lines, v.(string))
		}
	})
	return strings.Join(lines, "\n")
}

func streamToLog(jobID string, src io.Reader, stream string, tail *TailBuffer, onLine func(string)) {
	s := bufio.NewReader(src)
	for {
		line, err := s.ReadSlice('\n')
		if len(line) > 0 {
			text := strings.TrimRight(string(line), "\r\n")
			log.Log(jobID, "subprocess output", "stream", stream, "line", text)
			if tail != nil {
				tail.add(text)
			}
			if onLine != nil {
				onLine(text)
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			log.LogError(jobID, "subprocess stream read error", err, "stream", stream)
			return
		}
	}
}

// LogOutputs starts goroutines that copy cmd's stdout/stderr into the
// structured logger under jobID, and returns a buffer holding the last
// lines written to stderr (for TranscodeError's StderrTail).
func LogOutputs(jobID string, cmd *exec.Cmd) (*TailBuffer, error) {
	return LogOutputsWithStdoutHandler(jobID, cmd, nil)
}

// LogOutputsWithStdoutHandler is LogOutputs plus a callback invoked with
// every stdout line, used by capture to parse ffmpeg's `-progress pipe:1`
// output, mirroring the teacher's "parse transcoder output for a progress
// signal" idea in progress.ProgressReporter.TrackCount.
func LogOutputsWithStdoutHandler(jobID string, cmd *exec.Cmd, onStdoutLine func(string)) (*TailBuffer, error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}
	tail := newTailBuffer(stderrTailLines)
	go streamToLog(jobID, stdoutPipe, "stdout", nil, onStdoutLine)
	go streamToLog(jobID, stderrPipe, "stderr", tail, nil)
	return tail, nil
}
