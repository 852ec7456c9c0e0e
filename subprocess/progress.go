package subprocess

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ffmpeg prints the input duration once in the stream header and then the
// encode position on each stats line. Stats lines are terminated with a
// carriage return, not a newline.
var (
	durationLine = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+(?:\.\d+)?)`)
	timeLine     = regexp.MustCompile(`time=(-?\d+):(\d+):(\d+(?:\.\d+)?)`)
)

const tailLines = 20

type parseState int

const (
	// no total known yet, time= lines cannot be interpreted
	stateNoDuration parseState = iota
	// total captured, waiting for the first stats line
	stateHasDuration
	// at least one stats line seen
	stateProgressing
)

// ProgressParser consumes an ffmpeg subprocess's stderr and tracks how far
// the encode has advanced. It also keeps the most recent output lines so
// failures can be diagnosed without persisting the full log. It is safe to
// read progress from another goroutine while ffmpeg is writing.
type ProgressParser struct {
	mu      sync.Mutex
	line    []byte
	tail    []string
	state   parseState
	total   time.Duration
	elapsed time.Duration
}

func NewProgressParser() *ProgressParser {
	return &ProgressParser{}
}

// SetTotalDuration seeds the total from a probe, when the caller already
// knows it. Durations printed by ffmpeg itself are then ignored.
func (p *ProgressParser) SetTotalDuration(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d <= 0 {
		return
	}
	p.total = d
	if p.state == stateNoDuration {
		p.state = stateHasDuration
	}
}

func (p *ProgressParser) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range data {
		if b == '\n' || b == '\r' {
			if len(p.line) > 0 {
				p.consumeLine(string(p.line))
				p.line = p.line[:0]
			}
			continue
		}
		p.line = append(p.line, b)
	}
	return len(data), nil
}

func (p *ProgressParser) consumeLine(line string) {
	if trimmed := strings.TrimSpace(line); trimmed != "" {
		p.tail = append(p.tail, trimmed)
		if len(p.tail) > tailLines {
			p.tail = p.tail[1:]
		}
	}
	switch p.state {
	case stateNoDuration:
		if m := durationLine.FindStringSubmatch(line); m != nil {
			p.total = parseTimestamp(m[1], m[2], m[3])
			p.state = stateHasDuration
		}
	case stateHasDuration, stateProgressing:
		if m := timeLine.FindStringSubmatch(line); m != nil {
			elapsed := parseTimestamp(m[1], m[2], m[3])
			if elapsed < 0 {
				elapsed = 0
			}
			p.elapsed = elapsed
			p.state = stateProgressing
		}
	}
}

// Progress returns the completion ratio, capped below 1 since only process
// exit proves completion. Zero when no total is known.
func (p *ProgressParser) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total <= 0 {
		return 0
	}
	return math.Min(float64(p.elapsed)/float64(p.total), 0.99)
}

func (p *ProgressParser) TotalMillis() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uint64(p.total / time.Millisecond)
}

func (p *ProgressParser) ElapsedMillis() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uint64(p.elapsed / time.Millisecond)
}

// Tail returns the most recent output lines, including any unterminated
// final line, newest last.
func (p *ProgressParser) Tail() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.line) > 0 {
		p.consumeLine(string(p.line))
		p.line = p.line[:0]
	}
	return strings.Join(p.tail, "\n")
}

func parseTimestamp(hours, minutes, seconds string) time.Duration {
	h, err := strconv.Atoi(strings.TrimPrefix(hours, "-"))
	if err != nil {
		return 0
	}
	m, err := strconv.Atoi(minutes)
	if err != nil {
		return 0
	}
	s, err := strconv.ParseFloat(seconds, 64)
	if err != nil {
		return 0
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s*float64(time.Second))
	if strings.HasPrefix(hours, "-") {
		return -d
	}
	return d
}
