package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"sort"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/reframelabs/reframe-api/log"
)

var Clock = clock.New()

var progressReportBuckets = []float64{0, 0.25, 0.5, 0.75, 1}

const minProgressReportInterval = 10 * time.Second
const progressCheckInterval = 1 * time.Second

// swapped out by tests
var reportFn = func(requestID, stage string, progress float64) {
	log.Log(requestID, "stage progress", "stage", stage, "progress", progress)
}

// ReportProgress logs the completion ratio of a long-running stage, at most
// once per bucket change or per report interval, whichever comes sooner. The
// stage's ratio is scaled into [startFraction, endFraction] so multi-stage
// jobs report a single monotonic number. Returns when ctx is cancelled.
// Progress is observational only; it never gates the outcome of the stage.
func ReportProgress(ctx context.Context, requestID, stage string, size uint64, getCount func() uint64, startFraction, endFraction float64) {
	if startFraction > endFraction || startFraction < 0 || endFraction < 0 || startFraction > 1 || endFraction > 1 {
		log.LogError(requestID, fmt.Sprintf("Error reporting stage progress startFraction=%f endFraction=%f", startFraction, endFraction), errors.New(""))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.LogError(requestID, fmt.Sprintf("Panic reporting progress: value=%q stack:\n%s", r, string(debug.Stack())), errors.New("panic reporting stage progress"))
		}
	}()
	if size <= 0 {
		return
	}
	var (
		timer        = Clock.Ticker(progressCheckInterval)
		lastProgress = float64(0)
		lastReport   time.Time
	)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			progress := calcProgress(getCount(), size)
			if Clock.Since(lastReport) < minProgressReportInterval &&
				progressBucket(progress) == progressBucket(lastProgress) {
				continue
			}
			reportFn(requestID, stage, scaleProgress(progress, startFraction, endFraction))
			lastReport, lastProgress = Clock.Now(), progress
		}
	}
}

// TrackOutputFileSize samples the size of the file ffmpeg is writing, as a
// liveness signal for encodes whose duration we couldn't determine.
func TrackOutputFileSize(ctx context.Context, requestID, stage, path string) {
	timer := Clock.Ticker(minProgressReportInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			log.Log(requestID, "output file size", "stage", stage, "bytes", info.Size())
		}
	}
}

func calcProgress(count, size uint64) (val float64) {
	val = float64(count) / float64(size)
	val = math.Round(val*1000) / 1000
	val = math.Min(val, 0.99)
	return
}

func scaleProgress(progress, startFraction, endFraction float64) float64 {
	return startFraction + progress*(endFraction-startFraction)
}

func progressBucket(progress float64) int {
	return sort.SearchFloat64s(progressReportBuckets, progress)
}

type Accumulator struct {
	size uint64
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) Size() uint64 {
	return atomic.LoadUint64(&a.size)
}

func (a *Accumulator) Accumulate(size uint64) {
	atomic.AddUint64(&a.size, size)
}
