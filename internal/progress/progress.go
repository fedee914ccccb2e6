// Package progress is an optional external collaborator (spec.md §6):
// a console/log reporter driven by a Session's OnProgress callback.
// Nothing in internal/session, internal/arq, or internal/transfer
// imports this package, and none of the cmd/* binaries constructs a
// Reporter.
package progress

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"rdtxfer/internal/logging"
)

// Stats holds the running totals for one transfer.
type Stats struct {
	TotalBytes       int64
	TransferredBytes atomic.Int64
	StartTime        time.Time
	SessionID        string
	Filename         string
}

// Reporter periodically renders Stats to the console and, every ten
// seconds, to the log.
type Reporter struct {
	log         *logrus.Logger
	stats       *Stats
	ticker      *time.Ticker
	done        chan struct{}
	showConsole bool
}

// NewReporter constructs a Reporter. showConsole controls whether a
// progress bar is drawn on stdout; log progress lines are always emitted.
func NewReporter(log *logrus.Logger, stats *Stats, showConsole bool) *Reporter {
	return &Reporter{
		log:         log,
		stats:       stats,
		ticker:      time.NewTicker(1 * time.Second),
		done:        make(chan struct{}),
		showConsole: showConsole,
	}
}

// Start begins the reporting loop in its own goroutine.
func (r *Reporter) Start() {
	go r.reportLoop()
}

// Stop halts reporting and, if a console bar was being drawn, terminates
// its line.
func (r *Reporter) Stop() {
	r.ticker.Stop()
	close(r.done)
	if r.showConsole {
		fmt.Println()
	}
}

// OnProgress is suitable for assignment to session.Session.OnProgress.
func (r *Reporter) OnProgress(delta int64) {
	r.stats.TransferredBytes.Add(delta)
}

func (r *Reporter) reportLoop() {
	var lastTransferred int64
	lastUpdateTime := time.Now()

	const speedWindowSize = 5
	speedHistory := make([]float64, 0, speedWindowSize)

	for {
		select {
		case <-r.ticker.C:
			r.updateProgress(&lastTransferred, &lastUpdateTime, &speedHistory, speedWindowSize)
		case <-r.done:
			return
		}
	}
}

func (r *Reporter) updateProgress(lastTransferred *int64, lastUpdateTime *time.Time, speedHistory *[]float64, window int) {
	now := time.Now()
	transferred := r.stats.TransferredBytes.Load()
	var percent float64
	if r.stats.TotalBytes > 0 {
		percent = float64(transferred) / float64(r.stats.TotalBytes) * 100
	}

	timeDiff := now.Sub(*lastUpdateTime).Seconds()
	byteDiff := transferred - *lastTransferred
	var currentSpeed float64
	if timeDiff > 0 {
		currentSpeed = float64(byteDiff) / 1024 / 1024 / timeDiff
	}

	*speedHistory = append(*speedHistory, currentSpeed)
	if len(*speedHistory) > window {
		*speedHistory = (*speedHistory)[1:]
	}

	var avgSpeed float64
	for _, s := range *speedHistory {
		avgSpeed += s
	}
	if len(*speedHistory) > 0 {
		avgSpeed /= float64(len(*speedHistory))
	}

	eta := "calculating..."
	if avgSpeed > 0.1 && r.stats.TotalBytes > 0 {
		remainingBytes := r.stats.TotalBytes - transferred
		remainingTime := float64(remainingBytes) / (avgSpeed * 1024 * 1024)
		switch {
		case remainingTime < 60:
			eta = fmt.Sprintf("%.0f sec", remainingTime)
		case remainingTime < 3600:
			eta = fmt.Sprintf("%.1f min", remainingTime/60)
		default:
			eta = fmt.Sprintf("%.1f hr", remainingTime/3600)
		}
	}

	if int(now.Sub(r.stats.StartTime).Seconds())%10 == 0 {
		logging.LogTransferProgress(r.log, r.stats.SessionID, r.stats.Filename, transferred, r.stats.TotalBytes)
	}

	if r.showConsole {
		r.showConsoleProgress(percent, transferred, avgSpeed, eta)
	}

	*lastTransferred = transferred
	*lastUpdateTime = now
}

func (r *Reporter) showConsoleProgress(percent float64, transferred int64, avgSpeed float64, eta string) {
	const barWidth = 30
	completedWidth := int(float64(barWidth) * percent / 100)
	bar := strings.Repeat("█", completedWidth) + strings.Repeat("░", barWidth-completedWidth)

	fmt.Printf("\r[%s] %.1f%% (%.2f/%.2f MB) at %.2f MB/s ETA: %s",
		bar,
		percent,
		float64(transferred)/1024/1024,
		float64(r.stats.TotalBytes)/1024/1024,
		avgSpeed,
		eta)
}
