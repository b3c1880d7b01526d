// Package progressui implements coordinator.Listener, printing user-facing
// status lines through a plain logger and, unless suppressed, driving a
// github.com/schollz/progressbar/v3 bar alongside them.
package progressui

import (
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// Listener is the CLI's coordinator.Listener implementation. Status lines
// go through ui; failures go through errOut so they land on stderr even
// when ui is bound to stdout.
type Listener struct {
	ui      *logrus.Logger
	errOut  *logrus.Logger
	bar     *progressbar.ProgressBar
	showBar bool

	totalBytes int64
}

// New constructs a Listener. The bar is created lazily on the first chunk
// written and sized unbounded, since total size isn't known to the
// listener up front.
func New(ui *logrus.Logger, errOut *logrus.Logger, showBar bool) *Listener {
	return &Listener{ui: ui, errOut: errOut, showBar: showBar}
}

func (l *Listener) OnStart(connections int) {
	if connections > 1 {
		l.ui.Infof("Downloading using %d connections...", connections)
	} else {
		l.ui.Info("Downloading...")
	}
}

func (l *Listener) OnWorkerStart(workerID int, rangeStart, rangeEnd int64, url string) {
	l.ui.Infof("[%d] Start downloading range (%d - %d) from:\n%s", workerID, rangeStart, rangeEnd, url)
}

func (l *Listener) OnWorkerDone(workerID int) {
	l.ui.Infof("[%d] Finished downloading", workerID)
}

func (l *Listener) OnChunkWritten(bytesWritten int64, _ int) {
	l.totalBytes += bytesWritten

	if !l.showBar {
		return
	}
	if l.bar == nil {
		l.bar = progressbar.DefaultBytes(-1, "downloading")
	}
	_ = l.bar.Add64(bytesWritten)
}

func (l *Listener) OnProgress(percent int) {
	l.ui.Infof("Downloaded %d%%", percent)
}

func (l *Listener) OnComplete() {
	if l.bar != nil {
		_ = l.bar.Finish()
	}
	l.ui.Info("Download succeeded.")
	l.ui.Infof("%s written", humanize.Bytes(uint64(l.totalBytes)))
}

func (l *Listener) OnFailed(err error) {
	l.errOut.Error(err.Error())
	l.errOut.Error("Download failed.")
}
