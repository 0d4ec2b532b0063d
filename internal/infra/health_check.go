package infra

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

const executableCheckInterval = 5 * time.Second

// WatchFile emits once on the returned channel when the file's modification
// time changes from its value at call time, then stops watching. Stat
// failures are retried on the next tick, so a transient error neither ends
// the watch nor fires a false signal.
func WatchFile(ctx context.Context, path string, interval time.Duration) <-chan struct{} {
	ch := make(chan struct{}, 1)
	go func() {
		var baseline time.Time
		if stat, err := os.Stat(path); err == nil {
			baseline = stat.ModTime()
		} else {
			log.WithError(err).WithField("path", path).Warn("cant stat watched file")
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stat, err := os.Stat(path)
				if err != nil {
					log.WithError(err).WithField("path", path).Warn("cant stat watched file")
					continue
				}
				if baseline.IsZero() {
					baseline = stat.ModTime()
					continue
				}
				if !baseline.Equal(stat.ModTime()) {
					ch <- struct{}{}
					return
				}
			}
		}
	}()
	return ch
}

// MonitorExecutable signals once the running binary is replaced on disk, so
// the process can exit and let the supervisor restart it with the new build.
// When the executable path cannot be resolved the returned channel simply
// never fires.
func MonitorExecutable(ctx context.Context) <-chan struct{} {
	exeFilename, err := os.Executable()
	if err != nil {
		log.WithError(err).Warn("cant resolve executable path for monitor")
		return make(chan struct{})
	}
	return WatchFile(ctx, exeFilename, executableCheckInterval)
}
