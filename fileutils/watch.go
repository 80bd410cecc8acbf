package fileutils

import (
	"context"
)

// WatchFile polls a file on every tick and emits an event when its content
// hash changes. The daemon uses it to pick up config edits without inotify,
// which does not survive editors that replace the file.
func WatchFile(ctx context.Context, path string, ticker <-chan struct{}, onErr func(err error)) (chan struct{}, error) {
	events := make(chan struct{})

	lastHash, err := ComputeFileHash(path)
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker:
				hash, err := ComputeFileHash(path)
				if err != nil {
					// The file may be mid-replace; report and retry next tick.
					onErr(err)
					continue
				}
				if hash != 0 && hash != lastHash {
					lastHash = hash
					select {
					case events <- struct{}{}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return events, nil
}
