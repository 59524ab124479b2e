package health

import "context"

// DBPinger checks store connectivity.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// WatcherStatus reports criteria feed liveness.
type WatcherStatus interface {
	FeedOK() bool
}

// QueueStatus reports evaluation queue headroom.
type QueueStatus interface {
	Healthy() bool
}
