// Package gochannel provides the in-memory progress channel used by single
// process runs and tests.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Config sizes the in-memory pub/sub.
type Config struct {
	Buffer int64

	// Blocking makes Publish wait until subscribers ack, which keeps event
	// order observable in tests.
	Blocking bool
}

func DefaultConfig() Config {
	return Config{Buffer: 1000}
}

// CreateChannel returns one GoChannel acting as both publisher and subscriber.
func CreateChannel(logger watermill.LoggerAdapter, cfg Config) (*gochannel.GoChannel, *gochannel.GoChannel) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            cfg.Buffer,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: cfg.Blocking,
		},
		logger,
	)

	return pubSub, pubSub
}
