// Package gochannel provides the in-process watermill pub/sub used by single-node deployments and tests.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const outputBuffer = 256

// CreateChannel returns one GoChannel as both publisher and subscriber.
// Events published while nobody is subscribed are dropped, and publishing never waits for an ack.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: outputBuffer}, logger)

	return pubSub, pubSub, nil
}
