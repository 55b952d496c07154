// Package bridge fans relayed frames out to peer server instances through
// Redis pub/sub, one channel per document. Presence lists are not bridged:
// each instance computes its own from locally connected sessions.
package bridge

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "textsync:doc:"

// DeliverFunc hands a frame from another instance to the local room.
type DeliverFunc func(documentID string, frame []byte)

type Bridge struct {
	rdb        *redis.Client
	instanceID string
	deliver    DeliverFunc
	pubsub     *redis.PubSub
	wg         sync.WaitGroup
}

// envelope wraps a published frame with its origin so an instance can skip
// frames it published itself.
type envelope struct {
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

func New(rdb *redis.Client, instanceID string, deliver DeliverFunc) *Bridge {
	return &Bridge{
		rdb:        rdb,
		instanceID: instanceID,
		deliver:    deliver,
	}
}

// Start subscribes to all document channels and forwards remote frames until
// Stop is called.
func (b *Bridge) Start(ctx context.Context) {
	b.pubsub = b.rdb.PSubscribe(ctx, channelPrefix+"*")

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range b.pubsub.Channel() {
			b.dispatch(msg.Channel, []byte(msg.Payload))
		}
	}()

	log.Printf("Relay bridge started (instance %s)", b.instanceID)
}

func (b *Bridge) Stop() {
	if b.pubsub != nil {
		b.pubsub.Close()
	}
	b.wg.Wait()
	log.Println("Relay bridge stopped")
}

func (b *Bridge) dispatch(channel string, payload []byte) {
	documentID := strings.TrimPrefix(channel, channelPrefix)
	if documentID == "" || documentID == channel {
		return
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Printf("Relay bridge: dropping malformed frame on %s: %v", channel, err)
		return
	}
	if env.Origin == b.instanceID {
		return
	}

	b.deliver(documentID, env.Frame)
}

// Publish sends a frame to the document's channel. Best-effort: publish
// failures are logged, local delivery has already happened.
func (b *Bridge) Publish(documentID string, frame []byte) {
	payload, err := json.Marshal(&envelope{Origin: b.instanceID, Frame: frame})
	if err != nil {
		log.Printf("Relay bridge: failed to encode frame for %s: %v", documentID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.rdb.Publish(ctx, channelPrefix+documentID, payload).Err(); err != nil {
		log.Printf("Relay bridge: publish to %s failed: %v", documentID, err)
	}
}
