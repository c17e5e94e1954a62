package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/raven-os/albinos/pkg/protocol"
	"github.com/raven-os/albinos/pkg/util"
)

// EventChannel is the Redis pub/sub channel the mirror publishes to.
const EventChannel = "albinos:events"

// MirrorEvent is the published form of a subscription event. Unlike the
// socket events it carries the persistent configuration id; external
// consumers have no session handle space.
type MirrorEvent struct {
	ConfigID    uint64             `json:"CONFIG_ID"`
	SettingName string             `json:"SETTING_NAME"`
	Type        protocol.EventType `json:"SUBSCRIPTION_EVENT_TYPE"`
}

// Mirror republishes setting-change events to a Redis channel so
// out-of-process consumers can follow configuration changes without
// holding a socket session.
type Mirror struct {
	client *redis.Client
}

// NewMirror returns a mirror publishing through the Redis server at addr.
func NewMirror(addr string) *Mirror {
	return &Mirror{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Publish sends one event, fire and forget. Failures are logged at debug
// level; the mirror never affects request handling.
func (m *Mirror) Publish(configID uint64, setting string, typ protocol.EventType) {
	payload, err := json.Marshal(MirrorEvent{
		ConfigID:    configID,
		SettingName: setting,
		Type:        typ,
	})
	if err != nil {
		util.Debugf("mirror: marshaling event: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.client.Publish(ctx, EventChannel, payload).Err(); err != nil {
		util.Debugf("mirror: publishing event: %v", err)
	}
}

// Close releases the Redis connection.
func (m *Mirror) Close() error {
	return m.client.Close()
}
