// Package client implements a Go client for the albinos wire protocol.
//
// A Client owns one socket connection. Requests are answered in order;
// subscription events arrive on the same stream and are routed to the
// Events channel, so a caller can issue requests while watching settings.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/raven-os/albinos/pkg/protocol"
)

// ErrTimeout is returned when the service does not answer in time.
var ErrTimeout = errors.New("timed out waiting for reply")

// ErrClosed is returned on use after Close or after the service hung up.
var ErrClosed = errors.New("connection closed")

// DefaultTimeout bounds the wait for a single reply.
const DefaultTimeout = 5 * time.Second

// Client is a connection to the albinos service.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex // one in-flight request at a time
	replies chan protocol.Reply
	events  chan protocol.Event
	done    chan struct{}

	// Timeout bounds each request/reply exchange.
	Timeout time.Duration
}

// Dial connects to the service socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", socketPath, err)
	}
	c := &Client{
		conn:    conn,
		replies: make(chan protocol.Reply),
		events:  make(chan protocol.Event, 16),
		done:    make(chan struct{}),
		Timeout: DefaultTimeout,
	}
	go c.readLoop()
	return c, nil
}

// Events returns the channel of unsolicited subscription events. The
// channel closes when the connection dies.
func (c *Client) Events() <-chan protocol.Event {
	return c.events
}

// Close hangs up.
func (c *Client) Close() error {
	return c.conn.Close()
}

// readLoop splits the inbound stream into replies and events. A frame
// carrying SUBSCRIPTION_EVENT_TYPE is an event, anything else answers
// the pending request.
func (c *Client) readLoop() {
	defer close(c.events)
	defer close(c.done)

	dec := json.NewDecoder(c.conn)
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return
		}

		var probe struct {
			Type protocol.EventType `json:"SUBSCRIPTION_EVENT_TYPE"`
		}
		if err := json.Unmarshal(raw, &probe); err == nil && probe.Type != "" {
			var ev protocol.Event
			if err := json.Unmarshal(raw, &ev); err == nil {
				select {
				case c.events <- ev:
				default: // slow consumer, drop
				}
			}
			continue
		}

		var reply protocol.Reply
		if err := json.Unmarshal(raw, &reply); err != nil {
			continue
		}
		select {
		case c.replies <- reply:
		case <-time.After(c.Timeout):
		}
	}
}

// Do sends req and waits for the matching reply.
func (c *Client) Do(req protocol.Request) (protocol.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(req)
	if err != nil {
		return protocol.Reply{}, err
	}
	if _, err := c.conn.Write(data); err != nil {
		return protocol.Reply{}, fmt.Errorf("writing request: %w", err)
	}

	select {
	case reply := <-c.replies:
		return reply, nil
	case <-c.done:
		return protocol.Reply{}, ErrClosed
	case <-time.After(c.Timeout):
		return protocol.Reply{}, ErrTimeout
	}
}

// Create creates a configuration and returns both access keys.
func (c *Client) Create(name string) (protocol.Reply, error) {
	return c.Do(protocol.Request{Name: protocol.ConfigCreate, ConfigName: name})
}

// Load loads a configuration with its read-write key.
func (c *Client) Load(key string) (protocol.Reply, error) {
	return c.Do(protocol.Request{Name: protocol.ConfigLoad, ConfigKey: &key})
}

// LoadReadonly loads a configuration with its read-only key.
func (c *Client) LoadReadonly(key string) (protocol.Reply, error) {
	return c.Do(protocol.Request{Name: protocol.ConfigLoad, ReadonlyKey: &key})
}

// Unload releases a handle.
func (c *Client) Unload(tempID uint64) (protocol.Reply, error) {
	return c.Do(protocol.Request{Name: protocol.ConfigUnload, ConfigID: &tempID})
}

// Include adds the configuration behind src to the includes of the one
// behind dst.
func (c *Client) Include(dst, src uint64) (protocol.Reply, error) {
	return c.Do(protocol.Request{Name: protocol.ConfigInclude, ConfigID: &dst, Src: &src})
}

// UpdateSettings writes the given settings on the configuration.
func (c *Client) UpdateSettings(tempID uint64, settings map[string]any) (protocol.Reply, error) {
	return c.Do(protocol.Request{Name: protocol.SettingUpdate, ConfigID: &tempID, SettingsToUpdate: settings})
}

// RemoveSetting deletes one setting.
func (c *Client) RemoveSetting(tempID uint64, name string) (protocol.Reply, error) {
	return c.Do(protocol.Request{Name: protocol.SettingRemove, ConfigID: &tempID, SettingName: &name})
}

// GetSetting reads one setting.
func (c *Client) GetSetting(tempID uint64, name string) (protocol.Reply, error) {
	return c.Do(protocol.Request{Name: protocol.SettingGet, ConfigID: &tempID, SettingName: &name})
}

// Settings reads the whole settings object.
func (c *Client) Settings(tempID uint64) (protocol.Reply, error) {
	return c.Do(protocol.Request{Name: protocol.ConfigGetSettings, ConfigID: &tempID})
}

// SettingsNames reads the setting names.
func (c *Client) SettingsNames(tempID uint64) (protocol.Reply, error) {
	return c.Do(protocol.Request{Name: protocol.ConfigGetSettingsNames, ConfigID: &tempID})
}

// Subscribe registers for change events on one setting.
func (c *Client) Subscribe(tempID uint64, name string) (protocol.Reply, error) {
	return c.Do(protocol.Request{Name: protocol.SubscribeSetting, ConfigID: &tempID, SettingName: &name})
}

// Unsubscribe removes a subscription.
func (c *Client) Unsubscribe(tempID uint64, name string) (protocol.Reply, error) {
	return c.Do(protocol.Request{Name: protocol.UnsubscribeSetting, ConfigID: &tempID, SettingName: &name})
}
