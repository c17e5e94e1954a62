package service_test

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/raven-os/albinos/internal/testutil"
	"github.com/raven-os/albinos/pkg/client"
	"github.com/raven-os/albinos/pkg/protocol"
	"github.com/raven-os/albinos/pkg/service"
)

func dial(t *testing.T, socket string) *client.Client {
	t.Helper()
	c, err := client.Dial(socket)
	if err != nil {
		t.Fatalf("dialing service: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func mustState(t *testing.T, reply protocol.Reply, err error, want protocol.State) protocol.Reply {
	t.Helper()
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if reply.State != want {
		t.Fatalf("REQUEST_STATE = %q, want %q", reply.State, want)
	}
	return reply
}

// createAndLoad creates a configuration and loads it read-write,
// returning the creation reply and the session handle.
func createAndLoad(t *testing.T, c *client.Client, name string) (protocol.Reply, uint64) {
	t.Helper()
	created, err := c.Create(name)
	mustState(t, created, err, protocol.StateSuccess)
	loaded, err := c.Load(created.ConfigKey)
	mustState(t, loaded, err, protocol.StateSuccess)
	return created, loaded.ConfigID
}

func TestUnknownRequest(t *testing.T) {
	_, socket := testutil.StartService(t)
	c := dial(t, socket)

	reply, err := c.Do(protocol.Request{Name: "HELLOBRUH"})
	mustState(t, reply, err, protocol.StateUnknownRequest)
}

func TestConfigCreate(t *testing.T) {
	_, socket := testutil.StartService(t)
	c := dial(t, socket)

	first, err := c.Create("ma_config")
	mustState(t, first, err, protocol.StateSuccess)
	if first.ConfigKey == "" || first.ReadonlyKey == "" {
		t.Error("keys should be non-empty")
	}
	if first.ConfigKey == first.ReadonlyKey {
		t.Error("the two keys should differ")
	}

	// Names are not unique; a second create succeeds with fresh keys.
	second, err := c.Create("ma_config")
	mustState(t, second, err, protocol.StateSuccess)
	if second.ConfigKey == first.ConfigKey {
		t.Error("second create should generate new keys")
	}
}

func TestConfigLoad(t *testing.T) {
	_, socket := testutil.StartService(t)
	c := dial(t, socket)

	created, err := c.Create("ma_config")
	mustState(t, created, err, protocol.StateSuccess)

	t.Run("read-write key", func(t *testing.T) {
		loaded, err := c.Load(created.ConfigKey)
		mustState(t, loaded, err, protocol.StateSuccess)
		if loaded.ConfigName != "ma_config" {
			t.Errorf("CONFIG_NAME = %q, want ma_config", loaded.ConfigName)
		}
		if loaded.ConfigID == 0 {
			t.Error("temp id should be allocated from 1")
		}
	})

	t.Run("read-only key", func(t *testing.T) {
		loaded, err := c.LoadReadonly(created.ReadonlyKey)
		mustState(t, loaded, err, protocol.StateSuccess)
		if loaded.ConfigName != "ma_config" {
			t.Errorf("CONFIG_NAME = %q, want ma_config", loaded.ConfigName)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		reply, err := c.Load("unknown_config_key")
		mustState(t, reply, err, protocol.StateUnknownKey)
	})

	t.Run("no key at all", func(t *testing.T) {
		reply, err := c.Do(protocol.Request{Name: protocol.ConfigLoad})
		mustState(t, reply, err, protocol.StateUnknownRequest)
	})

	t.Run("same config loaded twice gets distinct handles", func(t *testing.T) {
		a, err := c.Load(created.ConfigKey)
		mustState(t, a, err, protocol.StateSuccess)
		b, err := c.Load(created.ConfigKey)
		mustState(t, b, err, protocol.StateSuccess)
		if a.ConfigID == b.ConfigID {
			t.Errorf("both loads returned handle %d", a.ConfigID)
		}
	})
}

func TestConfigUnloadUnconditional(t *testing.T) {
	_, socket := testutil.StartService(t)
	c := dial(t, socket)

	reply, err := c.Unload(9999)
	mustState(t, reply, err, protocol.StateSuccess)
}

func TestSettingsFlow(t *testing.T) {
	_, socket := testutil.StartService(t)
	c := dial(t, socket)
	_, id := createAndLoad(t, c, "ma_config")

	reply, err := c.UpdateSettings(id, map[string]any{"foo": "bar", "titi": "1"})
	mustState(t, reply, err, protocol.StateSuccess)

	got, err := c.GetSetting(id, "titi")
	mustState(t, got, err, protocol.StateSuccess)
	if got.SettingValue != "1" {
		t.Errorf("SETTING_VALUE = %v, want \"1\"", got.SettingValue)
	}

	missing, err := c.GetSetting(id, "baz")
	mustState(t, missing, err, protocol.StateUnknownSetting)

	all, err := c.Settings(id)
	mustState(t, all, err, protocol.StateSuccess)
	if all.Settings["foo"] != "bar" || all.Settings["titi"] != "1" {
		t.Errorf("SETTINGS = %v", all.Settings)
	}

	names, err := c.SettingsNames(id)
	mustState(t, names, err, protocol.StateSuccess)
	sort.Strings(names.SettingsNames)
	if !reflect.DeepEqual(names.SettingsNames, []string{"foo", "titi"}) {
		t.Errorf("SETTINGS_NAMES = %v, want [foo titi]", names.SettingsNames)
	}
}

func TestSettingUpdateUnknownHandle(t *testing.T) {
	_, socket := testutil.StartService(t)
	c := dial(t, socket)

	reply, err := c.UpdateSettings(42, map[string]any{"foo": "bar"})
	mustState(t, reply, err, protocol.StateUnknownID)
}

func TestSettingRemove(t *testing.T) {
	_, socket := testutil.StartService(t)
	c := dial(t, socket)
	_, id := createAndLoad(t, c, "ma_config")

	reply, err := c.UpdateSettings(id, map[string]any{"foo": "bar"})
	mustState(t, reply, err, protocol.StateSuccess)

	reply, err = c.RemoveSetting(id, "foo")
	mustState(t, reply, err, protocol.StateSuccess)

	got, err := c.GetSetting(id, "foo")
	mustState(t, got, err, protocol.StateUnknownSetting)

	// Removal acknowledges even for handles that were never loaded.
	reply, err = c.RemoveSetting(9999, "whatever")
	mustState(t, reply, err, protocol.StateSuccess)
}

func TestConfigInclude(t *testing.T) {
	_, socket := testutil.StartService(t)
	c := dial(t, socket)

	t.Run("unloaded handles", func(t *testing.T) {
		reply, err := c.Include(42, 31)
		mustState(t, reply, err, protocol.StateUnknownID)
	})

	t.Run("repeated include is idempotent", func(t *testing.T) {
		_, id := createAndLoad(t, c, "ma_config")

		reply, err := c.Include(id, id)
		mustState(t, reply, err, protocol.StateSuccess)
		reply, err = c.Include(id, id)
		mustState(t, reply, err, protocol.StateSuccess)
	})
}

func TestAliasCommands(t *testing.T) {
	_, socket := testutil.StartService(t)
	c := dial(t, socket)
	_, id := createAndLoad(t, c, "ma_config")
	setting := "foo"
	alias := "f"

	reply, err := c.Do(protocol.Request{Name: protocol.AliasSet, ConfigID: &id, SettingName: &setting, AliasName: &alias})
	mustState(t, reply, err, protocol.StateSuccess)

	reply, err = c.Do(protocol.Request{Name: protocol.AliasUnset, ConfigID: &id, AliasName: &alias})
	mustState(t, reply, err, protocol.StateSuccess)

	// Subscribing by alias is not supported.
	reply, err = c.Do(protocol.Request{Name: protocol.SubscribeSetting, ConfigID: &id, AliasName: &alias})
	mustState(t, reply, err, protocol.StateInternalError)
}

func TestSubscriptionFanout(t *testing.T) {
	_, socket := testutil.StartService(t)
	watcher := dial(t, socket)
	writer := dial(t, socket)

	created, watcherID := createAndLoad(t, watcher, "ma_config")
	reply, err := watcher.Subscribe(watcherID, "k")
	mustState(t, reply, err, protocol.StateSuccess)

	loaded, err := writer.Load(created.ConfigKey)
	mustState(t, loaded, err, protocol.StateSuccess)
	reply, err = writer.UpdateSettings(loaded.ConfigID, map[string]any{"k": "v"})
	mustState(t, reply, err, protocol.StateSuccess)

	select {
	case ev := <-watcher.Events():
		if ev.Type != protocol.EventUpdate {
			t.Errorf("event type = %q, want UPDATE", ev.Type)
		}
		if ev.SettingName != "k" {
			t.Errorf("event setting = %q, want k", ev.SettingName)
		}
		if ev.ConfigID != watcherID {
			t.Errorf("event handle = %d, want the watcher's own %d", ev.ConfigID, watcherID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription event delivered")
	}

	// The writer is not subscribed and must not receive anything.
	select {
	case ev := <-writer.Events():
		t.Errorf("writer unexpectedly received event %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribeStopsEvents(t *testing.T) {
	_, socket := testutil.StartService(t)
	c := dial(t, socket)
	_, id := createAndLoad(t, c, "ma_config")

	reply, err := c.Subscribe(id, "k")
	mustState(t, reply, err, protocol.StateSuccess)
	reply, err = c.Unsubscribe(id, "k")
	mustState(t, reply, err, protocol.StateSuccess)
	reply, err = c.UpdateSettings(id, map[string]any{"k": "v"})
	mustState(t, reply, err, protocol.StateSuccess)

	select {
	case ev := <-c.Events():
		t.Errorf("unexpected event after unsubscribe: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRemoveSettingEmitsDelete(t *testing.T) {
	_, socket := testutil.StartService(t)
	watcher := dial(t, socket)
	writer := dial(t, socket)

	created, watcherID := createAndLoad(t, watcher, "ma_config")
	reply, err := watcher.Subscribe(watcherID, "doomed")
	mustState(t, reply, err, protocol.StateSuccess)

	loaded, err := writer.Load(created.ConfigKey)
	mustState(t, loaded, err, protocol.StateSuccess)
	reply, err = writer.UpdateSettings(loaded.ConfigID, map[string]any{"doomed": "soon"})
	mustState(t, reply, err, protocol.StateSuccess)

	// Drain the UPDATE event first.
	select {
	case <-watcher.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("no UPDATE event delivered")
	}

	reply, err = writer.RemoveSetting(loaded.ConfigID, "doomed")
	mustState(t, reply, err, protocol.StateSuccess)

	select {
	case ev := <-watcher.Events():
		if ev.Type != protocol.EventDelete {
			t.Errorf("event type = %q, want DELETE", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no DELETE event delivered")
	}
}

func TestReadOnlyHandleRejectsMutations(t *testing.T) {
	_, socket := testutil.StartService(t)
	c := dial(t, socket)

	created, err := c.Create("ma_config")
	mustState(t, created, err, protocol.StateSuccess)
	loaded, err := c.LoadReadonly(created.ReadonlyKey)
	mustState(t, loaded, err, protocol.StateSuccess)
	id := loaded.ConfigID

	reply, err := c.UpdateSettings(id, map[string]any{"k": "v"})
	mustState(t, reply, err, protocol.StateReadOnly)

	reply, err = c.RemoveSetting(id, "k")
	mustState(t, reply, err, protocol.StateReadOnly)

	reply, err = c.Include(id, id)
	mustState(t, reply, err, protocol.StateReadOnly)

	// Reads still work.
	reply, err = c.Settings(id)
	mustState(t, reply, err, protocol.StateSuccess)
}

func TestReadonlyKeyInWrongFieldStaysReadonly(t *testing.T) {
	_, socket := testutil.StartService(t)
	c := dial(t, socket)

	created, err := c.Create("ma_config")
	mustState(t, created, err, protocol.StateSuccess)

	// Presenting the read-only key as CONFIG_KEY must not escalate.
	loaded, err := c.Load(created.ReadonlyKey)
	mustState(t, loaded, err, protocol.StateSuccess)

	reply, err := c.UpdateSettings(loaded.ConfigID, map[string]any{"k": "v"})
	mustState(t, reply, err, protocol.StateReadOnly)
}

func TestSplitAndConcatenatedFrames(t *testing.T) {
	_, socket := testutil.StartService(t)

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.Close()

	// One request written in two chunks, then two requests in one write.
	frame := []byte(`{"REQUEST_NAME":"CONFIG_CREATE","CONFIG_NAME":"chunked"}`)
	if _, err := conn.Write(frame[:20]); err != nil {
		t.Fatalf("writing first chunk: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := conn.Write(frame[20:]); err != nil {
		t.Fatalf("writing second chunk: %v", err)
	}

	dec := json.NewDecoder(conn)
	var reply protocol.Reply
	if err := dec.Decode(&reply); err != nil {
		t.Fatalf("decoding reply: %v", err)
	}
	if reply.State != protocol.StateSuccess {
		t.Fatalf("REQUEST_STATE = %q, want SUCCESS", reply.State)
	}

	batch := []byte(`{"REQUEST_NAME":"CONFIG_UNLOAD","CONFIG_ID":1}{"REQUEST_NAME":"HELLOBRUH"}`)
	if _, err := conn.Write(batch); err != nil {
		t.Fatalf("writing batch: %v", err)
	}
	for _, want := range []protocol.State{protocol.StateSuccess, protocol.StateUnknownRequest} {
		if err := dec.Decode(&reply); err != nil {
			t.Fatalf("decoding batched reply: %v", err)
		}
		if reply.State != want {
			t.Errorf("REQUEST_STATE = %q, want %q", reply.State, want)
		}
	}
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	_, socket := testutil.StartService(t)

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`this is not json `)); err != nil {
		t.Fatalf("writing garbage: %v", err)
	}

	dec := json.NewDecoder(conn)
	var reply protocol.Reply
	if err := dec.Decode(&reply); err != nil {
		t.Fatalf("decoding error reply: %v", err)
	}
	if reply.State != protocol.StateInternalError {
		t.Errorf("REQUEST_STATE = %q, want INTERNAL_ERROR", reply.State)
	}

	// The connection survives and serves the next well-formed request.
	if _, err := conn.Write([]byte(`{"REQUEST_NAME":"CONFIG_CREATE","CONFIG_NAME":"after_garbage"}`)); err != nil {
		t.Fatalf("writing follow-up request: %v", err)
	}
	if err := dec.Decode(&reply); err != nil {
		t.Fatalf("decoding follow-up reply: %v", err)
	}
	if reply.State != protocol.StateSuccess {
		t.Errorf("REQUEST_STATE = %q, want SUCCESS after garbage", reply.State)
	}
}

func TestDisconnectTearsDownSubscriptions(t *testing.T) {
	_, socket := testutil.StartService(t)
	watcher := dial(t, socket)
	writer := dial(t, socket)

	created, watcherID := createAndLoad(t, watcher, "ma_config")
	reply, err := watcher.Subscribe(watcherID, "k")
	mustState(t, reply, err, protocol.StateSuccess)

	watcher.Close()
	time.Sleep(100 * time.Millisecond)

	// The update must not block or fail on the dead subscriber.
	loaded, err := writer.Load(created.ConfigKey)
	mustState(t, loaded, err, protocol.StateSuccess)
	reply, err = writer.UpdateSettings(loaded.ConfigID, map[string]any{"k": "v"})
	mustState(t, reply, err, protocol.StateSuccess)
}

func TestPersistenceAcrossRestart(t *testing.T) {
	dir, err := os.MkdirTemp("", "albinos")
	if err != nil {
		t.Fatalf("creating temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	dbPath := filepath.Join(dir, "albinos.db")

	svc, socket := testutil.StartServiceWithOptions(t, service.Options{DatabasePath: dbPath})
	c := dial(t, socket)

	created, id := createAndLoad(t, c, "survivor")
	reply, err := c.UpdateSettings(id, map[string]any{"k": "v"})
	mustState(t, reply, err, protocol.StateSuccess)

	c.Close()
	if err := svc.Close(); err != nil {
		t.Fatalf("stopping service: %v", err)
	}

	_, socket2 := testutil.StartServiceWithOptions(t, service.Options{DatabasePath: dbPath})
	c2 := dial(t, socket2)

	loaded, err := c2.Load(created.ConfigKey)
	mustState(t, loaded, err, protocol.StateSuccess)
	if loaded.ConfigName != "survivor" {
		t.Errorf("CONFIG_NAME = %q, want survivor", loaded.ConfigName)
	}
	got, err := c2.GetSetting(loaded.ConfigID, "k")
	mustState(t, got, err, protocol.StateSuccess)
	if got.SettingValue != "v" {
		t.Errorf("SETTING_VALUE = %v, want \"v\"", got.SettingValue)
	}
}
