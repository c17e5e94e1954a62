package service

import (
	"encoding/json"
	"errors"

	"github.com/raven-os/albinos/pkg/protocol"
	"github.com/raven-os/albinos/pkg/session"
	"github.com/raven-os/albinos/pkg/util"
)

type handlerFunc func(s *Service, c *connection, req *protocol.Request)

// handlers routes REQUEST_NAME to its handler.
var handlers = map[string]handlerFunc{
	protocol.ConfigCreate:           (*Service).createConfig,
	protocol.ConfigLoad:             (*Service).loadConfig,
	protocol.ConfigUnload:           (*Service).unloadConfig,
	protocol.ConfigInclude:          (*Service).includeConfig,
	protocol.SettingUpdate:          (*Service).updateSetting,
	protocol.SettingRemove:          (*Service).removeSetting,
	protocol.SettingGet:             (*Service).getSetting,
	protocol.ConfigGetSettings:      (*Service).getAllSettings,
	protocol.ConfigGetSettingsNames: (*Service).getSettingsNames,
	protocol.AliasSet:               (*Service).setAlias,
	protocol.AliasUnset:             (*Service).unsetAlias,
	protocol.SubscribeSetting:       (*Service).subscribeSetting,
	protocol.UnsubscribeSetting:     (*Service).unsubscribeSetting,
}

// handle parses one frame and runs its handler under the dispatch lock.
// Every failure becomes a reply; nothing propagates to the read loop and
// the connection stays open.
func (s *Service) handle(c *connection, raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("handler panic: %v", r)
			c.send(protocol.StateAnswer{State: protocol.StateInternalError})
		}
	}()

	var req protocol.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		c.log.Warnf("malformed envelope: %v", err)
		c.send(protocol.StateAnswer{State: protocol.StateInternalError})
		return
	}

	handler, ok := handlers[req.Name]
	if !ok {
		c.log.WithField("request", req.Name).Warn("unknown request")
		c.send(protocol.StateAnswer{State: protocol.StateUnknownRequest})
		return
	}
	c.log.WithField("request", req.Name).Debug("dispatching")
	handler(s, c, &req)
}

// storeState maps a store failure to the wire state. Unknown persistent
// ids surface as DB_ERROR everywhere except CONFIG_INCLUDE, which handles
// them itself.
func storeState(err error) protocol.State {
	if errors.Is(err, util.ErrUnknownKey) {
		return protocol.StateUnknownKey
	}
	return protocol.StateDBError
}

// loadedHandle resolves a request's CONFIG_ID to the persistent id,
// replying UNKNOWN_ID itself when the handle is missing.
func (c *connection) loadedHandle(req *protocol.Request) (tempID, dbID uint64, ok bool) {
	if req.ConfigID != nil {
		if id, loaded := c.sess.DBID(*req.ConfigID); loaded {
			return *req.ConfigID, id, true
		}
	}
	c.send(protocol.StateAnswer{State: protocol.StateUnknownID})
	return 0, 0, false
}

// writableHandle is loadedHandle plus the read-only check for mutating
// commands.
func (c *connection) writableHandle(req *protocol.Request) (tempID, dbID uint64, ok bool) {
	tempID, dbID, ok = c.loadedHandle(req)
	if !ok {
		return 0, 0, false
	}
	if perm, _ := c.sess.Permission(tempID); perm == session.ReadOnly {
		c.send(protocol.StateAnswer{State: protocol.StateReadOnly})
		return 0, 0, false
	}
	return tempID, dbID, true
}

func (s *Service) createConfig(c *connection, req *protocol.Request) {
	result, err := s.store.CreateConfig(req.ConfigName)
	if err != nil {
		c.log.Errorf("creating config %q: %v", req.ConfigName, err)
		c.send(protocol.CreateAnswer{State: protocol.StateDBError})
		return
	}
	c.send(protocol.CreateAnswer{
		ConfigKey:   result.ConfigKey,
		ReadonlyKey: result.ReadonlyKey,
		State:       protocol.StateSuccess,
	})
}

func (s *Service) loadConfig(c *connection, req *protocol.Request) {
	var key string
	perm := session.ReadWrite
	switch {
	case req.ConfigKey != nil:
		key = *req.ConfigKey
	case req.ReadonlyKey != nil:
		key = *req.ReadonlyKey
		perm = session.ReadOnly
	default:
		c.send(protocol.StateAnswer{State: protocol.StateUnknownRequest})
		return
	}

	id, readonly, err := s.store.GetConfigIDByKey(key)
	if err != nil {
		c.send(protocol.StateAnswer{State: storeState(err)})
		return
	}
	// The permission follows the key that actually matched, whatever
	// field the client put it in.
	if readonly {
		perm = session.ReadOnly
	}

	name, err := s.store.GetConfigName(id)
	if err != nil {
		c.send(protocol.StateAnswer{State: protocol.StateDBError})
		return
	}

	tempID := c.sess.InsertDBID(id, perm)
	c.log.WithFields(map[string]interface{}{"config_id": id, "temp_id": tempID}).
		Debugf("config %q loaded %s", name, perm)
	c.send(protocol.LoadAnswer{
		ConfigName: name,
		ConfigID:   tempID,
		State:      protocol.StateSuccess,
	})
}

func (s *Service) unloadConfig(c *connection, req *protocol.Request) {
	if req.ConfigID != nil {
		c.sess.RemoveTempID(*req.ConfigID)
	}
	c.send(protocol.StateAnswer{State: protocol.StateSuccess})
}

func (s *Service) includeConfig(c *connection, req *protocol.Request) {
	if req.Src == nil || !c.sess.HasLoaded(*req.Src) {
		c.send(protocol.StateAnswer{State: protocol.StateUnknownID})
		return
	}
	_, dstID, ok := c.writableHandle(req)
	if !ok {
		return
	}
	srcID, _ := c.sess.DBID(*req.Src)

	if _, err := s.store.IncludeConfig(dstID, srcID); err != nil {
		if errors.Is(err, util.ErrUnknownID) {
			c.send(protocol.StateAnswer{State: protocol.StateUnknownID})
		} else {
			c.send(protocol.StateAnswer{State: protocol.StateDBError})
		}
		return
	}
	c.send(protocol.StateAnswer{State: protocol.StateSuccess})
}

func (s *Service) updateSetting(c *connection, req *protocol.Request) {
	_, dbID, ok := c.writableHandle(req)
	if !ok {
		return
	}

	doc, err := s.store.GetConfig(dbID)
	if err != nil {
		c.send(protocol.StateAnswer{State: protocol.StateDBError})
		return
	}
	changed := make([]string, 0, len(req.SettingsToUpdate))
	for name, value := range req.SettingsToUpdate {
		doc.Settings[name] = value
		changed = append(changed, name)
	}
	if err := s.store.UpdateConfig(dbID, doc); err != nil {
		c.send(protocol.StateAnswer{State: protocol.StateDBError})
		return
	}

	c.send(protocol.StateAnswer{State: protocol.StateSuccess})
	s.fanout(dbID, changed, protocol.EventUpdate)
}

func (s *Service) removeSetting(c *connection, req *protocol.Request) {
	if req.ConfigID == nil || !c.sess.HasLoaded(*req.ConfigID) {
		// Compatibility: removal on an unloaded handle still acknowledges.
		c.send(protocol.StateAnswer{State: protocol.StateSuccess})
		return
	}
	if req.SettingName == nil {
		c.send(protocol.StateAnswer{State: protocol.StateSuccess})
		return
	}
	if perm, _ := c.sess.Permission(*req.ConfigID); perm == session.ReadOnly {
		c.send(protocol.StateAnswer{State: protocol.StateReadOnly})
		return
	}

	c.send(protocol.StateAnswer{State: protocol.StateSuccess})

	dbID, _ := c.sess.DBID(*req.ConfigID)
	doc, err := s.store.GetConfig(dbID)
	if err != nil {
		c.log.Errorf("removing setting %q: %v", *req.SettingName, err)
		return
	}
	delete(doc.Settings, *req.SettingName)
	if err := s.store.UpdateConfig(dbID, doc); err != nil {
		c.log.Errorf("removing setting %q: %v", *req.SettingName, err)
		return
	}
	s.fanout(dbID, []string{*req.SettingName}, protocol.EventDelete)
}

func (s *Service) getSetting(c *connection, req *protocol.Request) {
	_, dbID, ok := c.loadedHandle(req)
	if !ok {
		return
	}
	doc, err := s.store.GetConfig(dbID)
	if err != nil {
		c.send(protocol.StateAnswer{State: protocol.StateDBError})
		return
	}
	if req.SettingName == nil {
		c.send(protocol.StateAnswer{State: protocol.StateUnknownSetting})
		return
	}
	value, ok := doc.Settings[*req.SettingName]
	if !ok {
		c.send(protocol.StateAnswer{State: protocol.StateUnknownSetting})
		return
	}
	c.send(protocol.SettingGetAnswer{Value: value, State: protocol.StateSuccess})
}

func (s *Service) getAllSettings(c *connection, req *protocol.Request) {
	_, dbID, ok := c.loadedHandle(req)
	if !ok {
		return
	}
	doc, err := s.store.GetConfig(dbID)
	if err != nil {
		c.send(protocol.StateAnswer{State: protocol.StateDBError})
		return
	}
	c.send(protocol.SettingsAnswer{Settings: doc.Settings, State: protocol.StateSuccess})
}

func (s *Service) getSettingsNames(c *connection, req *protocol.Request) {
	_, dbID, ok := c.loadedHandle(req)
	if !ok {
		return
	}
	doc, err := s.store.GetConfig(dbID)
	if err != nil {
		c.send(protocol.StateAnswer{State: protocol.StateDBError})
		return
	}
	c.send(protocol.SettingsNamesAnswer{Names: doc.SettingNames(), State: protocol.StateSuccess})
}

// Aliases are acknowledged but not implemented; the wire contract keeps
// the commands.
func (s *Service) setAlias(c *connection, req *protocol.Request) {
	c.send(protocol.StateAnswer{State: protocol.StateSuccess})
}

func (s *Service) unsetAlias(c *connection, req *protocol.Request) {
	c.send(protocol.StateAnswer{State: protocol.StateSuccess})
}

func (s *Service) subscribeSetting(c *connection, req *protocol.Request) {
	tempID, _, ok := c.loadedHandle(req)
	if !ok {
		return
	}
	if req.SettingName == nil {
		// Alias subscriptions are not implemented.
		c.send(protocol.StateAnswer{State: protocol.StateInternalError})
		return
	}
	c.sess.Subscribe(tempID, *req.SettingName)
	c.send(protocol.StateAnswer{State: protocol.StateSuccess})
}

func (s *Service) unsubscribeSetting(c *connection, req *protocol.Request) {
	tempID, _, ok := c.loadedHandle(req)
	if !ok {
		return
	}
	if req.SettingName == nil {
		c.send(protocol.StateAnswer{State: protocol.StateInternalError})
		return
	}
	c.sess.Unsubscribe(tempID, *req.SettingName)
	c.send(protocol.StateAnswer{State: protocol.StateSuccess})
}
