package service

import (
	"github.com/raven-os/albinos/pkg/protocol"
)

// fanout walks every active session after a mutation of configID and
// delivers one event per (subscriber, changed setting). Each subscriber
// sees its own handle for the configuration, never another session's.
// Delivery is best effort: no acknowledgment, no retry.
//
// Callers hold the dispatch lock, so fan-out runs before any other
// handler can observe the mutation.
func (s *Service) fanout(configID uint64, settings []string, typ protocol.EventType) {
	for _, c := range s.conns {
		tempID, ok := c.sess.TempID(configID)
		if !ok {
			continue
		}
		for _, name := range settings {
			if !c.sess.IsSubscribed(configID, name) {
				continue
			}
			c.log.WithField("setting", name).Debug("delivering subscription event")
			c.send(protocol.Event{
				ConfigID:    tempID,
				SettingName: name,
				Type:        typ,
			})
		}
	}

	if s.mirror != nil {
		for _, name := range settings {
			s.mirror.Publish(configID, name, typ)
		}
	}
}
