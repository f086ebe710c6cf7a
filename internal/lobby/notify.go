package lobby

// deliver pushes a message to each target session, best effort: a failed
// write is logged and skips neither the remaining targets nor the operation
// that triggered the push. Target lists are captured under the lobby mutex;
// delivery happens after it is released, each write serialized against that
// connection's response writes by the channel's own write lock.
func (l *Lobby) deliver(targets []*Session, push Push) {
	for _, t := range targets {
		if err := t.ch.Send(push); err != nil {
			l.logger.Warn("push delivery failed",
				"type", push.Type,
				"player", t.Username,
				"error", err,
			)
		}
	}
}
