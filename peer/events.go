/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package peer

// ConnectionListener observes connection lifecycle transitions. Callbacks
// run on the service thread and must not block.
type ConnectionListener interface {
	OnOpened(c *Connection)
	OnClosed(c *Connection)
	OnError(c *Connection, cause error)
}

// ListenerFuncs adapts plain functions to ConnectionListener; nil fields
// are skipped.
type ListenerFuncs struct {
	Opened func(c *Connection)
	Closed func(c *Connection)
	Error  func(c *Connection, cause error)
}

func (l ListenerFuncs) OnOpened(c *Connection) {
	if l.Opened != nil {
		l.Opened(c)
	}
}

func (l ListenerFuncs) OnClosed(c *Connection) {
	if l.Closed != nil {
		l.Closed(c)
	}
}

func (l ListenerFuncs) OnError(c *Connection, cause error) {
	if l.Error != nil {
		l.Error(c, cause)
	}
}
