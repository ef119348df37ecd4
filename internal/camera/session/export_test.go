// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import "github.com/ManuGH/camsession/internal/camera/ports"

func (c *Controller) sessionListenerForTest() ports.SessionListener {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sessionListener{c: c, gen: c.sess.gen}
}

func (r *rig) deviceForTest() ports.Device {
	r.ctrl.mu.Lock()
	defer r.ctrl.mu.Unlock()
	return r.ctrl.device
}
