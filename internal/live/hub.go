package live

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Broadcast controls a driver's live-position visibility. The route
// lifecycle starts it on generation and stops it on finalization.
type Broadcast interface {
	Start(driverID uint)
	Stop(driverID uint)
}

// Hub fans driver position frames out to the guardians watching that
// driver. Frames are only relayed while the driver has an active route
// (between Start and Stop).
type Hub struct {
	watchers  map[uint]map[*websocket.Conn]bool
	active    map[uint]bool
	broadcast chan Frame
	mu        sync.Mutex
}

// Frame is one position update relayed to watchers.
type Frame struct {
	DriverID  uint    `json:"driver_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
	Timestamp string  `json:"timestamp"`
	// Finished is set on the terminal frame sent when a route ends, so
	// watching clients can clear the marker without polling.
	Finished bool `json:"finished,omitempty"`
}

// NewHub creates a hub and starts its broadcasting goroutine.
func NewHub() *Hub {
	h := &Hub{
		watchers:  make(map[uint]map[*websocket.Conn]bool),
		active:    make(map[uint]bool),
		broadcast: make(chan Frame, 100),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for frame := range h.broadcast {
		h.mu.Lock()
		conns := make([]*websocket.Conn, 0, len(h.watchers[frame.DriverID]))
		for conn := range h.watchers[frame.DriverID] {
			conns = append(conns, conn)
		}
		h.mu.Unlock()

		for _, conn := range conns {
			go func(c *websocket.Conn, f Frame) {
				if err := c.WriteJSON(f); err != nil {
					if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
						logrus.WithFields(logrus.Fields{
							"driver_id": f.DriverID,
							"conn_ptr":  fmt.Sprintf("%p", c),
						}).Info("Watcher connection closed during broadcast, unregistering.")
						h.UnregisterWatcher(f.DriverID, c)
					} else {
						logrus.WithError(err).WithField("driver_id", f.DriverID).Warn("Failed to send frame to watcher.")
					}
				}
			}(conn, frame)
		}
	}
}

// Start marks a driver as broadcasting. Frames for inactive drivers are
// dropped.
func (h *Hub) Start(driverID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active[driverID] = true
	logrus.WithField("driver_id", driverID).Info("Live broadcast started for driver.")
}

// Stop clears a driver's broadcast presence and notifies watchers with a
// terminal frame.
func (h *Hub) Stop(driverID uint) {
	h.mu.Lock()
	wasActive := h.active[driverID]
	delete(h.active, driverID)
	h.mu.Unlock()

	if wasActive {
		h.Publish(Frame{DriverID: driverID, Finished: true})
	}
	logrus.WithField("driver_id", driverID).Info("Live broadcast stopped for driver.")
}

// Active reports whether the driver is currently broadcasting.
func (h *Hub) Active(driverID uint) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active[driverID]
}

// Publish queues a frame for fan-out. Terminal frames pass through even
// after Stop; ordinary frames from an inactive driver are dropped.
func (h *Hub) Publish(frame Frame) {
	if !frame.Finished && !h.Active(frame.DriverID) {
		return
	}
	select {
	case h.broadcast <- frame:
	default:
		logrus.Warn("Live broadcast channel full, dropping frame.")
	}
}

// RegisterWatcher adds a guardian connection watching the given driver.
func (h *Hub) RegisterWatcher(driverID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.watchers[driverID]; !ok {
		h.watchers[driverID] = make(map[*websocket.Conn]bool)
	}
	h.watchers[driverID][conn] = true
	logrus.WithFields(logrus.Fields{
		"driver_id": driverID,
		"conn_ptr":  fmt.Sprintf("%p", conn),
	}).Info("Watcher registered with live hub.")
}

// UnregisterWatcher removes a disconnected watcher.
func (h *Hub) UnregisterWatcher(driverID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.watchers[driverID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.watchers, driverID)
		}
	}
}
