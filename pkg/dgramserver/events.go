package dgramserver

import "sync"

// EventHandler receives event-specific data: a listening/shutdown handler
// gets the bound socket path, a request/response handler gets the
// protocol.Request/Response, an error handler gets the error.
type EventHandler func(data interface{})

// events holds the per-event-name handler lists a Server emits to.
type events struct {
	mu        sync.RWMutex
	listening []EventHandler
	request   []EventHandler
	response  []EventHandler
	errorH    []EventHandler
	shutdown  []EventHandler
}

// On registers handler for event ("listening", "request", "response",
// "error", "shutdown"). Unknown event names are silently ignored, matching
// the teacher's permissive on/emit contract.
func (e *events) On(event string, handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch event {
	case "listening":
		e.listening = append(e.listening, handler)
	case "request":
		e.request = append(e.request, handler)
	case "response":
		e.response = append(e.response, handler)
	case "error":
		e.errorH = append(e.errorH, handler)
	case "shutdown":
		e.shutdown = append(e.shutdown, handler)
	}
}

func (e *events) emit(event string, data interface{}) {
	e.mu.RLock()
	var handlers []EventHandler
	switch event {
	case "listening":
		handlers = e.listening
	case "request":
		handlers = e.request
	case "response":
		handlers = e.response
	case "error":
		handlers = e.errorH
	case "shutdown":
		handlers = e.shutdown
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		go h(data)
	}
}
