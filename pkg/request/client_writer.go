package request

import "net/http"

// ClientWriter wraps a http.ResponseWriter and records the status code
// written, for use by request metrics.
type ClientWriter struct {
	http.ResponseWriter
	status int
}

// NewClientWriter creates a new ClientWriter.
func NewClientWriter(w http.ResponseWriter) *ClientWriter {
	return &ClientWriter{ResponseWriter: w}
}

// WriteHeader records the status code and forwards it.
func (w *ClientWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Write defaults the status to 200 when the handler never set one.
func (w *ClientWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// StatusCode returns the recorded status code.
func (w *ClientWriter) StatusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
