// Package httpstatus records the status code a handler writes, for the
// request middlewares that report it after the handler returns.
package httpstatus

import "net/http"

// Recorder is an http.ResponseWriter that remembers the first status code
// written. A handler that only calls Write reports 200.
type Recorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

// Wrap returns a Recorder around w. w is returned unchanged when it is
// already a Recorder so that stacked middlewares share one status.
func Wrap(w http.ResponseWriter) *Recorder {
	if r, ok := w.(*Recorder); ok {
		return r
	}
	return &Recorder{ResponseWriter: w, status: http.StatusOK}
}

// Status returns the recorded status code.
func (r *Recorder) Status() int { return r.status }

// Written reports whether the header has been sent.
func (r *Recorder) Written() bool { return r.wrote }

func (r *Recorder) WriteHeader(code int) {
	if r.wrote {
		return
	}
	r.status, r.wrote = code, true
	r.ResponseWriter.WriteHeader(code)
}

func (r *Recorder) Write(b []byte) (int, error) {
	if !r.wrote {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *Recorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
