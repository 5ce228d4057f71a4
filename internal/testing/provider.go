package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Step is one scripted provider reply.
type Step struct {
	Status int    // HTTP status, defaults to 200
	Body   string // raw body written as-is
}

// Pending, Running, Succeeded and Failed build the usual status replies.
func Pending(id string) Step { return statusStep(id, "PENDING", nil, "") }
func Running(id string) Step { return statusStep(id, "RUNNING", nil, "") }
func Succeeded(id string, urls ...string) Step {
	return statusStep(id, "SUCCEEDED", urls, "")
}
func Failed(id, message string) Step { return statusStep(id, "FAILED", nil, message) }

// Status builds a reply with an arbitrary task_status.
func Status(id, status string) Step { return statusStep(id, status, nil, "") }

// Created is a task creation reply carrying a task id.
func Created(id string) Step {
	return Step{Body: fmt.Sprintf(`{"request_id":"req-%s","output":{"task_id":%q,"task_status":"PENDING"}}`, id, id)}
}

// Synchronous is a task creation reply that already carries results.
func Synchronous(urls ...string) Step {
	return Step{Body: `{"request_id":"req-sync","output":{"results":` + resultsJSON(urls) + `}}`}
}

// Rejected is a non-2xx reply with a provider error body.
func Rejected(status int, code, message string) Step {
	return Step{Status: status, Body: fmt.Sprintf(`{"code":%q,"message":%q}`, code, message)}
}

func statusStep(id, status string, urls []string, message string) Step {
	out := map[string]any{"task_id": id, "task_status": status}
	if urls != nil {
		out["results"] = json.RawMessage(resultsJSON(urls))
	}
	if message != "" {
		out["message"] = message
	}
	b, _ := json.Marshal(map[string]any{"request_id": "req-" + id, "output": out})
	return Step{Body: string(b)}
}

func resultsJSON(urls []string) string {
	items := make([]string, len(urls))
	for i, u := range urls {
		items[i] = fmt.Sprintf(`{"url":%q}`, u)
	}
	return "[" + strings.Join(items, ",") + "]"
}

// ScriptedProvider is an [http.Handler] standing in for the synthesis API.
//
// Creation requests get Create. Status queries consume Polls in order and repeat the last step once exhausted.
type ScriptedProvider struct {
	Create Step
	Polls  []Step

	mu       sync.Mutex
	creates  int
	polls    int
	requests []RecordedRequest
}

// RecordedRequest is what the provider saw for one call.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

func (p *ScriptedProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	p.mu.Lock()
	p.requests = append(p.requests, RecordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body})

	var step Step
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/image-synthesis"):
		p.creates++
		step = p.Create
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/tasks/"):
		if len(p.Polls) == 0 {
			step = Step{Status: http.StatusNotFound, Body: `{"code":"NotFound","message":"no script"}`}
		} else {
			step = p.Polls[min(p.polls, len(p.Polls)-1)]
		}
		p.polls++
	default:
		step = Step{Status: http.StatusNotFound, Body: `{"code":"NotFound","message":"unknown route"}`}
	}
	p.mu.Unlock()

	status := step.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, step.Body)
}

// Creates returns the number of creation requests served.
func (p *ScriptedProvider) Creates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creates
}

// PollCount returns the number of status queries served.
func (p *ScriptedProvider) PollCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}

// Requests returns a copy of every recorded request.
func (p *ScriptedProvider) Requests() []RecordedRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RecordedRequest(nil), p.requests...)
}
