package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Client side events fired through HX-Trigger.
const (
	EventLedgerChanged    = "ledger:changed"
	EventFormReset        = "form:reset"
	EventShowNotification = "show-notification"
)

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
)

// How long app.js shows each kind of notification, in milliseconds.
var notificationDuration = map[NotificationType]int{
	NotificationSuccess: 3000,
	NotificationError:   5000,
	NotificationInfo:    3000,
}

// Response collects status, headers, htmx events and body, and writes them
// in one go.
type Response struct {
	status   int
	header   http.Header
	triggers map[string]any
	body     []byte
}

func NewResponse() *Response {
	return &Response{status: http.StatusOK, header: make(http.Header), triggers: make(map[string]any)}
}

func (b *Response) Status(code int) *Response {
	b.status = code
	return b
}

func (b *Response) Header(name, value string) *Response {
	b.header.Set(name, value)
	return b
}

// Trigger adds an event to HX-Trigger. data becomes the event detail.
func (b *Response) Trigger(event string, data any) *Response {
	b.triggers[event] = data
	return b
}

// LedgerChanged makes the balance and list partials reload.
func (b *Response) LedgerChanged(revision uint64) *Response {
	return b.Trigger(EventLedgerChanged, map[string]uint64{"revision": revision})
}

func (b *Response) ResetForm() *Response {
	return b.Trigger(EventFormReset, struct{}{})
}

func (b *Response) Notify(kind NotificationType, message string) *Response {
	return b.Trigger(EventShowNotification, map[string]any{
		"type":     kind,
		"message":  message,
		"duration": notificationDuration[kind],
	})
}

func (b *Response) Text(s string) *Response {
	b.body = []byte(s)
	return b
}

func (b *Response) HTML(s string) *Response {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	b.body = []byte(s)
	return b
}

// JSON encodes v followed by a newline. An encoding failure becomes a 500.
func (b *Response) JSON(v any) *Response {
	body, err := json.Marshal(v)
	if err != nil {
		b.status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	b.header.Set("Content-Type", "application/json")
	b.body = append(body, '\n')
	return b
}

func (b *Response) Write(w http.ResponseWriter) {
	dst := w.Header()
	for name, values := range b.header {
		dst[name] = values
	}
	if len(b.triggers) > 0 {
		if events, err := json.Marshal(b.triggers); err == nil {
			dst.Set("HX-Trigger", string(events))
		}
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// HTMLError is an escaped error fragment for htmx targets.
func HTMLError(status int, message string) *Response {
	return NewResponse().Status(status).
		HTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

// JSONError is the API error body. field is omitted when empty.
func JSONError(status int, field, message string) *Response {
	body := map[string]string{"error": message}
	if field != "" {
		body["field"] = field
	}
	return NewResponse().Status(status).JSON(body)
}

// MethodNotAllowed is an empty 405 listing the allowed methods.
func MethodNotAllowed(allow string) *Response {
	return NewResponse().Status(http.StatusMethodNotAllowed).Header("Allow", allow)
}
