package http

// This file implements the builder used for every response: HTML
// partials with HX-Trigger events for HTMX, and JSON bodies for the API.

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// ResponseBuilder provides a fluent API for building responses.
type ResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *ResponseBuilder) Trigger(name string, data any) *ResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerFiltersApplied tells the page which selection the KPI tiles
// now show, so the map and chart tabs can refresh for the same filter.
func (b *ResponseBuilder) TriggerFiltersApplied(filterKey string, rows int) *ResponseBuilder {
	return b.Trigger("filters:applied", map[string]any{"filter_key": filterKey, "rows": rows})
}

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
)

// TriggerNotification adds a show-notification trigger.
func (b *ResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *ResponseBuilder {
	return b.Trigger("show-notification", map[string]any{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *ResponseBuilder) TriggerErrorNotification(message string) *ResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *ResponseBuilder) Body(content []byte) *ResponseBuilder {
	b.body = content
	return b
}

func (b *ResponseBuilder) BodyString(content string) *ResponseBuilder {
	b.body = []byte(content)
	return b
}

// BodyHTML sets the response body as HTML content.
func (b *ResponseBuilder) BodyHTML(html string) *ResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// BodyJSON encodes v as the body. An encoding failure turns the response
// into a 500 with a JSON error.
func (b *ResponseBuilder) BodyJSON(v any) *ResponseBuilder {
	b.headers["Content-Type"] = "application/json"
	data, err := json.Marshal(v)
	if err != nil {
		b.statusCode = http.StatusInternalServerError
		data, _ = json.Marshal(errorBody{Error: "response encoding failed"})
	}
	b.body = append(data, '\n')
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		triggerJSON, err := json.Marshal(b.triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates an HTML error fragment. The message is escaped.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	escapedMsg := template.HTMLEscapeString(message)
	return NewResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + escapedMsg + `</div>`)
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// errorBody is the JSON error envelope of the API.
type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// JSONError creates an API error response.
func JSONError(statusCode int, message, requestID string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		BodyJSON(errorBody{Error: message, RequestID: requestID})
}

// JSON creates a 200 API response carrying v.
func JSON(v any) *ResponseBuilder {
	return NewResponse().BodyJSON(v)
}
