// Package queue carries user notifications over RabbitMQ. The API server
// publishes NotificationMessage values; the mailer process consumes them,
// renders a template per variant and appends the result to its outbox.
package queue

import "time"

// NotificationMessage is the JSON payload of the notifications queue. Data
// holds the template fields of the variant.
type NotificationMessage struct {
	To          string            `json:"to"`
	Variant     string            `json:"variant"`
	Data        map[string]string `json:"data"`
	RequestedAt time.Time         `json:"requested_at"`
}
