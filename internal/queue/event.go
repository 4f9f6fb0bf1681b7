// Package queue defines the user.registered message and its RabbitMQ
// publisher and consumer.
package queue

// UserRegisteredQueue is the durable queue carrying registration events.
const UserRegisteredQueue = "user.registered"

// UserRegisteredEvent is published after a user row is created. It carries
// enough for downstream consumers (audit log, welcome mail) without a
// database round trip.
type UserRegisteredEvent struct {
    UserID       uint64 `json:"user_id"`
    Email        string `json:"email"`
    Role         string `json:"role"`
    RegisteredAt string `json:"registered_at"`
}
