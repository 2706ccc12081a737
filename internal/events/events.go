// Package events carries account lifecycle messages to the bus that feeds the
// profile and favorites services.
package events

import "context"

// Routing keys understood by downstream consumers.
const (
	CreateUserProfile  = "createUserProfile"
	CreateUserFavorite = "createUserFavorite"
	UpdateUser         = "updateUser"
	DeleteUserProfile  = "deleteUserProfile"
	DeleteUserFavorite = "deleteUserFavorite"
)

// Message is one payload bound for a single routing key. Key partitions the
// message on transports that support it (the account id).
type Message struct {
	RoutingKey string
	Key        string
	Body       []byte
}

// Publisher sends a message to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

