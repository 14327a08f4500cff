package domain

// MessageBus routes canonical messages between the webhook gateway and the
// application, and outbound replies back to platform adapters.
type MessageBus interface {
	Publish(msg Message)
	Subscribe() <-chan Message
	SendOutbound(msg Message)
	OnOutbound(platform Platform, handler func(Message))
	Close()
}
