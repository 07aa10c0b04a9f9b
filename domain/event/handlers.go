package event

// Handler Each kind of event has his own handler
// Only one handler per event name is active at a time
type Handler func(in Inbound)
