package signals

import "os"

type Notifier interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// Handler cancels the application context on the first shutdown signal.
type Handler interface {
	Handle()
}
