package chains

// Watcher follows one source chain and records every finalized deposit it
// sees into the durable store.
type Watcher interface {
	Start()
	Stop()
}
