package component

// Farm sync: best effort cross node cache invalidation. A write on one node
// broadcasts a task; every other node applies it against its local registry.
// Eventually consistent, no delivery ordering guarantee across types.

type FarmTaskType string

const (
	FarmTaskClearCache   FarmTaskType = "clear"
	FarmTaskUpdateObject FarmTaskType = "update"
	FarmTaskDeleteObject FarmTaskType = "delete"
)

// FarmTask is the unit of cross node propagation.
type FarmTask struct {
	ID         string       `cbor:"id,"`
	Node       string       `cbor:"node,"`
	Type       FarmTaskType `cbor:"type,"`
	ObjectType string       `cbor:"object_type,"`
	ObjectID   int64        `cbor:"object_id,"`
	Timestamp  int64        `cbor:"timestamp,"`
	Checksum   string       `cbor:"checksum,"`
}

// FarmNotifier is the outbound side wired into providers. Implementations
// build the full FarmTask (id, node, checksum) and must not block the write
// path indefinitely; undeliverable tasks may be spooled.
type FarmNotifier interface {
	NotifyTask(taskType FarmTaskType, objectType string, objectID int64) error
}

// FarmTaskSink is the inbound side: apply a task received from another node.
type FarmTaskSink interface {
	ApplyTask(task FarmTask) error
}

type CancelFn func()

// FarmTaskSource delivers inbound tasks, e.g. from an etcd watch.
type FarmTaskSource interface {
	// StartReceiving delivers decoded tasks on the returned channel until the
	// cancel function is called. Tasks originated by the local node are filtered.
	StartReceiving() (<-chan FarmTask, CancelFn, error)
}
