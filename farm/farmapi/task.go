package farmapi

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/cachemesh/objprovider/component"
	"github.com/cachemesh/objprovider/utility/idgen"
)

var (
	ErrEmptyNodeName   = errors.New("empty node name")
	ErrChecksumInvalid = errors.New("task checksum invalid")
)

// TaskBuilder stamps outbound tasks with the local node name, a unique id
// and an integrity checksum.
type TaskBuilder struct {
	node  string
	idgen *idgen.IdGen
}

func NewTaskBuilder(nodeName string) (*TaskBuilder, error) {
	if nodeName == "" {
		return nil, ErrEmptyNodeName
	}
	return &TaskBuilder{
		node:  nodeName,
		idgen: idgen.NewIdGen(nodeId(nodeName), 1),
	}, nil
}

func (b *TaskBuilder) NodeName() string {
	return b.node
}

func (b *TaskBuilder) NewTask(taskType component.FarmTaskType, objectType string, objectID int64) (component.FarmTask, error) {
	id, err := b.idgen.Next()
	if err != nil {
		return component.FarmTask{}, err
	}
	task := component.FarmTask{
		ID:         id.HexString(),
		Node:       b.node,
		Type:       taskType,
		ObjectType: objectType,
		ObjectID:   objectID,
		Timestamp:  time.Now().Unix(),
	}
	task.Checksum = GenerateChecksum(task)
	return task, nil
}

func GenerateChecksum(task component.FarmTask) string {
	payload := fmt.Sprint(task.ID, "|", task.Node, "|", task.Type, "|", task.ObjectType, "|", task.ObjectID, "|", task.Timestamp)
	sha256sum := sha256.Sum256([]byte(payload))
	return "sha256:" + hex.EncodeToString(sha256sum[:])
}

func ValidateTask(task component.FarmTask) error {
	if task.Checksum != GenerateChecksum(task) {
		return ErrChecksumInvalid
	}
	return nil
}

func Marshal(task component.FarmTask) ([]byte, error) {
	return cbor.Marshal(task)
}

func Unmarshal(data []byte) (component.FarmTask, error) {
	var task component.FarmTask
	if err := cbor.Unmarshal(data, &task); err != nil {
		return component.FarmTask{}, err
	}
	return task, nil
}

// Pump forwards tasks from a source to a sink until the source stops. Apply
// failures are surfaced to the handler and do not stop the pump.
func Pump(src component.FarmTaskSource, sink component.FarmTaskSink, onError func(task component.FarmTask, err error)) (component.CancelFn, error) {
	ch, cancel, err := src.StartReceiving()
	if err != nil {
		return nil, err
	}
	go func() {
		for task := range ch {
			if err := ValidateTask(task); err != nil {
				if onError != nil {
					onError(task, err)
				}
				continue
			}
			if err := sink.ApplyTask(task); err != nil && onError != nil {
				onError(task, err)
			}
		}
	}()
	return cancel, nil
}

func nodeId(nodeName string) int16 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(nodeName))
	return int16(h.Sum32() & 0x7fff)
}
