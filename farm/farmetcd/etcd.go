package farmetcd

import (
	"context"
	"log"
	"time"

	"go.etcd.io/etcd/client/v3"

	"github.com/cachemesh/objprovider/component"
	"github.com/cachemesh/objprovider/farm/farmapi"
)

type FarmChannelConfig struct {
	Endpoints []string
	// Prefix is the etcd key prefix under which tasks are published.
	Prefix string
	// NodeName identifies the local node. Inbound tasks from the same node
	// are skipped.
	NodeName string
}

// FarmChannel broadcasts tasks through etcd. Each task is put under the
// prefix with a short lived lease so consumed tasks expire on their own,
// and every node watches the prefix for tasks from other nodes.
type FarmChannel struct {
	cli     *clientv3.Client
	builder *farmapi.TaskBuilder
	prefix  string

	settings struct {
		LeaseTTL int64
	}
}

func NewFarmChannel(config *FarmChannelConfig) (*FarmChannel, error) {
	builder, err := farmapi.NewTaskBuilder(config.NodeName)
	if err != nil {
		return nil, err
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	prefix := config.Prefix
	if prefix == "" {
		prefix = "/objprovider/farm/"
	}
	c := &FarmChannel{
		cli:     cli,
		builder: builder,
		prefix:  prefix,
	}
	c.settings.LeaseTTL = 30
	return c, nil
}

func (c *FarmChannel) NotifyTask(taskType component.FarmTaskType, objectType string, objectID int64) error {
	task, err := c.builder.NewTask(taskType, objectType, objectID)
	if err != nil {
		return err
	}
	data, err := farmapi.Marshal(task)
	if err != nil {
		return err
	}
	// step1: get lease so the task key expires after every node has seen it
	grant, err := c.cli.Grant(context.Background(), c.settings.LeaseTTL)
	if err != nil {
		return err
	}
	// step2: publish the task under the prefix
	if _, err := c.cli.Put(context.Background(), c.prefix+task.ID, string(data), clientv3.WithLease(grant.ID)); err != nil {
		return err
	}
	return nil
}

func (c *FarmChannel) StartReceiving() (<-chan component.FarmTask, component.CancelFn, error) {
	ctx, cancel := context.WithCancel(context.Background())
	wch := c.cli.Watch(ctx, c.prefix, clientv3.WithPrefix())
	ch := make(chan component.FarmTask, 128)
	go func() {
		defer close(ch)
		for res := range wch {
			if err := res.Err(); err != nil {
				log.Println("[ERROR] farm etcd watch failure:", err)
				continue
			}
			for _, ev := range res.Events {
				if ev.Type != clientv3.EventTypePut {
					continue
				}
				task, err := farmapi.Unmarshal(ev.Kv.Value)
				if err != nil {
					log.Println("[ERROR] farm etcd decode task failure:", err)
					continue
				}
				if task.Node == c.builder.NodeName() {
					continue
				}
				ch <- task
			}
		}
	}()
	return ch, component.CancelFn(cancel), nil
}

func (c *FarmChannel) Close() error {
	return c.cli.Close()
}

var _ component.FarmNotifier = new(FarmChannel)
var _ component.FarmTaskSource = new(FarmChannel)
