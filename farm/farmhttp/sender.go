package farmhttp

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterbourgon/diskv/v3"

	"github.com/cachemesh/objprovider/component"
	"github.com/cachemesh/objprovider/farm/farmapi"
)

var ErrSenderClosed = errors.New("farm sender closed")

type FarmSenderConfig struct {
	// Peers are the base urls of all other farm nodes, e.g. http://host:port
	Peers    []string
	NodeName string
	Secret   []byte
	// SpoolDir stores undelivered tasks for background retry.
	SpoolDir string
	TokenTTL time.Duration
}

// FarmSender posts every task to all configured peers. Deliveries that fail
// are written to a disk spool and retried in the background, so a peer
// restart does not lose invalidations.
type FarmSender struct {
	cfg     *FarmSenderConfig
	builder *farmapi.TaskBuilder
	spool   *diskv.Diskv
	client  *http.Client

	closeCh chan struct{}
}

type spooledDelivery struct {
	Peer string `cbor:"peer,"`
	Data []byte `cbor:"data,"`
}

func NewFarmSender(cfg *FarmSenderConfig) (*FarmSender, error) {
	builder, err := farmapi.NewTaskBuilder(cfg.NodeName)
	if err != nil {
		return nil, err
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 2 * time.Minute
	}
	spool := diskv.New(diskv.Options{
		BasePath:     cfg.SpoolDir,
		CacheSizeMax: 1024 * 1024,
	})
	return &FarmSender{
		cfg:     cfg,
		builder: builder,
		spool:   spool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		closeCh: make(chan struct{}),
	}, nil
}

func (s *FarmSender) Startup() {
	go s.resendLoop()
}

func (s *FarmSender) Shutdown() {
	close(s.closeCh)
}

func (s *FarmSender) NotifyTask(taskType component.FarmTaskType, objectType string, objectID int64) error {
	task, err := s.builder.NewTask(taskType, objectType, objectID)
	if err != nil {
		return err
	}
	data, err := farmapi.Marshal(task)
	if err != nil {
		return err
	}
	for _, peer := range s.cfg.Peers {
		if err := s.deliver(peer, data); err != nil {
			log.Println("[ERROR] deliver farm task failure, spooling:", peer, err)
			s.spoolDelivery(task.ID, peer, data)
		}
	}
	return nil
}

func (s *FarmSender) deliver(peer string, data []byte) error {
	token, err := SignFarmToken(s.cfg.Secret, s.builder.NodeName(), s.cfg.TokenTTL)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, peer+"/farm/task", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", taskContentType)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}
	return nil
}

func (s *FarmSender) spoolDelivery(taskID, peer string, data []byte) {
	entry, err := cbor.Marshal(spooledDelivery{Peer: peer, Data: data})
	if err != nil {
		log.Println("[ERROR] encode spooled delivery failure:", err)
		return
	}
	key := taskID + "-" + peerKey(peer)
	if err := s.spool.Write(key, entry); err != nil {
		log.Println("[ERROR] write spooled delivery failure:", err)
	}
}

func (s *FarmSender) resendLoop() {
Overall:
	for {
		select {
		case <-s.closeCh:
			break Overall
		case <-time.After(10 * time.Second):
		}

		f := func(key string) bool {
			raw, err := s.spool.Read(key)
			if err != nil {
				log.Println("[ERROR] read spooled delivery failure:", err)
				return false
			}
			var entry spooledDelivery
			if err := cbor.Unmarshal(raw, &entry); err != nil {
				log.Println("[ERROR] decode spooled delivery failure, dropping:", err)
				return true
			}
			if err := s.deliver(entry.Peer, entry.Data); err != nil {
				return false
			}
			return true
		}
		for key := range s.spool.Keys(s.closeCh) {
			if f(key) {
				if err := s.spool.Erase(key); err != nil {
					log.Println("[ERROR] erase spooled delivery failure:", err)
				}
			}
		}
	}
}

func peerKey(peer string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(peer))
	return fmt.Sprintf("%08x", h.Sum32())
}

var _ component.FarmNotifier = new(FarmSender)
