// Package idgen produces process-unique, time-ordered 128 bit identifiers,
// used for farm task ids.
package idgen

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"runtime"
	"sync"
	"time"
)

var (
	ErrClockBackward = errors.New("clock backward")

	emptyResult   = IdType{0, 0}
	maxValueInt32 = int32(0x7fffffff)
)

const _startTimeMillis int64 = 1704067200000 // 20240101000000 UTC

// IdType layout: 48 bits time + 16 bits nodeId, then 32 bits elementId + 32
// bits sequence.
type IdType [2]int64

func (i IdType) CompareTo(id2 IdType) int {
	if i[0] > id2[0] {
		return 1
	} else if i[0] < id2[0] {
		return -1
	} else if i[1] > id2[1] {
		return 1
	} else if i[1] < id2[1] {
		return -1
	} else {
		return 0
	}
}

func (i IdType) HexString() string {
	return hex.EncodeToString(i.Bytes())
}

func (i IdType) Bytes() []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], uint64(i[0]))
	binary.BigEndian.PutUint64(b[8:16], uint64(i[1]))
	return b
}

func FromHexString(str string) (IdType, error) {
	b, err := hex.DecodeString(str)
	if err != nil {
		return IdType{}, err
	}
	if len(b) != 16 {
		return IdType{}, errors.New("raw string length is not 16")
	}
	r := IdType{}
	r[0] = int64(binary.BigEndian.Uint64(b[0:8]))
	r[1] = int64(binary.BigEndian.Uint64(b[8:16]))
	return r, nil
}

type IdGen struct {
	lock sync.Mutex

	time int64
	seq  int32

	nodeIdMask    int64
	elementIdMask int64
}

func NewIdGen(nodeId int16, elementId int32) *IdGen {
	return &IdGen{
		nodeIdMask:    int64(nodeId) & 0x000000000000FFFF,
		elementIdMask: (int64(elementId) & 0x00000000FFFFFFFF) << 32,
	}
}

func (id *IdGen) getTimeMillis() int64 {
	return time.Now().UnixMilli() & 0x7fffffffffffffff
}

func (id *IdGen) Next() (IdType, error) {
	timeInMills := id.getTimeMillis()
	id.lock.Lock()

	if timeInMills > id.time {
		id.time = timeInMills
		id.seq = 0
		id.lock.Unlock()
		return makeId(timeInMills, id.nodeIdMask, id.elementIdMask, 0), nil
	} else if timeInMills == id.time {
		// inc seq or wait until next time
		if id.seq < maxValueInt32 {
			id.seq = id.seq + 1
			newseq := id.seq
			id.lock.Unlock()
			return makeId(timeInMills, id.nodeIdMask, id.elementIdMask, newseq), nil
		} else {
			newtime := id.tillNextMillisecond(timeInMills)
			id.time = newtime
			id.seq = 0
			id.lock.Unlock()
			return makeId(newtime, id.nodeIdMask, id.elementIdMask, 0), nil
		}
	} else {
		// clock moved backwards, refuse to generate colliding ids
		id.lock.Unlock()
		return emptyResult, ErrClockBackward
	}
}

func makeId(time, nodeIdMask int64, elementId int64, seq int32) IdType {
	l := elementId | (int64(seq) & 0x00000000ffffffff)
	return IdType{((time - _startTimeMillis) << 16) | nodeIdMask, l}
}

func (id *IdGen) tillNextMillisecond(time int64) int64 {
	for {
		newtime := id.getTimeMillis()
		if newtime > time {
			return newtime
		}
		runtime.Gosched()
	}
}
