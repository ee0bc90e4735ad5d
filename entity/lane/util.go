package lane

import (
	"sync"

	"github.com/tsinghua-fib-lab/lanesim/entity"
)

// stagedBuffer 车道车辆变动的暂存区
// 功能：变道决策阶段只记录变动，所有决策完成后统一应用，保证决策基于同一快照
type stagedBuffer struct {
	addBuffer         []entity.IVehicle
	addBufferMutex    sync.Mutex
	removeBuffer      []entity.IVehicle
	removeBufferMutex sync.Mutex
}

// add 添加车辆到暂存区
// 说明：使用互斥锁保证线程安全
func (b *stagedBuffer) add(v entity.IVehicle) {
	b.addBufferMutex.Lock()
	b.addBuffer = append(b.addBuffer, v)
	b.addBufferMutex.Unlock()
}

// remove 添加待移除车辆到暂存区
func (b *stagedBuffer) remove(v entity.IVehicle) {
	b.removeBufferMutex.Lock()
	b.removeBuffer = append(b.removeBuffer, v)
	b.removeBufferMutex.Unlock()
}

// apply 将暂存区的变动应用到车道
// 功能：先处理移除再处理插入，清空暂存区
func (b *stagedBuffer) apply(l *Lane) {
	for _, v := range b.removeBuffer {
		l.Remove(v)
	}
	for _, v := range b.addBuffer {
		l.Insert(v)
	}
	clear(b.removeBuffer)
	clear(b.addBuffer)
	b.removeBuffer = b.removeBuffer[:0]
	b.addBuffer = b.addBuffer[:0]
}
