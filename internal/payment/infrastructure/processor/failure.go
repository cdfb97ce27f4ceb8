package processor

import (
	"math/rand/v2"
	"sync"
	"time"
)

// FailureInjector 决定一次处理是否模拟外部故障
type FailureInjector interface {
	ShouldFail() bool
}

// FailureFunc 函数适配器
type FailureFunc func() bool

func (f FailureFunc) ShouldFail() bool { return f() }

// Never 从不失败
func Never() FailureInjector { return FailureFunc(func() bool { return false }) }

// Always 总是失败
func Always() FailureInjector { return FailureFunc(func() bool { return true }) }

type chanceInjector struct {
	mu          sync.Mutex
	rng         *rand.Rand
	probability float64
}

// Chance 以给定概率失败；seed 为 0 时使用当前时间作为种子
func Chance(probability float64, seed uint64) FailureInjector {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &chanceInjector{
		rng:         rand.New(rand.NewPCG(seed, seed>>1|1)),
		probability: probability,
	}
}

func (c *chanceInjector) ShouldFail() bool {
	if c.probability <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64() < c.probability
}
