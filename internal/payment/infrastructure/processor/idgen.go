package processor

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator 交易号后缀生成器，同一进程内不得重复
type IDGenerator interface {
	NextID() string
}

// SnowflakeIDGenerator 基于雪花算法的生成器
type SnowflakeIDGenerator struct {
	node *snowflake.Node
}

// NewSnowflakeIDGenerator 创建生成器，nodeID 取值 0-1023
func NewSnowflakeIDGenerator(nodeID int64) (*SnowflakeIDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", nodeID, err)
	}
	return &SnowflakeIDGenerator{node: node}, nil
}

func (g *SnowflakeIDGenerator) NextID() string {
	return g.node.Generate().String()
}

var defaultIDs = mustSnowflake(1)

func mustSnowflake(nodeID int64) *SnowflakeIDGenerator {
	g, err := NewSnowflakeIDGenerator(nodeID)
	if err != nil {
		panic(err)
	}
	return g
}
