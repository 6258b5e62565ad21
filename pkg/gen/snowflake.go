package gen

import (
	"taskora/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("gen",
	fx.Provide(ProvideNode),
)

// IDGenerator hands out unique, time-ordered string ids.
type IDGenerator interface {
	NextID() string
}

type SnowflakeNode struct {
	node *snowflake.Node
}

func NewSnowflakeNode(nodeID int64) (*SnowflakeNode, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &SnowflakeNode{node: node}, nil
}

func ProvideNode(cfg *config.Config) (IDGenerator, error) {
	return NewSnowflakeNode(cfg.Snowflake.NodeID)
}

func (s *SnowflakeNode) NextID() string {
	return s.node.Generate().String()
}
