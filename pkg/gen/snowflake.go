package gen

import (
	"curtailment-controlplane/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("gen",
	fx.Provide(NewSnowflakeNode),
)

// IDGenerator issues sortable unique string identifiers.
type IDGenerator interface {
	NextID() string
}

type SnowflakeNode struct {
	node *snowflake.Node
}

func NewSnowflakeNode(cfg *config.Config) (IDGenerator, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, err
	}
	return &SnowflakeNode{node: node}, nil
}

func (s *SnowflakeNode) NextID() string {
	return s.node.Generate().String()
}
