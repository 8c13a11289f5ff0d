package json

import (
	"github.com/atlasync/atlasync/pkg/config"
	"github.com/atlasync/atlasync/pkg/connector/core"
	"github.com/atlasync/atlasync/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterDestination("json", func(cfg *config.BaseConfig) (core.Destination, error) {
		return NewJSONDestination(cfg)
	})
}
