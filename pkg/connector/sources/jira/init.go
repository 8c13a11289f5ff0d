package jira

import (
	"github.com/atlasync/atlasync/pkg/config"
	"github.com/atlasync/atlasync/pkg/connector/core"
	"github.com/atlasync/atlasync/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource("jira", func(cfg *config.BaseConfig) (core.Source, error) {
		return NewJiraSource(), nil
	})
}
