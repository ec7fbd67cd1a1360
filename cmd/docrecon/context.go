package main

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/docrecon/docrecon/config"
	"github.com/docrecon/docrecon/internal/app"
	"github.com/docrecon/docrecon/internal/infrastructure/logging"
)

type configLoader func(path string) (*config.Config, error)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	load         configLoader

	configOnce sync.Once
	config     *config.Config
	configErr  error

	app *app.App
}

func newCommandContext(configFlag, logLevelFlag *string, load configLoader) *commandContext {
	if load == nil {
		load = config.LoadFrom
	}
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		load:         load,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = c.load(path)
	})
	return c.config, c.configErr
}

// ensureApp builds the components on first use. CLI logs go to stderr so
// command output stays machine readable.
func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	level := "warn"
	if c.logLevelFlag != nil && *c.logLevelFlag != "" {
		level = *c.logLevelFlag
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		logger = zap.NewNop()
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}
