package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscriber(); err != nil {
		return err
	}
	if err := c.validateStaging(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateTranscriber() error {
	if strings.TrimSpace(c.Transcriber.BaseURL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/scribe/config.toml"
		}
		return fmt.Errorf("transcriber.base_url is required. Edit %s (create with 'scribe config init')", defaultPath)
	}
	if c.Transcriber.RequestTimeout <= 0 {
		return errors.New("transcriber.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateStaging() error {
	if strings.TrimSpace(c.Staging.BaseURL) == "" {
		return errors.New("staging.base_url must be set")
	}
	if c.Staging.PollInterval <= 0 {
		return errors.New("staging.poll_interval must be positive")
	}
	if c.Staging.ReadyTimeout <= 0 {
		return errors.New("staging.ready_timeout must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval < 0 {
		return errors.New("workflow.queue_poll_interval must not be negative")
	}
	if c.Workflow.BatchSize <= 0 {
		return errors.New("workflow.batch_size must be positive")
	}
	if c.Workflow.LeaseSeconds <= 0 {
		return errors.New("workflow.lease_seconds must be positive")
	}
	if c.Workflow.MaxDeliveries <= 0 {
		return errors.New("workflow.max_deliveries must be positive")
	}
	return nil
}
