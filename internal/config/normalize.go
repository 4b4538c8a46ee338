package config

import "strings"

func (c *Config) normalize() error {
	stagingDir, err := expandPath(c.Paths.StagingDir)
	if err != nil {
		return err
	}
	c.Paths.StagingDir = stagingDir

	logDir, err := expandPath(c.Paths.LogDir)
	if err != nil {
		return err
	}
	c.Paths.LogDir = logDir

	c.Logging.Level = strings.TrimSpace(c.Logging.Level)
	c.Logging.Format = strings.TrimSpace(c.Logging.Format)
	c.Parser.WorkerBinary = strings.TrimSpace(c.Parser.WorkerBinary)

	if c.Parser.WorkerBinary == "" {
		c.Parser.WorkerBinary = defaultWorkerBinary
	}
	if c.Parser.ParseTimeout == 0 {
		c.Parser.ParseTimeout = defaultParseTimeoutMS
	}
	if c.Parser.IdleTimeout == 0 {
		c.Parser.IdleTimeout = defaultIdleTimeoutMS
	}
	return nil
}
