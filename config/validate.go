package config

import (
	"fmt"
	"strings"

	vmerrors "videomass/internal/errors"
)

// Validate checks if the configuration is valid. All problems are reported
// together in one VALIDATION error.
func (c *Config) Validate() error {
	var errors []string

	// Binaries
	if err := c.Binaries.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("binaries: %v", err))
	}

	if strings.TrimSpace(c.PresetsDir) == "" {
		errors = append(errors, "presets_dir is required")
	}

	// Execution settings
	if c.Workers < 1 {
		errors = append(errors, "workers must be at least 1")
	}
	if c.Threads < 0 {
		errors = append(errors, "threads cannot be negative (use 0 for the ffmpeg default)")
	}

	// Normalization
	if err := c.Normalization.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("normalization: %v", err))
	}

	// Logging
	if !isOneOf(c.LogLevel, LogLevelValues()) {
		errors = append(errors, fmt.Sprintf("invalid log_level '%s', must be one of: %s",
			c.LogLevel, strings.Join(LogLevelValues(), ", ")))
	}
	if !isOneOf(c.LogFormat, LogFormatValues()) {
		errors = append(errors, fmt.Sprintf("invalid log_format '%s', must be one of: %s",
			c.LogFormat, strings.Join(LogFormatValues(), ", ")))
	}

	if len(errors) > 0 {
		return vmerrors.ValidationWithDetails(
			fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - ")),
			errors)
	}

	return nil
}

// Validate checks that every binary is named
func (b *BinariesConfig) Validate() error {
	var errors []string

	if b.FFmpeg == "" {
		errors = append(errors, "ffmpeg is required")
	}
	if b.FFprobe == "" {
		errors = append(errors, "ffprobe is required")
	}
	if b.FFplay == "" {
		errors = append(errors, "ffplay is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}
	return nil
}

// Validate checks the dBFS targets and the loudnorm ranges
func (n *NormalizationConfig) Validate() error {
	var errors []string

	if n.PeakTarget > 0 {
		errors = append(errors, "peak_target must not exceed 0 dBFS")
	}
	if n.RMSTarget > 0 {
		errors = append(errors, "rms_target must not exceed 0 dBFS")
	}
	if err := n.LoudnormTarget().Validate(); err != nil {
		var domainErr *vmerrors.Error
		if vmerrors.As(err, &domainErr) {
			errors = append(errors, domainErr.Message)
		} else {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}
	return nil
}
