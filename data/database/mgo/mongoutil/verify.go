package mongoutil

import (
	"PRelay/tools/errs"
)

// ValidateAndSetDefaults 校验必填项并补默认值
func (c *Config) ValidateAndSetDefaults() error {
	if c.Uri == "" {
		return errs.ErrStoreConfig.WrapMsg("mongo uri is required")
	}
	if c.Database == "" {
		return errs.ErrStoreConfig.WrapMsg("mongo database is required")
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = defaultMaxPoolSize
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = defaultMaxRetry
	}
	return nil
}
