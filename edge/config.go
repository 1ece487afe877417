package edge

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 网关启动时构造一次的只读配置。请求路径上禁止读任何全局环境，
// 全部依赖都在这里注入。
type Config struct {
	Addr               string        `mapstructure:"addr"`
	JWTSecret          string        `mapstructure:"jwt_secret"`
	AuthServiceURL     string        `mapstructure:"auth_service_url"`
	GameServiceURL     string        `mapstructure:"game_service_url"`
	CORSOrigins        []string      `mapstructure:"cors_origins"`
	UpstreamTimeout    time.Duration `mapstructure:"upstream_timeout"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	LogFile            string        `mapstructure:"log_file"`
}

// LoadConfig 读取配置：可选 YAML 文件 + VOXEL_ 前缀环境变量覆盖。
// path 为空时只用默认值和环境变量。
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("addr", ":8080")
	v.SetDefault("jwt_secret", "dev-secret-change-me")
	v.SetDefault("auth_service_url", "http://127.0.0.1:7001")
	v.SetDefault("game_service_url", "http://127.0.0.1:7002")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("upstream_timeout", "15s")
	v.SetDefault("rate_limit_per_minute", 300)
	v.SetDefault("log_file", "edge.log")

	v.SetEnvPrefix("VOXEL")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.UpstreamTimeout <= 0 {
		return nil, fmt.Errorf("upstream_timeout must be positive")
	}
	return &c, nil
}
