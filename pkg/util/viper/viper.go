package viper

import (
	"path/filepath"
	"strings"

	spfviper "github.com/spf13/viper"
)

// Config 封装 spf13/viper 实例，对外提供精简的 properties/YAML/JSON 配置加载接口。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config。
// 未调用 LoadFile 时，Unmarshal 只会得到默认值与环境变量。
func New() *Config {
	return &Config{
		v: spfviper.New(),
	}
}

func (c *Config) viper() *spfviper.Viper {
	if c.v == nil {
		c.v = spfviper.New()
	}
	return c.v
}

// LoadFile 将配置文件加载到 Config 中。
// 文件类型通过扩展名（.properties/.yaml/.yml/.json）推断。
func (c *Config) LoadFile(path string) error {
	v := c.viper()
	v.SetConfigFile(path)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".properties", ".props", ".prop":
		v.SetConfigType("properties")
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	case ".json":
		v.SetConfigType("json")
	default:
		// 让 viper 自行推断类型，或在读取时返回清晰的错误信息。
	}

	return v.ReadInConfig()
}

// SetDefault 设置 key 的默认值。
// 只有设置过默认值或出现在配置文件中的 key 才会被 AutomaticEnv 覆盖。
func (c *Config) SetDefault(key string, value any) {
	c.viper().SetDefault(key, value)
}

// AutomaticEnv 开启环境变量覆盖。
// key 中的 "." 与 "-" 会被替换为 "_"，并加上 prefix 前缀，
// 例如 prefix 为 CHATRELAY 时 session.send-queue-size 对应 CHATRELAY_SESSION_SEND_QUEUE_SIZE。
func (c *Config) AutomaticEnv(prefix string) {
	v := c.viper()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// IsSet 判断 key 是否在配置文件或环境变量中出现过。
func (c *Config) IsSet(key string) bool {
	return c.viper().IsSet(key)
}

// GetString 返回 key 对应的字符串值。
func (c *Config) GetString(key string) string {
	return c.viper().GetString(key)
}

// Unmarshal 将完整配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) Unmarshal(dst interface{}) error {
	return c.viper().Unmarshal(dst)
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) UnmarshalKey(key string, dst interface{}) error {
	return c.viper().UnmarshalKey(key, dst)
}
