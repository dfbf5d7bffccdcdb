package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`

	Transport struct {
		TimeoutMS int `yaml:"timeoutMS"`
		ChunkSize int `yaml:"chunkSize"`
	} `yaml:"transport"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.Sqlite.Dsn = "exchanges.sqlite3"
	c.Sqlite.Prefix = "xhrbridge_"
	c.Log.Level = "info"
	c.Log.Writer = []string{"console"}
	c.Transport.TimeoutMS = 30000
	c.Transport.ChunkSize = 32 * 1024
	return c
}

// Load 从 yaml 文件读取配置，缺失字段使用默认值
func Load(path string) (*Config, error) {
	c := NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}
