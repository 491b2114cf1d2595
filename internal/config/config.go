package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Dispatch DispatchConfig `yaml:"dispatch" json:"dispatch"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

type StoreConfig struct {
	// Backend: "sqlite" | "memory"
	Backend    string `yaml:"backend" json:"backend"`
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
}

type DispatchConfig struct {
	// TemplateNoteTitle is the note title the daily template is read from.
	TemplateNoteTitle string `yaml:"template_note_title" json:"template_note_title"`
}

func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "sqlite"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "data/dispatchtoo.db"
	}
	if c.Dispatch.TemplateNoteTitle == "" {
		c.Dispatch.TemplateNoteTitle = "Daily Template"
	}
}

func Default() *Config {
	var c Config
	c.ApplyDefaults()
	return &c
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	return &c, nil
}
