package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix 环境变量前缀，如 SITEREPORT_API_BASE_URL
const EnvPrefix = "SITEREPORT"

// FileName 默认配置文件名
const FileName = "config.toml"

// AppConfig 应用配置
type AppConfig struct {
	Server ServerConfig `toml:"server" envconfig:"SERVER"`
	API    APIConfig    `toml:"api" envconfig:"API"`
	Data   DataConfig   `toml:"data" envconfig:"DATA"`
	Layout LayoutConfig `toml:"layout" envconfig:"LAYOUT"`
	Watch  WatchConfig  `toml:"watch" envconfig:"WATCH"`
}

// ServerConfig 本地服务配置
type ServerConfig struct {
	Port    int  `toml:"port" envconfig:"PORT"`
	DevMode bool `toml:"dev_mode" envconfig:"DEV_MODE"`
	Debug   bool `toml:"debug" envconfig:"DEBUG"`
}

// APIConfig 远程日报平台
type APIConfig struct {
	BaseURL               string `toml:"base_url" envconfig:"BASE_URL"`
	LoginTimeoutSeconds   int    `toml:"login_timeout_seconds" envconfig:"LOGIN_TIMEOUT_SECONDS"`
	UploadTimeoutSeconds  int    `toml:"upload_timeout_seconds" envconfig:"UPLOAD_TIMEOUT_SECONDS"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds" envconfig:"REQUEST_TIMEOUT_SECONDS"`
	SuccessCodes          []int  `toml:"success_codes" envconfig:"SUCCESS_CODES"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir string `toml:"data_dir" envconfig:"DATA_DIR"`
}

// LayoutConfig 日报模板行区间
type LayoutConfig struct {
	TaskStartRow    int `toml:"task_start_row" envconfig:"TASK_START_ROW"`
	TaskEndRow      int `toml:"task_end_row" envconfig:"TASK_END_ROW"`
	SectionStartRow int `toml:"section_start_row" envconfig:"SECTION_START_ROW"`
	SectionEndRow   int `toml:"section_end_row" envconfig:"SECTION_END_ROW"`
}

// WatchConfig 收件目录监听
type WatchConfig struct {
	Directory  string   `toml:"directory" envconfig:"DIRECTORY"`
	Extensions []string `toml:"extensions" envconfig:"EXTENSIONS"`
	DebounceMS int      `toml:"debounce_ms" envconfig:"DEBOUNCE_MS"`
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path          string
	FromFile      bool
	PortSpecified bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port: 20261,
		},
		API: APIConfig{
			BaseURL:               "http://localhost:8081",
			LoginTimeoutSeconds:   10,
			UploadTimeoutSeconds:  60,
			RequestTimeoutSeconds: 10,
			SuccessCodes:          []int{1, 200},
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Layout: LayoutConfig{
			TaskStartRow:    6,
			TaskEndRow:      20,
			SectionStartRow: 20,
			SectionEndRow:   80,
		},
		Watch: WatchConfig{
			Extensions: []string{".xlsx", ".xls"},
			DebounceMS: 800,
		},
	}
}

// LoginTimeout 登录超时
func (c APIConfig) LoginTimeout() time.Duration {
	return time.Duration(c.LoginTimeoutSeconds) * time.Second
}

// UploadTimeout 批量上传超时
func (c APIConfig) UploadTimeout() time.Duration {
	return time.Duration(c.UploadTimeoutSeconds) * time.Second
}

// RequestTimeout 其他请求超时
func (c APIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Debounce 文件事件合并间隔
func (c WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}
	serverMap, ok := raw["server"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// DefaultPath 可执行文件同目录下的 config.toml
func DefaultPath() string {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	return filepath.Join(exeDir, FileName)
}

// LoadConfigWithInfo 从默认位置加载配置
func LoadConfigWithInfo() (*AppConfig, LoadConfigInfo, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom 从指定文件加载配置；文件不存在时使用默认值，最后应用环境变量
func LoadFrom(path string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{Path: path}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		info.FromFile = true
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, info, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, info, err
	}

	// 只覆盖已设置的环境变量
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, info, fmt.Errorf("failed to apply environment: %w", err)
	}
	if os.Getenv(EnvPrefix+"_SERVER_PORT") != "" {
		info.PortSpecified = true
	}
	return cfg, info, nil
}

// SaveConfig 保存配置
func SaveConfig(cfg *AppConfig, path string) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ResolveDataDir 相对路径按可执行文件目录解析
func ResolveDataDir(cfg *AppConfig) string {
	if filepath.IsAbs(cfg.Data.DataDir) {
		return cfg.Data.DataDir
	}
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	return filepath.Join(exeDir, cfg.Data.DataDir)
}

// EnsureDataDir 确保数据目录及 uploads 子目录存在
func EnsureDataDir(cfg *AppConfig) (string, error) {
	dataDir := ResolveDataDir(cfg)
	if err := os.MkdirAll(filepath.Join(dataDir, "uploads"), 0755); err != nil {
		return "", err
	}
	return dataDir, nil
}

// DBPath 上传历史数据库路径
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "sitereport.db")
}

// UploadsDir 暂存上传文件的目录
func UploadsDir(dataDir string) string {
	return filepath.Join(dataDir, "uploads")
}
