package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/cinesearch/internal/logging"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	DefaultBaseURL    = "https://www.omdbapi.com/"
	DefaultDebounceMS = 300
	MaxDebounceMS     = 5000
	DefaultTimeout    = 20 * time.Second
	DefaultRetryMax   = 2
	MaxRetry          = 10
	DefaultLogLevel   = "info"
)

// 环境变量名。
const (
	EnvAPIKey  = "OMDB_API_KEY"
	EnvBaseURL = "OMDB_BASE_URL"
)

// 自动发现时按此顺序查找（第一个存在的生效）。
var discoveryNames = []string{"cinesearch.json", "cinesearch.yaml", "cinesearch.yml"}

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息：
// 例如 --debounce=0 必须能覆盖配置文件中的 debounce_ms=300。
type CLIArgs struct {
	ConfigPath string

	APIKey    string
	APIKeySet bool

	BaseURL    string
	BaseURLSet bool

	Debounce    time.Duration
	DebounceSet bool

	LogLevel    string
	LogLevelSet bool
}

// LookupEnv 与 os.LookupEnv 同签名，便于测试注入。
type LookupEnv func(key string) (string, bool)

// FileConfig 对应 cinesearch.json / cinesearch.yaml 的解析结构。
type FileConfig struct {
	APIKey         string       `json:"api_key" yaml:"api_key"`
	BaseURL        string       `json:"base_url" yaml:"base_url"`
	DebounceMS     *int         `json:"debounce_ms" yaml:"debounce_ms"`
	TimeoutSeconds int          `json:"timeout_seconds" yaml:"timeout_seconds"`
	RetryMax       *int         `json:"retry_max" yaml:"retry_max"`
	RatePerSecond  float64      `json:"rate_per_second" yaml:"rate_per_second"`
	Burst          int          `json:"burst" yaml:"burst"`
	Proxy          *ProxyConfig `json:"proxy" yaml:"proxy"`
	LogLevel       string       `json:"log_level" yaml:"log_level"`
	LogFile        string       `json:"log_file" yaml:"log_file"`
	MetricsAddr    string       `json:"metrics_addr" yaml:"metrics_addr"`
}

type ProxyConfig struct {
	URL string `json:"url" yaml:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件；未读取任何文件时为空。
	ConfigPath string

	// APIKey 可以为空：是否缺失由命令自行提示，这里不校验。
	APIKey  string
	BaseURL string

	Debounce time.Duration
	Timeout  time.Duration
	RetryMax int

	// RatePerSecond 为 0 表示不限速。
	RatePerSecond float64
	Burst         int

	ProxyURL    string
	LogLevel    string
	LogFile     string
	MetricsAddr string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，再依次叠加环境变量与 CLI 参数。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在，按扩展名选择 yaml 或 json
// 2) 否则依次尝试 <cwd>/cinesearch.json、cinesearch.yaml、cinesearch.yml（都可选）
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 默认值。
// 环境变量只覆盖 api_key 与 base_url。
func LoadEffective(cwd string, cli CLIArgs, env LookupEnv) (EffectiveConfig, error) {
	if env == nil {
		env = os.LookupEnv
	}
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)

	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath = absCleanFrom(cwdAbs, p)
		var exists bool
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		for _, name := range discoveryNames {
			candidate := filepath.Join(cwdAbs, name)
			got, exists, err := readFileConfig(candidate)
			if err != nil {
				return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: candidate, Err: err}
			}
			if exists {
				cfgPath, fc = candidate, got
				break
			}
		}
	}

	return merge(cli, env, fc, cfgPath)
}

func merge(cli CLIArgs, env LookupEnv, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	// api_key / base_url：CLI > env > config > 默认
	apiKey := strings.TrimSpace(fc.APIKey)
	if v, ok := env(EnvAPIKey); ok && strings.TrimSpace(v) != "" {
		apiKey = strings.TrimSpace(v)
	}
	if cli.APIKeySet {
		apiKey = strings.TrimSpace(cli.APIKey)
	}

	baseURL := strings.TrimSpace(fc.BaseURL)
	if v, ok := env(EnvBaseURL); ok && strings.TrimSpace(v) != "" {
		baseURL = strings.TrimSpace(v)
	}
	if cli.BaseURLSet {
		baseURL = strings.TrimSpace(cli.BaseURL)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return EffectiveConfig{}, invalid("base_url 无效：%q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return EffectiveConfig{}, invalid("base_url 必须是 http/https：%q", baseURL)
	}

	// debounce：CLI > config > 默认；截断到 [0, 5000]ms。
	debounceMS := DefaultDebounceMS
	if fc.DebounceMS != nil {
		debounceMS = *fc.DebounceMS
	}
	debounce := time.Duration(debounceMS) * time.Millisecond
	if cli.DebounceSet {
		debounce = cli.Debounce
	}
	if debounce < 0 {
		debounce = 0
	}
	if debounce > MaxDebounceMS*time.Millisecond {
		debounce = MaxDebounceMS * time.Millisecond
	}

	if fc.TimeoutSeconds < 0 {
		return EffectiveConfig{}, invalid("timeout_seconds 不能为负数：%d", fc.TimeoutSeconds)
	}
	timeout := DefaultTimeout
	if fc.TimeoutSeconds > 0 {
		timeout = time.Duration(fc.TimeoutSeconds) * time.Second
	}

	retryMax := DefaultRetryMax
	if fc.RetryMax != nil {
		retryMax = *fc.RetryMax
	}
	if retryMax < 0 {
		retryMax = 0
	}
	if retryMax > MaxRetry {
		retryMax = MaxRetry
	}

	if fc.RatePerSecond < 0 {
		return EffectiveConfig{}, invalid("rate_per_second 不能为负数：%v", fc.RatePerSecond)
	}
	if fc.Burst < 0 {
		return EffectiveConfig{}, invalid("burst 不能为负数：%d", fc.Burst)
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, invalid("proxy.url 无效：%w", err)
		}
	}

	logLevel := strings.TrimSpace(fc.LogLevel)
	if cli.LogLevelSet {
		logLevel = strings.TrimSpace(cli.LogLevel)
	}
	if logLevel == "" {
		logLevel = DefaultLogLevel
	}
	if _, err := logging.ParseLevel(logLevel); err != nil {
		return EffectiveConfig{}, invalid("log_level 无效：%w", err)
	}
	logLevel = strings.ToLower(logLevel)

	return EffectiveConfig{
		ConfigPath:    cfgPath,
		APIKey:        apiKey,
		BaseURL:       baseURL,
		Debounce:      debounce,
		Timeout:       timeout,
		RetryMax:      retryMax,
		RatePerSecond: fc.RatePerSecond,
		Burst:         fc.Burst,
		ProxyURL:      proxyURL,
		LogLevel:      logLevel,
		LogFile:       strings.TrimSpace(fc.LogFile),
		MetricsAddr:   strings.TrimSpace(fc.MetricsAddr),
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析配置文件；.yaml/.yml 按 YAML 解析，其它按 JSON。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = json.Unmarshal(b, &fc)
	}
	if err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
