package strategy

import (
	"sort"

	"edgesim/internal/model"

	"github.com/spf13/cast"
)

// 策略注册表：名称 -> 工厂。新策略只需注册，不需要改引擎核心

type Factory func(params map[string]any) (Strategy, error)

var registry = map[string]Factory{}

func Register(name string, f Factory) {
	registry[name] = f
}

// New 根据配置的名称和参数实例化策略，未知名称属于致命配置错误
func New(name string, params map[string]any) (Strategy, error) {
	f, ok := registry[name]
	if !ok {
		return nil, model.NewConfigurationError("unknown strategy: %q (available: %v)", name, Names())
	}
	return f(params)
}

// Names 已注册的策略名，按字典序
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// 参数读取工具，配置里的数字经过 yaml 解析后类型不定，统一用 cast 收敛

func floatParam(params map[string]any, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return cast.ToFloat64(v)
	}
	return def
}

func intParam(params map[string]any, key string, def int) int {
	if v, ok := params[key]; ok {
		return cast.ToInt(v)
	}
	return def
}
