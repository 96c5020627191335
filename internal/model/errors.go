package model

import (
	"fmt"
	"time"
)

// 错误分级：
//   - DataIntegrityError   致命，输入数据不可信，整个回测立即终止
//   - ConstraintViolation  可恢复，仅拒绝单笔订单，回测继续
//   - ConfigurationError   致命，启动阶段配置非法

type DataIntegrityError struct {
	Reason string
	// 出错时最后一根成功处理的K线时间，用于定位
	At time.Time
}

func (e *DataIntegrityError) Error() string {
	if e.At.IsZero() {
		return fmt.Sprintf("data integrity error: %s", e.Reason)
	}
	return fmt.Sprintf("data integrity error at %s: %s", e.At.UTC().Format(time.RFC3339), e.Reason)
}

func NewDataIntegrityError(at time.Time, format string, args ...any) *DataIntegrityError {
	return &DataIntegrityError{Reason: fmt.Sprintf(format, args...), At: at}
}

type ConstraintViolation struct {
	Reason string
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation: %s", e.Reason)
}

func NewConstraintViolation(format string, args ...any) *ConstraintViolation {
	return &ConstraintViolation{Reason: fmt.Sprintf(format, args...)}
}

type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
