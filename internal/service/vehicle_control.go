package service

import (
	"context"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/langchou/lxgazer/internal/api/lixiang"
	"github.com/langchou/lxgazer/internal/metrics"
	"github.com/langchou/lxgazer/internal/models"
	"github.com/langchou/lxgazer/internal/state"
)

// 空调指令类型
const (
	ACTypeWheelWarmOff = 1
	ACTypeWheelWarmOn  = 2
	ACTypeOff          = 20
	ACTypeSetTemp      = 21
	ACTypeOn           = 22
	ACTypeHeat         = 29
	ACTypeCool         = 31
)

// 空调温度
const (
	MinTemperature       = 16.0
	MaxTemperature       = 32.0
	TemperatureStep      = 0.5
	DefaultClimateTemp   = 26.0
	DefaultWheelWarmTemp = 23.5
)

// ValidTemperature 温度是否在 16–32 之间且为 0.5 的整数倍
func ValidTemperature(t float64) bool {
	if t < MinTemperature || t > MaxTemperature {
		return false
	}
	return math.Mod(t, TemperatureStep) == 0
}

func formatTemp(t float64) string {
	return strconv.FormatFloat(t, 'f', 1, 64)
}

// SendCommand 发送远程控制指令
// 响应 code 为 0 或不存在时成功；失败时记录完整的请求和响应
func (v *Vehicle) SendCommand(ctx context.Context, key string, data map[string]any) bool {
	pms, env := v.client.SendCommand(ctx, lixiang.Command{Key: key, Data: data})
	return v.finishCommand(ctx, key, pms, env)
}

// RemoteControl 发送不带参数或自定义参数的指令
func (v *Vehicle) RemoteControl(ctx context.Context, key string, data map[string]any) bool {
	return v.SendCommand(ctx, key, data)
}

// ACControl 空调类指令
func (v *Vehicle) ACControl(ctx context.Context, typ int, temp float64) bool {
	return v.SendCommand(ctx, lixiang.CommandACControl, map[string]any{
		"Type": strconv.Itoa(typ),
		"Temp": formatTemp(temp),
	})
}

// Lock 锁车
func (v *Vehicle) Lock(ctx context.Context) bool {
	return v.SendCommand(ctx, lixiang.CommandLock, nil)
}

// Unlock 解锁
func (v *Vehicle) Unlock(ctx context.Context) bool {
	return v.SendCommand(ctx, lixiang.CommandUnlock, nil)
}

// RemoteSearch 鸣笛寻车
func (v *Vehicle) RemoteSearch(ctx context.Context) bool {
	return v.SendCommand(ctx, lixiang.CommandSearch, nil)
}

// TakePhoto 请求车辆拍摄停车照片
func (v *Vehicle) TakePhoto(ctx context.Context) bool {
	pms, env := v.client.TakePhoto(ctx)
	return v.finishCommand(ctx, "take_photo", pms, env)
}

func (v *Vehicle) targetOr(def float64) float64 {
	if t := v.store.TargetTemperature(); t != nil && *t != 0 {
		return *t
	}
	return def
}

// ClimateOn 打开空调（自动模式），使用当前设定温度
func (v *Vehicle) ClimateOn(ctx context.Context) bool {
	return v.ACControl(ctx, ACTypeOn, v.targetOr(DefaultClimateTemp))
}

// ClimateOff 关闭空调
func (v *Vehicle) ClimateOff(ctx context.Context) bool {
	return v.ACControl(ctx, ACTypeOff, v.targetOr(DefaultClimateTemp))
}

// SetTemperature 设置空调温度
func (v *Vehicle) SetTemperature(ctx context.Context, t float64) bool {
	if !ValidTemperature(t) {
		v.logger.Warn("Invalid temperature", zap.Float64("temperature", t))
		return false
	}
	return v.ACControl(ctx, ACTypeSetTemp, t)
}

// SetHVACMode 切换空调模式
func (v *Vehicle) SetHVACMode(ctx context.Context, mode string) bool {
	switch mode {
	case state.HVACOff:
		return v.ClimateOff(ctx)
	case state.HVACAuto:
		return v.ACControl(ctx, ACTypeOn, v.targetOr(DefaultClimateTemp))
	case state.HVACCool:
		return v.ACControl(ctx, ACTypeCool, MinTemperature)
	case state.HVACHeat:
		return v.ACControl(ctx, ACTypeHeat, MaxTemperature)
	}
	v.logger.Warn("Unsupported hvac mode", zap.String("mode", mode))
	return false
}

// WheelWarmOn 打开方向盘加热
func (v *Vehicle) WheelWarmOn(ctx context.Context) bool {
	return v.ACControl(ctx, ACTypeWheelWarmOn, v.targetOr(DefaultWheelWarmTemp))
}

// WheelWarmOff 关闭方向盘加热
func (v *Vehicle) WheelWarmOff(ctx context.Context) bool {
	return v.ACControl(ctx, ACTypeWheelWarmOff, v.targetOr(DefaultWheelWarmTemp))
}

func (v *Vehicle) finishCommand(ctx context.Context, key string, pms map[string]any, env lixiang.Payload) bool {
	// 空响应说明请求没有到达服务端
	ok := len(env) > 0 && !lixiang.IsError(env)
	if !ok {
		v.logger.Warn("Remote control failed",
			zap.String("command", key),
			zap.Any("request", pms),
			zap.Any("response", env))
	} else {
		v.logger.Info("Remote control sent", zap.String("command", key))
	}
	metrics.Commands.WithLabelValues(v.VIN(), key, metrics.Result(ok)).Inc()

	if v.deps.Commands != nil {
		log := &models.CommandLog{
			VIN:      v.VIN(),
			Command:  key,
			Params:   pms,
			Response: env,
			Success:  ok,
		}
		if err := v.deps.Commands.Create(ctx, log); err != nil {
			v.logger.Error("Failed to record command", zap.Error(err))
		}
	}
	return ok
}
