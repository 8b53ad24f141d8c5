package lixiang

import (
	"context"
	"fmt"
)

// 远程控制指令
const (
	CommandLock         = "remote_central_lock_lock"
	CommandUnlock       = "remote_central_lock_unlock"
	CommandSearch       = "remote_veh_search"
	CommandACControl    = "remote_ac_ctrl_new"
	commandEndpoint     = "/ssp-as-mobile-api/v3-0/remote-vehicle-control/send-command"
	takePhotoEndpoint   = "/ssp-as-mobile-api/v1-0/vehicles/svm/take-photo"
	vehicleInfoEndpoint = "/aisp-account-api/v1-0/vehicles/%s"
)

// Command 远程控制请求
type Command struct {
	Key  string
	Data map[string]any
}

// Params 组装指令请求体
func (cmd Command) Params(vin string) map[string]any {
	pms := map[string]any{
		"vin":        vin,
		"commandKey": cmd.Key,
	}
	if len(cmd.Data) > 0 {
		pms["commandData"] = cmd.Data
	}
	return pms
}

// VehicleInfo 获取车辆静态信息（车型、车牌、图片）
func (c *Client) VehicleInfo(ctx context.Context) (Payload, bool) {
	return c.Fetch(ctx, fmt.Sprintf(vehicleInfoEndpoint, c.vin))
}

// RealtimeState 获取车辆实时状态
func (c *Client) RealtimeState(ctx context.Context) (Payload, bool) {
	return c.Fetch(ctx, fmt.Sprintf("/ssp-as-mobile-api/v3-0/vehicles/%s/real-time-state", c.vin))
}

// Mileage 获取总里程
func (c *Client) Mileage(ctx context.Context) (Payload, bool) {
	return c.Fetch(ctx, fmt.Sprintf("/ssp-as-mobile-api/v3-0/vehicles/energy-cost/total/%s", c.vin))
}

// TireAlarm 获取胎压告警
func (c *Client) TireAlarm(ctx context.Context) (Payload, bool) {
	return c.Fetch(ctx, fmt.Sprintf("/ssp-as-mobile-api/v1-0/vehicles/tire/alarm/%s", c.vin))
}

// MonthlyEnergy 获取指定月份的能耗
func (c *Client) MonthlyEnergy(ctx context.Context, year, month int) (Payload, bool) {
	return c.Fetch(ctx, fmt.Sprintf("/ssp-as-mobile-api/v3-0/vehicles/energy-cost/monthly/%d/%d/%s", year, month, c.vin))
}

// ParkingPhotos 获取哨兵停车照片
func (c *Client) ParkingPhotos(ctx context.Context) (Payload, bool) {
	return c.Fetch(ctx, fmt.Sprintf("/ssp-as-mobile-api/v1-0/vehicles/%s/parking-photos", c.vin))
}

// TakePhoto 请求车辆拍照，返回完整响应
func (c *Client) TakePhoto(ctx context.Context) (map[string]any, Payload) {
	pms := map[string]any{"vin": c.vin}
	return pms, c.RequestRaw(ctx, takePhotoEndpoint, pms)
}

// SendCommand 发送远程控制指令，返回请求体和完整响应
func (c *Client) SendCommand(ctx context.Context, cmd Command) (map[string]any, Payload) {
	pms := cmd.Params(c.vin)
	return pms, c.RequestRaw(ctx, commandEndpoint, pms)
}
