package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// API 请求结果
const (
	OutcomeOK             = "ok"
	OutcomeTransportError = "transport_error"
	OutcomeHTTPError      = "http_error"
	OutcomeDecodeError    = "decode_error"
	OutcomeEncodeError    = "encode_error"
	OutcomeAppError       = "app_error"
)

var (
	// APIRequests 理想汽车 API 请求计数
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lxgazer",
		Name:      "api_requests_total",
		Help:      "Vendor API requests by outcome.",
	}, []string{"outcome"})

	// RefreshDuration 刷新周期耗时
	RefreshDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lxgazer",
		Name:      "refresh_duration_seconds",
		Help:      "Duration of one refresh cycle.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"vin", "cycle"})

	// LastRefresh 最近一次刷新完成时间
	LastRefresh = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lxgazer",
		Name:      "last_refresh_timestamp_seconds",
		Help:      "Unix time of the last completed refresh cycle.",
	}, []string{"vin", "cycle"})

	// Commands 远程控制指令计数
	Commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lxgazer",
		Name:      "commands_total",
		Help:      "Remote commands by key and result.",
	}, []string{"vin", "command", "result"})

	// Battery 电量百分比
	Battery = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lxgazer",
		Name:      "battery_percent",
		Help:      "Last known battery level.",
	}, []string{"vin"})
)

// init 注册到默认 Registry，由 /metrics 端点输出
func init() {
	prometheus.MustRegister(APIRequests)
	prometheus.MustRegister(RefreshDuration)
	prometheus.MustRegister(LastRefresh)
	prometheus.MustRegister(Commands)
	prometheus.MustRegister(Battery)
}

// Result 将布尔结果转为标签值
func Result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
