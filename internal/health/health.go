package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

const (
	checkTimeout       = 5 * time.Second
	maxGoroutines      = 10000
	transportCheckName = "mail_transport"
)

// Pinger 可以探测连通性的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 将函数适配为 Pinger
type PingFunc func(ctx context.Context) error

// Ping 调用函数本身
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthChecker 健康检查器
type HealthChecker struct {
	health    healthcheck.Handler
	checks    map[string]healthcheck.Check
	logger    *zap.Logger
	startTime time.Time
}

// Report 汇总报告，用于 GET /health
type Report struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks"`
}

// NewHealthChecker 创建健康检查器，存活检查只包含进程自身状态
func NewHealthChecker(logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health:    healthcheck.NewHandler(),
		checks:    make(map[string]healthcheck.Check),
		logger:    logger,
		startTime: time.Now(),
	}
	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	return hc
}

// AddReadinessCheck 注册一个就绪检查，每次探测都有独立超时
func (hc *HealthChecker) AddReadinessCheck(name string, p Pinger) {
	check := healthcheck.Timeout(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()
		return p.Ping(ctx)
	}, checkTimeout)
	hc.checks[name] = check
	hc.health.AddReadinessCheck(name, check)
}

// AddTransportCheck 注册邮件传输检查，只出现在汇总报告中。
// 远端 SMTP 短暂不可用时实例仍然可以接收请求。
func (hc *HealthChecker) AddTransportCheck(p Pinger) {
	hc.checks[transportCheckName] = healthcheck.Timeout(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()
		return p.Ping(ctx)
	}, checkTimeout)
}

// Handler 返回健康检查处理器（/live 与 /ready）
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveEndpoint 存活探针
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪探针
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}

// Uptime 进程运行时间
func (hc *HealthChecker) Uptime() time.Duration {
	return time.Since(hc.startTime)
}

// CheckHealth 执行全部检查并汇总
func (hc *HealthChecker) CheckHealth() *Report {
	report := &Report{
		Status: "OK",
		Uptime: hc.Uptime().Round(time.Second).String(),
		Checks: make(map[string]string, len(hc.checks)),
	}

	for name, check := range hc.checks {
		if err := check(); err != nil {
			hc.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			report.Checks[name] = "ERROR: " + err.Error()
			if name == transportCheckName {
				if report.Status == "OK" {
					report.Status = "DEGRADED"
				}
				continue
			}
			report.Status = "ERROR"
			continue
		}
		report.Checks[name] = "OK"
	}
	return report
}
