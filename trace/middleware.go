package trace

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc/stats"
)

// GinMiddleware 状态端点的链路追踪中间件，skipPaths 中的路径不产生 span
func GinMiddleware(serviceName string, skipPaths ...string) gin.HandlerFunc {
	if len(skipPaths) == 0 {
		return otelgin.Middleware(serviceName)
	}
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		return !slices.Contains(skipPaths, r.URL.Path)
	}))
}

// GRPCServerStatsHandler 服务端 stats handler，供测试用的假注册中心使用
func GRPCServerStatsHandler() stats.Handler {
	return otelgrpc.NewServerHandler()
}

// GRPCClientStatsHandler 客户端 stats handler，安装在到注册中心的连接上
func GRPCClientStatsHandler() stats.Handler {
	return otelgrpc.NewClientHandler()
}
