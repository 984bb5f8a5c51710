package errs

const (
	ErrorInternal    = 520000 //系统异常
	ErrorNotFound    = 520001 //实例不存在(租约已过期,需重新注册)
	ErrorNoInstance  = 520002 //无可用服务实例
	ErrorCallTimeout = 520003 //远程调用超时
	ErrorCallFailed  = 520004 //远程调用失败
	ErrorBreakerOpen = 520005 //熔断器打开,请求被短路
)
