// Package middleware 提供HTTP中间件: 存储注入、日志、指标、追踪、CORS、限流与熔断.
package middleware
