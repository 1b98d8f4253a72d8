// Package logx provides a small structured logging facade over zerolog
// with live reconfiguration (level, sinks) via a Service.
package logx
