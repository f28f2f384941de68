package advisor

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"
)

// Version 服务版本号
const Version = "1.0.0"

const banner = `
    _       _       _
   / \   __| |_   _(_)___  ___  _ __     %s
  / _ \ / _` + "`" + ` \ \ / / / __|/ _ \| '__|    student advisor portal
 / ___ \ (_| |\ V /| \__ \ (_) | |       open: %s
/_/   \_\__,_| \_/ |_|___/\___/|_|       version: %s
`

// printBanner 打印启动 banner 和路由表
func (e *Engine) printBanner(addr string) {
	out := os.Stdout

	var open string
	switch {
	case strings.HasPrefix(addr, ":"):
		open = "http://127.0.0.1" + addr
	case strings.HasPrefix(addr, "[::]:"):
		open = "http://127.0.0.1" + strings.TrimPrefix(addr, "[::]")
	case strings.HasPrefix(addr, "0.0.0.0:"):
		open = "http://127.0.0.1" + strings.TrimPrefix(addr, "0.0.0.0")
	default:
		open = "http://" + addr
	}

	fPrint(out, banner, e.config.Name, open, e.config.Version)
	fPrint(out, "\n")

	if routes := e.engine.Routes(); len(routes) > 0 {
		printRoutes(out, routes, e.config.Mode)
		fPrint(out, "\n")
	}

	mode := e.config.Mode
	if mode == gin.DebugMode {
		fPrint(out, "[Advisor] Running in \"%s\" mode. Switch to \"release\" mode in production.\n", mode)
	} else {
		fPrint(out, "[Advisor] Running in \"%s\" mode.\n", mode)
	}
	fPrint(out, "[Advisor] Go version: %s | OS: %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fPrint(out, "[Advisor] Listening on %s\n", addr)
}

// methodColor 根据 HTTP 方法返回 ANSI 颜色码
func methodColor(method string) string {
	switch method {
	case "GET":
		return "\033[34m"
	case "POST":
		return "\033[32m"
	case "PUT":
		return "\033[33m"
	case "DELETE":
		return "\033[31m"
	case "PATCH":
		return "\033[36m"
	default:
		return "\033[0m"
	}
}

const resetColor = "\033[0m"

// printRoutes 按路径列宽对齐打印路由表
func printRoutes(out io.Writer, routes gin.RoutesInfo, mode string) {
	maxPathLen := 0
	for _, r := range routes {
		if len(r.Path) > maxPathLen {
			maxPathLen = len(r.Path)
		}
	}

	for _, r := range routes {
		fPrint(out, "[Advisor-%s] %s %-7s %s %-*s --> %s\n",
			mode,
			methodColor(r.Method), r.Method, resetColor,
			maxPathLen, r.Path,
			r.Handler)
	}
}

// silenceGin 静默 Gin 的默认输出
func silenceGin() {
	gin.DefaultWriter = io.Discard
	gin.DefaultErrorWriter = io.Discard
}

func fPrint(out io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(out, format, a...)
}
