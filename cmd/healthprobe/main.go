// healthprobe is a tiny exit-code health check for container images that
// ship without curl: HEALTHCHECK CMD ["/healthprobe", "-addr", "127.0.0.1:8080"].
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "host:port of the resultdb server")
	path := flag.String("path", "/readyz", "probe path")
	timeout := flag.Duration("timeout", 2*time.Second, "request timeout")
	flag.Parse()

	status, body, err := fasthttp.GetTimeout(nil, "http://"+*addr+*path, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
		os.Exit(1)
	}
	if status != fasthttp.StatusOK {
		fmt.Fprintf(os.Stderr, "probe returned %d: %s\n", status, body)
		os.Exit(1)
	}
	fmt.Printf("%s\n", body)
}
