// Package restyutil dumps the http exchanges of a resty client, it is
// meant for finding out why a scrape broke.
package restyutil

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

// Dump writes every response the client receives, with its request, to
// output. Credentials and cookies are redacted.
func Dump(client *resty.Client, output Output) {
	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		n := atomic.AddUint64(&counter, 1)
		id := fmt.Sprintf("%03d-%s.txt", n, strings.ToLower(res.Request.Method))
		output.Write(id, formatHttpMessage(res))
		return nil
	})
}
