package utils

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/mpapenbr/qualipredict/log"
)

// WaitForTCP polls addr until a tcp connection can be established, the
// timeout is reached or ctx is done.
func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	log.Debug("wait for tcp connection",
		log.String("addr", addr),
		log.Duration("timeout", timeout))
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			log.Debug("tcp connection successful",
				log.String("addr", addr),
				log.Duration("duration", time.Since(start)))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s could not be reached after %v: %w",
				addr, time.Since(start).Round(time.Millisecond), err)
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// ExtractFromNatsURL returns host:port of a nats url. The default port 4222
// is used if the url has none. Only the first server of a comma separated
// list is considered.
func ExtractFromNatsURL(url string) string {
	param := resolveRegex(
		"^(?P<proto>nats|tls)://([^@,/]*@)?(?P<addr>(?P<host>[^:,/]+)(:(?P<port>\\d+))?)", url)
	if len(param) == 0 || param["host"] == "" {
		return ""
	}
	if port := param["port"]; port != "" {
		return param["addr"]
	}
	return fmt.Sprintf("%s:4222", param["host"])
}

// ExtractFromHTTPURL returns host:port of an http(s) url, using 80 or 443
// when no port is given.
func ExtractFromHTTPURL(url string) string {
	param := resolveRegex(
		"^(?P<proto>http|https)://(?P<addr>(?P<host>[^:/]+)(:(?P<port>\\d+))?)", url)
	if len(param) == 0 || param["host"] == "" {
		return ""
	}
	switch {
	case param["port"] != "":
		return param["addr"]
	case param["proto"] == "https":
		return fmt.Sprintf("%s:443", param["host"])
	default:
		return fmt.Sprintf("%s:80", param["host"])
	}
}

func resolveRegex(regEx, url string) (paramsMap map[string]string) {
	compRegEx := regexp.MustCompile(regEx)
	match := compRegEx.FindStringSubmatch(url)
	if match == nil {
		return nil
	}
	paramsMap = make(map[string]string)
	for i, name := range compRegEx.SubexpNames() {
		if i > 0 && name != "" {
			paramsMap[name] = match[i]
		}
	}
	return paramsMap
}
