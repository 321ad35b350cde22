package main

import (
	"context"
	"io"
	"net/http"

	"github.com/ceyewan/registrar/clog"
	"github.com/ceyewan/registrar/registrar"
)

// httpHealthCheck 以 GET 请求探测宿主健康：2xx 为 UP，其余状态码为 DOWN，请求失败为 UNKNOWN
type httpHealthCheck struct {
	url    string
	client *http.Client
	logger clog.Logger
}

func newHTTPHealthCheck(url string, logger clog.Logger) *httpHealthCheck {
	return &httpHealthCheck{url: url, client: &http.Client{}, logger: logger}
}

func (c *httpHealthCheck) Check(ctx context.Context) (registrar.Verdict, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return registrar.VerdictUnknown, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return registrar.VerdictUnknown, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return registrar.VerdictUp, nil
	}
	if resp.StatusCode < http.StatusInternalServerError {
		c.logger.Warn("unexpected status from host health endpoint",
			clog.String("url", c.url),
			clog.Int("status", resp.StatusCode))
	}
	return registrar.VerdictDown, nil
}
