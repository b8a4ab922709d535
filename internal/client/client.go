package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"timetable-collator/config"
	"timetable-collator/internal/model"
	apperrors "timetable-collator/pkg/errors"
)

// ── 上游课表 API 客户端 ───────────────────────────────────
//
// 所有接口返回 JSON 数组。HTTP 状态码按错误类别归类：
//   - 401/403 → 认证错误（不重试，终止运行）
//   - 404     → 数据不存在（如未来学期尚无考试数据）
//   - 429/5xx、网络错误 → 临时性错误（可重试）
//   - 响应体无法解析 → 校验错误
//
// Client 的生命周期限定在一次流水线运行内，由调用方构造并传入。
// ─────────────────────────────────────────────────────────────

// Client 上游 API 客户端
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

// New 创建客户端；配置了 OAuth 时使用 client credentials 令牌
func New(cfg *config.APIConfig, logger *zap.Logger) *Client {
	base := &http.Client{Timeout: cfg.Timeout}
	httpClient := base
	if cfg.OAuth.Enabled() {
		cc := &clientcredentials.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			TokenURL:     cfg.OAuth.TokenURL,
			Scopes:       cfg.OAuth.Scopes,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = cc.Client(ctx)
		httpClient.Timeout = cfg.Timeout
	}
	return NewWithHTTPClient(httpClient, cfg.BaseURL, cfg.APIKey, logger)
}

// NewWithHTTPClient 使用指定的 http.Client 创建客户端
func NewWithHTTPClient(httpClient *http.Client, baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

// FetchFacultyList 获取学院代码表
func (c *Client) FetchFacultyList(ctx context.Context) ([]model.OrgRef, error) {
	var out []model.OrgRef
	err := c.getJSON(ctx, "faculties", nil, &out)
	return out, err
}

// FetchDepartmentList 获取部门代码表
func (c *Client) FetchDepartmentList(ctx context.Context) ([]model.OrgRef, error) {
	var out []model.OrgRef
	err := c.getJSON(ctx, "departments", nil, &out)
	return out, err
}

// FetchModuleInfo 获取某学期某部门的模块描述
func (c *Client) FetchModuleInfo(ctx context.Context, term, deptCode string) ([]model.RawModuleInfo, error) {
	var out []model.RawModuleInfo
	err := c.getJSON(ctx, "modules", url.Values{"term": {term}, "acadorg": {deptCode}}, &out)
	return out, err
}

// FetchExams 获取某学期的考试安排
func (c *Client) FetchExams(ctx context.Context, term string) ([]model.RawExam, error) {
	var out []model.RawExam
	err := c.getJSON(ctx, "exams", url.Values{"term": {term}}, &out)
	return out, err
}

// FetchTimetable 逐条解码课表并回调 fn，不缓冲整个响应
func (c *Client) FetchTimetable(ctx context.Context, term string, fn func(model.RawLessonEvent)) error {
	op := "timetable " + term
	resp, err := c.do(ctx, op, "timetable", url.Values{"term": {term}})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	tok, err := dec.Token()
	if err != nil {
		return streamError(op, fmt.Errorf("读取响应开头失败: %w", err))
	}
	if tok != json.Delim('[') {
		return apperrors.Validation(op, fmt.Errorf("响应应为 JSON 数组，实际以 %v 开头", tok))
	}
	n := 0
	for dec.More() {
		var ev model.RawLessonEvent
		if err := dec.Decode(&ev); err != nil {
			return streamError(op, fmt.Errorf("第 %d 条记录解析失败: %w", n, err))
		}
		fn(ev)
		n++
	}
	if _, err := dec.Token(); err != nil {
		return streamError(op, fmt.Errorf("响应体不完整: %w", err))
	}
	c.logger.Debug("课表接收完成", zap.String("term", term), zap.Int("events", n))
	return nil
}

// ── 辅助函数 ──

// streamError 流式解码失败分类：内容本身不合法为 Validation，
// 连接中断、截断 (unexpected EOF) 等读取失败为 Transient
func streamError(op string, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return apperrors.Validation(op, err)
	}
	return apperrors.Transient(op, err)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	op := path
	if len(query) > 0 {
		op += "?" + query.Encode()
	}
	resp, err := c.do(ctx, op, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Transient(op, fmt.Errorf("读取响应失败: %w", err))
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return apperrors.Validation(op, fmt.Errorf("解析响应失败: %w", err))
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperrors.Validation(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Transient(op, err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	resp.Body.Close()
	err = fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	return nil, apperrors.New(classify(resp.StatusCode), op, err)
}

func classify(status int) apperrors.Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.KindAuth
	case status == http.StatusNotFound:
		return apperrors.KindNotFound
	case status >= 400 && status < 500 && status != http.StatusTooManyRequests && status != http.StatusRequestTimeout:
		return apperrors.KindValidation
	default:
		return apperrors.KindTransient
	}
}
