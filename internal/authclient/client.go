// Package authclient は認証コラボレーターAPIのHTTPクライアントを提供する。
// ログイン・ログアウト・プロフィール取得をJSON over HTTPで呼び出す。
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/bizdesk/internal/metrics"
	"github.com/hitoshi/bizdesk/internal/model"
)

const (
	loginPath  = "/api/auth/login"
	logoutPath = "/api/auth/logout"
	mePath     = "/api/auth/me"

	// maxErrorBodySize はエラーレスポンスとして読み取る最大バイト数。
	maxErrorBodySize = 64 * 1024

	userAgent = "Bizdesk/1.0"
)

// 操作名（ログとメトリクスのラベル）
const (
	opLogin   = "login"
	opLogout  = "logout"
	opProfile = "profile"
)

// Client は認証コラボレーターAPIのクライアント。
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// limiterがnilの場合はリクエストを制限しない。
func NewClient(baseURL string, httpClient *http.Client, limiter *rate.Limiter, m metrics.MetricsCollector, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    limiter,
		metrics:    m,
		logger:     logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type meResponse struct {
	User *model.User `json:"user"`
}

// Login はメールアドレスとパスワードで認証し、トークンとユーザーを返す。
func (c *Client) Login(ctx context.Context, email, password string) (*model.LoginResult, error) {
	var result model.LoginResult
	if err := c.do(ctx, opLogin, http.MethodPost, loginPath, "", loginRequest{Email: email, Password: password}, &result); err != nil {
		return nil, err
	}
	if result.Token == "" || result.User == nil {
		return nil, fmt.Errorf("ログイン応答にトークンまたはユーザーが含まれていません")
	}
	return &result, nil
}

// Logout はトークンに紐づくサーバー側セッションを破棄する。
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, opLogout, http.MethodPost, logoutPath, token, nil, nil)
}

// GetProfile はトークンに対応するユーザープロフィールを取得する。
func (c *Client) GetProfile(ctx context.Context, token string) (*model.User, error) {
	var resp meResponse
	if err := c.do(ctx, opProfile, http.MethodGet, mePath, token, nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("プロフィール応答にユーザーが含まれていません")
	}
	return resp.User, nil
}

// do はJSONリクエストを送信し、2xxの場合はoutへデコードする。
// 2xx以外はmodel.APIErrorとして返す。
func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: リクエスト待機が中断されました: %w", op, err)
		}
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: リクエストのエンコードに失敗しました: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: HTTPリクエストの作成に失敗しました: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordCollaboratorLatency(op, time.Since(start))
	if err != nil {
		c.logger.Error("認証APIの呼び出しに失敗しました",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp)
		c.logger.Warn("認証APIがエラーステータスを返しました",
			slog.String("operation", op),
			slog.Int("http_status", resp.StatusCode),
			slog.String("code", apiErr.Code),
		)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: レスポンスJSONのパースに失敗しました: %w", op, err)
	}
	return nil
}

// decodeAPIError はエラーレスポンスを統一エラーフォーマットに変換する。
// デコードできない場合はINTERNAL_ERRORとして扱う。
func decodeAPIError(resp *http.Response) *model.APIError {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err == nil {
		var apiErr model.APIError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Code != "" {
			return &apiErr
		}
	}

	apiErr := model.NewInternalError()
	apiErr.Message = fmt.Sprintf("Unexpected response from server (status %d)", resp.StatusCode)
	return apiErr
}
