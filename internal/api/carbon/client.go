package carbon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/modes"
	"github.com/langchou/tripgazer/internal/session"
)

// Client 碳排放后端客户端
type Client struct {
	httpClient  *http.Client
	baseURL     string
	legacyPaths bool
	logger      *zap.Logger
}

// NewClient 创建后端客户端
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// SetLegacyPaths 使用旧后端的 emissioins 路径（car、flight）
func (c *Client) SetLegacyPaths(enabled bool) {
	c.legacyPaths = enabled
}

// EmissionsPath 返回实际请求的排放计算路径
func (c *Client) EmissionsPath(path string) string {
	if !c.legacyPaths {
		return path
	}
	for _, mode := range []modes.Mode{modes.Car, modes.Flight} {
		prefix := "/emissions/" + string(mode) + "/"
		if strings.HasPrefix(path, prefix) {
			return "/emissioins/" + strings.TrimPrefix(path, "/emissions/")
		}
	}
	return path
}

// doRequest 执行请求，凭证非空时附加 Bearer 头
func (c *Client) doRequest(ctx context.Context, cred session.Credential, method, path string, in any) (int, []byte, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if !cred.Empty() {
		req.Header.Set("Authorization", cred.Bearer())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// call 发送请求并把失败统一为 NetworkError
func (c *Client) call(ctx context.Context, op string, cred session.Credential, method, path string, in any, fallback string) ([]byte, error) {
	status, data, err := c.doRequest(ctx, cred, method, path, in)
	if err != nil {
		c.logger.Debug("Backend request failed", zap.String("op", op), zap.String("path", path), zap.Error(err))
		return nil, &NetworkError{Op: op, Status: status, Message: fallback, Err: err}
	}

	if status < 200 || status >= 300 {
		var apiResp apiResponse
		_ = json.Unmarshal(data, &apiResp)

		msg := apiResp.Error
		if msg == "" {
			msg = apiResp.Message
		}
		if msg == "" {
			msg = fallback
		}
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
		}
		return nil, &NetworkError{Op: op, Status: status, Message: msg}
	}

	return data, nil
}

// CalculateEmissions 请求排放计算，返回 kg CO2e
// 排放值依次从 data.co2e_kg、emissionKg、data 中读取
func (c *Client) CalculateEmissions(ctx context.Context, cred session.Credential, path, method string, payload map[string]any) (float64, error) {
	if method == "" {
		method = http.MethodPost
	}

	data, err := c.call(ctx, "calculate emissions", cred, method, c.EmissionsPath(path), payload, "Calculation failed")
	if err != nil {
		return 0, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)
	}
	return extractEmission(result)
}

func extractEmission(result map[string]any) (float64, error) {
	var value any
	inner, _ := result["data"].(map[string]any)

	switch {
	case inner != nil && modes.Truthy(inner["co2e_kg"]):
		value = inner["co2e_kg"]
	case modes.Truthy(result["emissionKg"]):
		value = result["emissionKg"]
	case modes.Truthy(result["data"]):
		value = result["data"]
	default:
		return 0, ErrInvalidResponseFormat
	}

	if _, isBool := value.(bool); isBool {
		return 0, ErrInvalidResponseFormat
	}
	kg, ok := modes.ToNumber(value)
	if !ok {
		return 0, ErrInvalidResponseFormat
	}
	return kg, nil
}

// LogEmission 保存行程记录到用户历史
func (c *Client) LogEmission(ctx context.Context, cred session.Credential, record map[string]any) error {
	_, err := c.call(ctx, "log emission", cred, http.MethodPost, "/api/emissions/log", record, "Save failed")
	return err
}

// StartTrip 登记服务端行程，返回 tripId
func (c *Client) StartTrip(ctx context.Context, cred session.Credential, req StartTripRequest) (string, error) {
	data, err := c.call(ctx, "start trip", cred, http.MethodPost, "/trips/start", req, "Failed to start trip")
	if err != nil {
		return "", err
	}

	var resp struct {
		TripID string `json:"tripId"`
		Data   struct {
			TripID string `json:"tripId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)
	}

	tripID := resp.TripID
	if tripID == "" {
		tripID = resp.Data.TripID
	}
	if tripID == "" {
		return "", ErrInvalidResponseFormat
	}
	return tripID, nil
}

// EndTrip 通知服务端行程结束
func (c *Client) EndTrip(ctx context.Context, cred session.Credential, req EndTripRequest) error {
	_, err := c.call(ctx, "end trip", cred, http.MethodPost, "/trips/end", req, "Failed to end trip")
	return err
}

// Predict 上传传感器批次并获取出行方式预测
func (c *Client) Predict(ctx context.Context, cred session.Credential, req PredictRequest) (*PredictResponse, error) {
	data, err := c.call(ctx, "predict", cred, http.MethodPost, "/ai/predict", req, "Prediction failed")
	if err != nil {
		return nil, err
	}

	var resp PredictResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)
	}
	return &resp, nil
}

// CarMakes 获取车辆品牌列表
func (c *Client) CarMakes(ctx context.Context) ([]any, error) {
	return c.list(ctx, "car makes", "/api/emissions/car/makes")
}

// CarModels 获取指定品牌的车型列表
func (c *Client) CarModels(ctx context.Context, carMake string) ([]any, error) {
	return c.list(ctx, "car models", "/api/emissions/car/models/"+url.PathEscape(carMake))
}

// SearchAirports 搜索机场（IATA 代码、城市等）
func (c *Client) SearchAirports(ctx context.Context, query string) ([]any, error) {
	return c.list(ctx, "search airports", "/api/emissions/flight/airports?query="+url.QueryEscape(query))
}

// list 读取参考数据，data 为空时返回空列表
func (c *Client) list(ctx context.Context, op, path string) ([]any, error) {
	data, err := c.call(ctx, op, "", http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []any `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)
	}
	if resp.Data == nil {
		return []any{}, nil
	}
	return resp.Data, nil
}
