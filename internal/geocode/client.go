// Package geocode は緯度経度から住所文字列を得る逆ジオコーディングを提供する。
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/parknote/internal/metrics"
)

const (
	// DefaultEndpoint はBigDataCloudのクライアント向け逆ジオコーディングAPI。
	DefaultEndpoint = "https://api.bigdatacloud.net/data/reverse-geocode-client"
	// maxResponseSize はレスポンスボディの上限（1MiB）。
	maxResponseSize = 1 << 20
)

// 結果の取得元。
const (
	SourceService     = metrics.GeocodeSourceService
	SourceCoordinates = metrics.GeocodeSourceCoordinates
)

// Result は逆ジオコーディングの結果。
type Result struct {
	Address string `json:"address"`
	Source  string `json:"source"`
}

// reverseResponse はBigDataCloud互換APIのレスポンスのうち使用する項目。
type reverseResponse struct {
	StreetNumber         string `json:"streetNumber"`
	StreetName           string `json:"streetName"`
	Locality             string `json:"locality"`
	City                 string `json:"city"`
	PrincipalSubdivision string `json:"principalSubdivision"`
	CountryName          string `json:"countryName"`
}

// Client は逆ジオコーディングAPIのクライアント。
// 本番ではSSRF防止付きのhttp.Clientを注入する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	metrics    metrics.MetricsCollector
}

// NewClient はClientの新しいインスタンスを生成する。
// endpointが空の場合はDefaultEndpointを使用する。
func NewClient(httpClient *http.Client, endpoint string, logger *slog.Logger, collector metrics.MetricsCollector) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		metrics:    collector,
	}
}

// Reverse は緯度経度を住所文字列に変換する。
// API呼び出しに失敗した場合や住所を組み立てられなかった場合は
// 座標表記（例: "37.8000°S, 144.9000°E"）をSourceCoordinatesとして返すため、エラーにはならない。
func (c *Client) Reverse(ctx context.Context, lat, lng float64) Result {
	start := time.Now()

	address, err := c.lookup(ctx, lat, lng)
	if err != nil {
		c.logger.Warn("逆ジオコーディングに失敗したため座標表記を返します",
			slog.String("error", err.Error()),
		)
	}

	result := Result{Address: address, Source: SourceService}
	if address == "" {
		result = Result{Address: FormatCoordinates(lat, lng), Source: SourceCoordinates}
	}

	c.metrics.RecordGeocode(result.Source, time.Since(start))
	return result
}

func (c *Client) lookup(ctx context.Context, lat, lng float64) (string, error) {
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("localityLanguage", "en")
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Parknote/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("逆ジオコーディングAPIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("逆ジオコーディングAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if len(body) > maxResponseSize {
		return "", fmt.Errorf("レスポンスボディが上限（%dバイト）を超えています", maxResponseSize)
	}

	var data reverseResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return formatAddress(data), nil
}

// formatAddress は "番地 通り名, 地域, 州, 国" の形式で住所を組み立てる。欠けている要素は省く。
func formatAddress(data reverseResponse) string {
	var parts []string

	// 通り名がない場合は番地だけを出さない
	if name := strings.TrimSpace(data.StreetName); name != "" {
		if number := strings.TrimSpace(data.StreetNumber); number != "" {
			name = number + " " + name
		}
		parts = append(parts, name)
	}

	if locality := firstNonEmpty(data.Locality, data.City); locality != "" {
		parts = append(parts, locality)
	}
	if s := strings.TrimSpace(data.PrincipalSubdivision); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(data.CountryName); s != "" {
		parts = append(parts, s)
	}

	return strings.Join(parts, ", ")
}

// FormatCoordinates は緯度経度を小数点以下4桁と方位記号で表記する。
func FormatCoordinates(lat, lng float64) string {
	latDir := "N"
	if lat < 0 {
		latDir = "S"
	}
	lngDir := "E"
	if lng < 0 {
		lngDir = "W"
	}
	return fmt.Sprintf("%.4f°%s, %.4f°%s", math.Abs(lat), latDir, math.Abs(lng), lngDir)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
