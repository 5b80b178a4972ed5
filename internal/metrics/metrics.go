// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 登録結果のラベル値。
const (
	RegistrationCreated   = "created"
	RegistrationDuplicate = "duplicate"
	RegistrationInvalid   = "invalid"
)

// 逆ジオコーディング結果のソースラベル値。
const (
	GeocodeSourceService     = "service"
	GeocodeSourceCoordinates = "coordinates"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordRegistration(result string)
	RecordLogin(success bool)
	RecordNoteOperation(op string)
	RecordHTTPStatus(statusCode int)
	RecordGeocode(source string, duration time.Duration)
	RecordNotesPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations  *prometheus.CounterVec
	logins         *prometheus.CounterVec
	noteOps        *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	geocodeLatency *prometheus.HistogramVec
	notesPurged    prometheus.Counter
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parknote_registrations_total",
			Help: "ユーザー登録の試行数（結果別）",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parknote_logins_total",
			Help: "ログインの試行数（結果別）",
		}, []string{"result"}),
		noteOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parknote_note_operations_total",
			Help: "成功した駐車メモ操作の数（操作別）",
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parknote_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		geocodeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parknote_geocode_latency_seconds",
			Help:    "逆ジオコーディングのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		notesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parknote_notes_purged_total",
			Help: "保持期間切れで削除された駐車メモの合計数",
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.noteOps,
		c.httpStatus,
		c.geocodeLatency,
		c.notesPurged,
	)

	return c
}

// RecordRegistration は登録試行の結果を記録する。
func (c *Collector) RecordRegistration(result string) {
	c.registrations.WithLabelValues(result).Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

// RecordNoteOperation は駐車メモ操作（create/update/delete）の成功を記録する。
func (c *Collector) RecordNoteOperation(op string) {
	c.noteOps.WithLabelValues(op).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordGeocode は逆ジオコーディングの所要時間を結果のソース別に記録する。
func (c *Collector) RecordGeocode(source string, duration time.Duration) {
	c.geocodeLatency.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordNotesPurged はクリーンアップで削除されたメモ数を記録する。
func (c *Collector) RecordNotesPurged(count int64) {
	c.notesPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。
// メトリクスを必要としないコマンド（seed等）やテストで使用する。
type Nop struct{}

func (Nop) RecordRegistration(string)           {}
func (Nop) RecordLogin(bool)                    {}
func (Nop) RecordNoteOperation(string)          {}
func (Nop) RecordHTTPStatus(int)                {}
func (Nop) RecordGeocode(string, time.Duration) {}
func (Nop) RecordNotesPurged(int64)             {}
