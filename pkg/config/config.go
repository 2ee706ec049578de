package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Gateway はAPI Gatewayサービスの設定。
type Gateway struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"8080"`
	// DBPath はユーザーデータベースのファイルパス。
	DBPath string `env:"GATEWAY_DB_PATH" envDefault:"/data/gateway.db"`
	// JWTSecret はJWTトークンの署名鍵。
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-key"`
	// AllowedOrigins はCORSで許可するオリジンの一覧。
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	// TaskServiceURL はタスクサービスのベースURL。
	TaskServiceURL string `env:"TASK_SERVICE_URL" envDefault:"http://localhost:8081"`
	// CustomerServiceURL は顧客サービスのベースURL。
	CustomerServiceURL string `env:"CUSTOMER_SERVICE_URL" envDefault:"http://localhost:8082"`
	// SalesServiceURL は商談サービスのベースURL。
	SalesServiceURL string `env:"SALES_SERVICE_URL" envDefault:"http://localhost:8083"`
	// EventStoreURL はEvent StoreサービスのベースURL。
	EventStoreURL string `env:"EVENTSTORE_URL" envDefault:"http://localhost:8084"`
	// ReportServiceURL はレポートサービスのベースURL。
	ReportServiceURL string `env:"REPORT_SERVICE_URL" envDefault:"http://localhost:8085"`
	// NotificationServiceURL は通知サービスのベースURL。
	NotificationServiceURL string `env:"NOTIFICATION_SERVICE_URL" envDefault:"http://localhost:8086"`
}

// Task はタスクサービスの設定。
type Task struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"8081"`
	// DBPath はタスクデータベースのファイルパス。
	DBPath string `env:"TASK_DB_PATH" envDefault:"/data/task.db"`
	// GatewayURL はGatewayサービスのベースURL。表示名の解決に使用する。
	GatewayURL string `env:"GATEWAY_URL" envDefault:"http://localhost:8080"`
	// CustomerServiceURL は顧客サービスのベースURL。
	CustomerServiceURL string `env:"CUSTOMER_SERVICE_URL" envDefault:"http://localhost:8082"`
	// SalesServiceURL は商談サービスのベースURL。
	SalesServiceURL string `env:"SALES_SERVICE_URL" envDefault:"http://localhost:8083"`
	// EventStoreURL はEvent StoreサービスのベースURL。
	EventStoreURL string `env:"EVENTSTORE_URL" envDefault:"http://localhost:8084"`
	// NotificationServiceURL は通知サービスのベースURL。
	NotificationServiceURL string `env:"NOTIFICATION_SERVICE_URL" envDefault:"http://localhost:8086"`
	// DirectoryCacheTTL は表示名キャッシュの有効期間。
	DirectoryCacheTTL time.Duration `env:"DIRECTORY_CACHE_TTL" envDefault:"60s"`
	// DirectoryCacheSize は表示名キャッシュの最大エントリ数。
	DirectoryCacheSize int `env:"DIRECTORY_CACHE_SIZE" envDefault:"1024"`
	// NotifyLanguage は通知文面の言語（BCP 47タグ）。
	NotifyLanguage string `env:"NOTIFY_LANGUAGE" envDefault:"en"`
}

// Customer は顧客サービスの設定。
type Customer struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"8082"`
	// DBPath は顧客データベースのファイルパス。
	DBPath string `env:"CUSTOMER_DB_PATH" envDefault:"/data/customer.db"`
	// EventStoreURL はEvent StoreサービスのベースURL。
	EventStoreURL string `env:"EVENTSTORE_URL" envDefault:"http://localhost:8084"`
}

// Sales は商談サービスの設定。
type Sales struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"8083"`
	// DBPath は商談データベースのファイルパス。
	DBPath string `env:"SALES_DB_PATH" envDefault:"/data/sales.db"`
	// EventStoreURL はEvent StoreサービスのベースURL。
	EventStoreURL string `env:"EVENTSTORE_URL" envDefault:"http://localhost:8084"`
}

// EventStore はEvent Storeサービスの設定。
type EventStore struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"8084"`
	// DBPath はイベントデータベースのファイルパス。
	DBPath string `env:"EVENTSTORE_DB_PATH" envDefault:"/data/eventstore.db"`
}

// Report はレポートサービスの設定。
type Report struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"8085"`
	// DBPath はリードモデルデータベースのファイルパス。
	DBPath string `env:"REPORT_DB_PATH" envDefault:"/data/report.db"`
	// EventStoreURL はEvent StoreサービスのベースURL。
	EventStoreURL string `env:"EVENTSTORE_URL" envDefault:"http://localhost:8084"`
	// PollInterval はEvent Storeのポーリング間隔。
	PollInterval time.Duration `env:"REPORT_POLL_INTERVAL" envDefault:"5s"`
}

// Notification は通知サービスの設定。
type Notification struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"8086"`
	// DBPath は通知データベースのファイルパス。
	DBPath string `env:"NOTIFICATION_DB_PATH" envDefault:"/data/notification.db"`
	// EventStoreURL はEvent StoreサービスのベースURL。
	EventStoreURL string `env:"EVENTSTORE_URL" envDefault:"http://localhost:8084"`
}

// Load は環境変数から型Tの設定を読み込む。
// 未設定の環境変数にはenvDefaultタグの値が使用される。
func Load[T any]() (*T, error) {
	var cfg T
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	return &cfg, nil
}
