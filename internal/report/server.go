package report

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nao1215/crmhub/pkg/config"
	"github.com/nao1215/crmhub/pkg/middleware"
)

// Server はレポートサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はRead Modelへのアクセスを提供する。
	store *Store
	// db はSQLiteデータベース接続。
	db *sqlx.DB
	// projector はEvent Storeをポーリングする投影プロセス。
	projector *Projector
}

// NewServer は新しいレポートサーバーを生成する。
func NewServer(cfg *config.Report) (*Server, error) {
	db, err := sqlx.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(db); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	store := NewStore(db)
	s := &Server{
		router:    router,
		port:      cfg.Port,
		store:     store,
		db:        db,
		projector: NewProjector(store, cfg.EventStoreURL, cfg.PollInterval),
	}
	s.setupRoutes()

	return s, nil
}

// Run は投影プロセスとHTTPサーバーを起動する。
func (s *Server) Run() error {
	s.projector.Start(context.Background())
	defer s.projector.Stop()
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	api.Use(middleware.InternalAuth())
	{
		reports := api.Group("/reports")
		{
			// ステータス別のタスク集計
			reports.GET("/tasks/summary", s.handleTaskSummary())
			// 最近の活動フィード（クエリパラメータ: limit）
			reports.GET("/activity", s.handleActivity())
		}

		internal := api.Group("/internal")
		{
			// Read Modelの再構築
			internal.POST("/rebuild", s.handleRebuild())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "report"})
	})
}

// handleTaskSummary はステータス別のタスク件数を返すハンドラ。
func (s *Server) handleTaskSummary() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := s.store.Summarize(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "集計の取得に失敗しました"})
			log.Printf("集計エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// activityResponse は活動記録のJSONレスポンス構造。
type activityResponse struct {
	// TaskID は対象タスクのID。
	TaskID string `json:"task_id"`
	// ActorUID は操作を実行したユーザーのID。
	ActorUID string `json:"actor_uid"`
	// Action は操作の種類。
	Action string `json:"action"`
	// Detail は操作の詳細。
	Detail string `json:"detail"`
	// OccurredAt は発生日時（RFC3339形式）。
	OccurredAt string `json:"occurred_at"`
}

// handleActivity は最近の活動フィードを返すハンドラ。
// limitクエリパラメータで件数を指定できる（デフォルト20、最大100）。
func (s *Server) handleActivity() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if v := c.Query("limit"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limitは正の整数で指定してください"})
				return
			}
			limit = min(parsed, 100)
		}

		activities, err := s.store.ListActivities(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "活動記録の取得に失敗しました"})
			log.Printf("活動記録取得エラー: %v", err)
			return
		}

		responses := make([]activityResponse, 0, len(activities))
		for _, a := range activities {
			responses = append(responses, activityResponse{
				TaskID:     a.TaskID,
				ActorUID:   a.ActorUID,
				Action:     a.Action,
				Detail:     a.Detail,
				OccurredAt: a.OccurredAt.UTC().Format(time.RFC3339),
			})
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleRebuild はRead Modelの再構築を処理するハンドラ。
func (s *Server) handleRebuild() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.projector.RebuildFromEventStore(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Read Modelの再構築に失敗しました"})
			log.Printf("再構築エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Read Modelを再構築しました"})
	}
}
