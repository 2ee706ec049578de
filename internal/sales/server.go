package sales

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nao1215/crmhub/pkg/config"
	"github.com/nao1215/crmhub/pkg/event"
	"github.com/nao1215/crmhub/pkg/httpclient"
	"github.com/nao1215/crmhub/pkg/middleware"
)

// Server は商談サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store は商談テーブルへのアクセスを提供する。
	store *Store
	// db はSQLiteデータベース接続。
	db *sqlx.DB
	// eventClient はEvent StoreへのHTTPクライアント。
	eventClient *httpclient.Client
}

// NewServer は新しい商談サーバーを生成する。
func NewServer(cfg *config.Sales) (*Server, error) {
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

	s := &Server{
		router:      router,
		port:        cfg.Port,
		store:       NewStore(db),
		db:          db,
		eventClient: httpclient.New(cfg.EventStoreURL),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	api.Use(middleware.InternalAuth())
	{
		deals := api.Group("/deals")
		{
			// 商談の登録
			deals.POST("", s.handleCreate())
			// 商談一覧取得（クエリパラメータ: customer_id）
			deals.GET("", s.handleList())
			// 商談の取得
			deals.GET("/:id", s.handleGet())
			// 商談の更新
			deals.PUT("/:id", s.handleUpdate())
			// 商談の削除
			deals.DELETE("/:id", s.handleDelete())
		}
	}

	// タスクサービスが通知文面の商談名解決に使用する内部エンドポイント
	internal := s.router.Group("/api/v1/internal")
	internal.Use(middleware.InternalAuth())
	{
		internal.GET("/deals/:id/name", s.handleGetName())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "sales"})
	})
}

// dealResponse は商談のJSONレスポンス構造。
type dealResponse struct {
	// ID は商談の一意識別子。
	ID string `json:"id"`
	// Name は商談名。
	Name string `json:"name"`
	// CustomerID は商談先の顧客ID。
	CustomerID string `json:"customer_id"`
	// Stage は商談のステージ。
	Stage string `json:"stage"`
	// Amount は商談金額（最小通貨単位）。
	Amount int64 `json:"amount"`
	// CreatedAt は登録日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時（RFC3339形式）。
	UpdatedAt string `json:"updated_at"`
}

// toDealResponse はDB行をJSONレスポンスに変換する。
func toDealResponse(d Deal) dealResponse {
	return dealResponse{
		ID:         d.ID,
		Name:       d.Name,
		CustomerID: d.CustomerID,
		Stage:      d.Stage,
		Amount:     d.Amount,
		CreatedAt:  d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// emitEvent はEvent Storeにイベントをベストエフォートで送信する。
// 失敗はログに記録するのみで、呼び出し元の商談操作は成功として扱う。
func (s *Server) emitEvent(c *gin.Context, aggregateID string, eventType event.Type, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("イベントデータのシリアライズに失敗: %v", err)
		return
	}

	reqBody := map[string]any{
		"aggregate_id":   aggregateID,
		"aggregate_type": string(event.AggregateTypeDeal),
		"event_type":     string(eventType),
		"data":           json.RawMessage(jsonData),
	}
	if err := s.eventClient.PostJSON(c.Request.Context(), "/api/v1/events", reqBody, nil); err != nil {
		log.Printf("%sイベントの送信に失敗: %v", eventType, err)
	}
}

// createDealRequest は商談登録リクエストのJSON構造。
type createDealRequest struct {
	// Name は商談名。
	Name string `json:"name" binding:"required"`
	// CustomerID は商談先の顧客ID。
	CustomerID string `json:"customer_id" binding:"required"`
	// Stage は商談の初期ステージ。省略時はprospect。
	Stage string `json:"stage"`
	// Amount は商談金額（最小通貨単位）。
	Amount int64 `json:"amount"`
}

// handleCreate は商談を登録するハンドラ。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createDealRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		if req.Stage == "" {
			req.Stage = string(StageProspect)
		}
		if !ValidStage(Stage(req.Stage)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("不正なステージです: %s", req.Stage)})
			return
		}
		if req.Amount < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "金額は0以上である必要があります"})
			return
		}

		now := time.Now().UTC()
		deal := Deal{
			ID:         uuid.New().String(),
			Name:       req.Name,
			CustomerID: req.CustomerID,
			Stage:      req.Stage,
			Amount:     req.Amount,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := s.store.Insert(c.Request.Context(), deal); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商談の登録に失敗しました"})
			log.Printf("商談登録エラー: %v", err)
			return
		}

		s.emitEvent(c, deal.ID, event.TypeDealCreated, event.DealCreatedData{
			ActorUID:   middleware.GetUserID(c),
			Name:       deal.Name,
			CustomerID: deal.CustomerID,
			Stage:      deal.Stage,
			Amount:     deal.Amount,
		})

		c.JSON(http.StatusCreated, toDealResponse(deal))
	}
}

// handleList は商談一覧を返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		deals, err := s.store.List(c.Request.Context(), c.Query("customer_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商談一覧の取得に失敗しました"})
			log.Printf("商談一覧取得エラー: %v", err)
			return
		}

		responses := make([]dealResponse, 0, len(deals))
		for _, d := range deals {
			responses = append(responses, toDealResponse(d))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleGet は指定IDの商談を返すハンドラ。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		deal, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ErrDealNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "商談が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商談の取得に失敗しました"})
			log.Printf("商談取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, toDealResponse(deal))
	}
}

// updateDealRequest は商談更新リクエストのJSON構造。
// nilのフィールドは変更なしとして扱う。
type updateDealRequest struct {
	// Name は商談名。
	Name *string `json:"name"`
	// Stage は商談のステージ。
	Stage *string `json:"stage"`
	// Amount は商談金額（最小通貨単位）。
	Amount *int64 `json:"amount"`
}

// handleUpdate は商談を更新するハンドラ。
// ステージが変わった場合はDealStageChangedイベントを送信する。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateDealRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		deal, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ErrDealNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "商談が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商談の取得に失敗しました"})
			log.Printf("商談取得エラー: %v", err)
			return
		}

		prevStage := deal.Stage
		if req.Name != nil {
			if *req.Name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "商談名を空にすることはできません"})
				return
			}
			deal.Name = *req.Name
		}
		if req.Stage != nil {
			if !ValidStage(Stage(*req.Stage)) {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("不正なステージです: %s", *req.Stage)})
				return
			}
			deal.Stage = *req.Stage
		}
		if req.Amount != nil {
			if *req.Amount < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "金額は0以上である必要があります"})
				return
			}
			deal.Amount = *req.Amount
		}
		deal.UpdatedAt = time.Now().UTC()

		if err := s.store.Update(c.Request.Context(), deal); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商談の更新に失敗しました"})
			log.Printf("商談更新エラー: %v", err)
			return
		}

		if deal.Stage != prevStage {
			s.emitEvent(c, deal.ID, event.TypeDealStageChanged, event.DealStageChangedData{
				ActorUID:  middleware.GetUserID(c),
				FromStage: prevStage,
				ToStage:   deal.Stage,
			})
		}

		c.JSON(http.StatusOK, toDealResponse(deal))
	}
}

// handleDelete は商談を削除するハンドラ。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
			if errors.Is(err, ErrDealNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "商談が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商談の削除に失敗しました"})
			log.Printf("商談削除エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "商談を削除しました"})
	}
}

// handleGetName は商談名を返す内部エンドポイントのハンドラ。
// 存在しない商談の場合は404を返す。
func (s *Server) handleGetName() gin.HandlerFunc {
	return func(c *gin.Context) {
		deal, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ErrDealNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "商談が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "商談の取得に失敗しました"})
			log.Printf("商談取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"name": deal.Name})
	}
}
