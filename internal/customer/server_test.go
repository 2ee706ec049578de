package customer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nao1215/crmhub/pkg/httpclient"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestServer はテスト用の顧客サーバーをインメモリSQLiteで構築する。
func setupTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := initSchema(db); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	// Event Storeのモックサーバーを作成する
	eventStore := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"mock-event-id"}`)
	}))
	t.Cleanup(eventStore.Close)

	router := gin.New()
	s := &Server{
		router:      router,
		port:        "0",
		store:       NewStore(db),
		db:          db,
		eventClient: httpclient.New(eventStore.URL),
	}
	s.setupRoutes()

	return s, router
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseJSON はレスポンスボディをマップにパースするヘルパー関数。
func parseJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	return result
}

// parseJSONArray はレスポンスボディをマップのスライスにパースするヘルパー関数。
func parseJSONArray(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var result []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("レスポンス配列のパースに失敗: %v", err)
	}
	return result
}

// createTestCustomer はテスト用の顧客をAPI経由で作成し、IDを返すヘルパー関数。
func createTestCustomer(t *testing.T, router *gin.Engine, name string) string {
	t.Helper()

	w := doRequest(router, http.MethodPost, "/api/v1/customers", "u1", map[string]string{
		"name":  name,
		"email": "info@example.com",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("テスト用顧客の作成に失敗: status=%d body=%s", w.Code, w.Body.String())
	}
	id, _ := parseJSON(t, w)["id"].(string)
	if id == "" {
		t.Fatal("顧客IDが取得できない")
	}
	return id
}

// TestHandleCreate は顧客登録APIを検証する。
func TestHandleCreate(t *testing.T) {
	t.Parallel()

	t.Run("顧客が登録されて201が返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/customers", "u1", map[string]string{
			"name":  "アクメ株式会社",
			"email": "contact@acme.example.com",
			"phone": "03-0000-0000",
			"note":  "主要顧客",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}

		result := parseJSON(t, w)
		if result["name"] != "アクメ株式会社" {
			t.Errorf("name = %v, want %q", result["name"], "アクメ株式会社")
		}
		if result["id"] == "" {
			t.Error("IDが空")
		}
	})

	t.Run("名前がない場合に400が返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/customers", "u1", map[string]string{
			"email": "contact@acme.example.com",
		})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("X-User-IDヘッダーがない場合に401が返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/customers", "", map[string]string{
			"name": "アクメ株式会社",
		})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestHandleGet は顧客取得APIを検証する。
func TestHandleGet(t *testing.T) {
	t.Parallel()

	t.Run("登録した顧客が取得できること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)
		id := createTestCustomer(t, router, "アクメ株式会社")

		w := doRequest(router, http.MethodGet, "/api/v1/customers/"+id, "u1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if parseJSON(t, w)["name"] != "アクメ株式会社" {
			t.Errorf("name = %v, want %q", parseJSON(t, w)["name"], "アクメ株式会社")
		}
	})

	t.Run("存在しない顧客で404が返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodGet, "/api/v1/customers/missing", "u1", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestHandleList は顧客一覧APIを検証する。
func TestHandleList(t *testing.T) {
	t.Parallel()

	t.Run("顧客が名前順で返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)
		createTestCustomer(t, router, "ベータ商事")
		createTestCustomer(t, router, "アクメ株式会社")

		w := doRequest(router, http.MethodGet, "/api/v1/customers", "u1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		customers := parseJSONArray(t, w)
		if len(customers) != 2 {
			t.Fatalf("顧客件数 = %d, want 2", len(customers))
		}
		if customers[0]["name"] != "アクメ株式会社" {
			t.Errorf("先頭の顧客 = %v, want %q", customers[0]["name"], "アクメ株式会社")
		}
	})
}

// TestHandleUpdate は顧客更新APIを検証する。
func TestHandleUpdate(t *testing.T) {
	t.Parallel()

	t.Run("指定フィールドだけが更新されること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)
		id := createTestCustomer(t, router, "アクメ株式会社")

		w := doRequest(router, http.MethodPut, "/api/v1/customers/"+id, "u1", map[string]string{
			"phone": "06-1111-2222",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		result := parseJSON(t, w)
		if result["phone"] != "06-1111-2222" {
			t.Errorf("phone = %v, want %q", result["phone"], "06-1111-2222")
		}
		if result["name"] != "アクメ株式会社" {
			t.Errorf("name = %v, want %q", result["name"], "アクメ株式会社")
		}
	})

	t.Run("名前を空にしようとすると400が返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)
		id := createTestCustomer(t, router, "アクメ株式会社")

		w := doRequest(router, http.MethodPut, "/api/v1/customers/"+id, "u1", map[string]string{
			"name": "",
		})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("存在しない顧客で404が返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodPut, "/api/v1/customers/missing", "u1", map[string]string{
			"note": "メモ",
		})
		if w.Code != http.StatusNotFound {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestHandleDelete は顧客削除APIを検証する。
func TestHandleDelete(t *testing.T) {
	t.Parallel()

	t.Run("顧客と連絡先が削除されること", func(t *testing.T) {
		t.Parallel()

		s, router := setupTestServer(t)
		id := createTestCustomer(t, router, "アクメ株式会社")

		w := doRequest(router, http.MethodPost, "/api/v1/customers/"+id+"/contacts", "u1", map[string]string{
			"name": "山田太郎",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("連絡先の作成に失敗: %d", w.Code)
		}

		w = doRequest(router, http.MethodDelete, "/api/v1/customers/"+id, "u1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		w = doRequest(router, http.MethodGet, "/api/v1/customers/"+id, "u1", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("削除後のステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}

		contacts, err := s.store.ListContacts(testContext(t), id)
		if err != nil {
			t.Fatalf("連絡先一覧の取得に失敗: %v", err)
		}
		if len(contacts) != 0 {
			t.Errorf("連絡先件数 = %d, want 0", len(contacts))
		}
	})

	t.Run("存在しない顧客で404が返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodDelete, "/api/v1/customers/missing", "u1", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestHandleContacts は連絡先の追加と一覧取得APIを検証する。
func TestHandleContacts(t *testing.T) {
	t.Parallel()

	t.Run("連絡先が追加されて一覧で返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)
		id := createTestCustomer(t, router, "アクメ株式会社")

		w := doRequest(router, http.MethodPost, "/api/v1/customers/"+id+"/contacts", "u1", map[string]string{
			"name":  "山田太郎",
			"email": "yamada@acme.example.com",
			"role":  "購買担当",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}

		w = doRequest(router, http.MethodGet, "/api/v1/customers/"+id+"/contacts", "u1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		contacts := parseJSONArray(t, w)
		if len(contacts) != 1 {
			t.Fatalf("連絡先件数 = %d, want 1", len(contacts))
		}
		if contacts[0]["name"] != "山田太郎" {
			t.Errorf("name = %v, want %q", contacts[0]["name"], "山田太郎")
		}
		if contacts[0]["role"] != "購買担当" {
			t.Errorf("role = %v, want %q", contacts[0]["role"], "購買担当")
		}
	})

	t.Run("存在しない顧客への連絡先追加で404が返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/customers/missing/contacts", "u1", map[string]string{
			"name": "山田太郎",
		})
		if w.Code != http.StatusNotFound {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestHandleGetName は内部サービス向けの顧客名解決APIを検証する。
func TestHandleGetName(t *testing.T) {
	t.Parallel()

	t.Run("顧客名が返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)
		id := createTestCustomer(t, router, "アクメ株式会社")

		w := doRequest(router, http.MethodGet, "/api/v1/internal/customers/"+id+"/name", "task-service", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if parseJSON(t, w)["name"] != "アクメ株式会社" {
			t.Errorf("name = %v, want %q", parseJSON(t, w)["name"], "アクメ株式会社")
		}
	})

	t.Run("存在しない顧客で404が返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodGet, "/api/v1/internal/customers/missing/name", "task-service", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}
