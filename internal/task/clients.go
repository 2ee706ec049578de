package task

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/nao1215/crmhub/internal/fanout"
	"github.com/nao1215/crmhub/pkg/httpclient"
)

// notificationPayload は通知サービスのレスポンスJSON構造。
type notificationPayload struct {
	// ID は通知の一意識別子。
	ID string `json:"id"`
	// RecipientUID は通知先のユーザーID。
	RecipientUID string `json:"recipient_uid"`
	// Message は通知メッセージ本文。
	Message string `json:"message"`
	// RelatedTaskID は通知の発生元タスクID。
	RelatedTaskID string `json:"related_task_id"`
	// IsRead は通知の既読状態。
	IsRead bool `json:"is_read"`
	// CreatedAt は通知の作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toFanoutNotification はレスポンスをファンアウトエンジンの通知型に変換する。
func toFanoutNotification(p notificationPayload) *fanout.Notification {
	createdAt, err := time.Parse(time.RFC3339, p.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}
	return &fanout.Notification{
		ID:            p.ID,
		RecipientUID:  p.RecipientUID,
		Message:       p.Message,
		RelatedTaskID: p.RelatedTaskID,
		Read:          p.IsRead,
		CreatedAt:     createdAt,
	}
}

// notificationClient は通知サービスの内部APIを呼び出す
// fanout.NotificationStoreの実装。
type notificationClient struct {
	client *httpclient.Client
}

// FindByTaskAndMessage は同一タスク・同一文面の既存通知を検索する。
// 通知サービスが404を返した場合はfanout.ErrNotificationNotFoundに変換する。
func (n *notificationClient) FindByTaskAndMessage(ctx context.Context, taskID, message string) (*fanout.Notification, error) {
	path := fmt.Sprintf("/api/v1/internal/notifications?task_id=%s&message=%s",
		url.QueryEscape(taskID), url.QueryEscape(message))

	var payload notificationPayload
	if err := n.client.GetJSON(ctx, path, &payload); err != nil {
		if httpclient.IsNotFound(err) {
			return nil, fanout.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("通知の重複確認に失敗: %w", err)
	}
	return toFanoutNotification(payload), nil
}

// Insert は通知レコードを1件追加する。
func (n *notificationClient) Insert(ctx context.Context, notification fanout.Notification) (*fanout.Notification, error) {
	body := map[string]string{
		"recipient_uid":   notification.RecipientUID,
		"message":         notification.Message,
		"related_task_id": notification.RelatedTaskID,
	}

	var payload notificationPayload
	if err := n.client.PostJSON(ctx, "/api/v1/internal/notifications", body, &payload); err != nil {
		return nil, fmt.Errorf("通知の作成に失敗: %w", err)
	}
	return toFanoutNotification(payload), nil
}

// directoryClient はGatewayの内部APIでユーザー表示名を解決する
// fanout.Directoryの実装。
type directoryClient struct {
	client *httpclient.Client
}

// DisplayName はユーザーの表示名を返す。未知のIDの場合はエラーを返す。
func (d *directoryClient) DisplayName(ctx context.Context, uid string) (string, error) {
	var resp struct {
		DisplayName string `json:"display_name"`
	}
	path := fmt.Sprintf("/api/v1/internal/users/%s/display-name", url.PathEscape(uid))
	if err := d.client.GetJSON(ctx, path, &resp); err != nil {
		return "", fmt.Errorf("表示名の解決に失敗: %w", err)
	}
	return resp.DisplayName, nil
}

// referenceClient は顧客サービスと商談サービスの内部APIで参照名を解決する
// fanout.ReferenceResolverの実装。
type referenceClient struct {
	customer *httpclient.Client
	sales    *httpclient.Client
}

// CustomerName は顧客名を返す。未知のIDの場合はエラーを返す。
func (r *referenceClient) CustomerName(ctx context.Context, customerID string) (string, error) {
	var resp struct {
		Name string `json:"name"`
	}
	path := fmt.Sprintf("/api/v1/internal/customers/%s/name", url.PathEscape(customerID))
	if err := r.customer.GetJSON(ctx, path, &resp); err != nil {
		return "", fmt.Errorf("顧客名の解決に失敗: %w", err)
	}
	return resp.Name, nil
}

// DealName は商談名を返す。未知のIDの場合はエラーを返す。
func (r *referenceClient) DealName(ctx context.Context, dealID string) (string, error) {
	var resp struct {
		Name string `json:"name"`
	}
	path := fmt.Sprintf("/api/v1/internal/deals/%s/name", url.PathEscape(dealID))
	if err := r.sales.GetJSON(ctx, path, &resp); err != nil {
		return "", fmt.Errorf("商談名の解決に失敗: %w", err)
	}
	return resp.Name, nil
}
